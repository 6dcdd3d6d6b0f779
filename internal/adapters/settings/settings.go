// Package settings resolves runtime settings from defaults, TEND_* environment
// variables and command-line overrides.
package settings

import (
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"go.trai.ch/tend/internal/adapters/detector"
	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/zerr"
)

// EnvPrefix is the prefix of environment variables read into Settings.
const EnvPrefix = "TEND_"

var (
	// ErrLoadFailed is returned when a settings source cannot be read.
	ErrLoadFailed = zerr.New("failed to load settings")
	// ErrInvalidSettings is returned when a resolved value is out of range.
	ErrInvalidSettings = zerr.New("invalid settings")
)

// Settings are the process-wide knobs that are not part of the task file.
type Settings struct {
	// Config is the task file or the directory to search from.
	Config string `koanf:"config"`
	// LogFormat is auto, pretty or json.
	LogFormat string `koanf:"log_format"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `koanf:"log_level"`
	// Debounce is the default settle window for watch rules.
	Debounce time.Duration `koanf:"debounce"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Config:    ".",
		LogFormat: "auto",
		LogLevel:  "info",
		Debounce:  domain.DefaultDebounce,
	}
}

// Format returns the parsed log format.
func (s Settings) Format() (detector.LogFormat, error) {
	return detector.ParseLogFormat(s.LogFormat)
}

// Loader layers the settings sources.
type Loader struct{}

// NewLoader creates a Loader reading the process environment.
func NewLoader() *Loader {
	return &Loader{}
}

// Load resolves settings. Later sources win: defaults, then TEND_* variables,
// then overrides keyed by koanf tag (for example "log_format").
func (*Loader) Load(overrides map[string]any) (Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Settings{}, domain.Classify(ErrLoadFailed, err)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil); err != nil {
		return Settings{}, domain.Classify(ErrLoadFailed, err)
	}

	for key, value := range overrides {
		if err := k.Set(key, value); err != nil {
			return Settings{}, zerr.With(domain.Classify(ErrLoadFailed, err), "key", key)
		}
	}

	var s Settings
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &s,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				millisecondsHook,
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return Settings{}, domain.Classify(ErrLoadFailed, err)
	}

	return s, s.validate()
}

func (s Settings) validate() error {
	if _, err := s.Format(); err != nil {
		return err
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return domain.Annotate(ErrInvalidSettings, "log_level", s.LogLevel)
	}
	if s.Debounce < 0 {
		return domain.Annotate(ErrInvalidSettings, "debounce", s.Debounce.String())
	}
	return nil
}
