// Package app implements the application layer for tend.
package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.trai.ch/tend/internal/adapters/detector"
	"go.trai.ch/tend/internal/adapters/settings"
	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/tend/internal/core/ports"
	"go.trai.ch/tend/internal/engine/orchestrator"
	"go.trai.ch/zerr"
)

// SettingsLoader resolves runtime settings from their layered sources.
type SettingsLoader interface {
	Load(overrides map[string]any) (settings.Settings, error)
}

// NamedHandler binds a handler to the identifier tasks refer to it by.
type NamedHandler struct {
	Name    string
	Handler ports.Handler
}

// logConfigurer is implemented by loggers whose format and level can change at runtime.
type logConfigurer interface {
	SetJSON(enable bool)
	SetLevel(level slog.Level)
}

// shutdowner is implemented by tracers that buffer spans.
type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	logger       ports.Logger
	settings     SettingsLoader
	resolver     ports.PathResolver
	hasher       ports.Fingerprinter
	watchers     ports.WatcherFactory
	tracer       ports.Tracer
	handlers     []NamedHandler
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	log ports.Logger,
	settingsLoader SettingsLoader,
	resolver ports.PathResolver,
	hasher ports.Fingerprinter,
	watchers ports.WatcherFactory,
	tracer ports.Tracer,
	handlers ...NamedHandler,
) *App {
	return &App{
		configLoader: loader,
		logger:       log,
		settings:     settingsLoader,
		resolver:     resolver,
		hasher:       hasher,
		watchers:     watchers,
		tracer:       tracer,
		handlers:     handlers,
	}
}

// Options are the command-line overrides shared by every command.
type Options struct {
	// Config is the task file, or a directory to search upwards from.
	Config string
	// LogFormat is auto, pretty or json.
	LogFormat string
	// Verbose enables debug logging.
	Verbose bool
}

func (o Options) overrides() map[string]any {
	out := make(map[string]any)
	if o.Config != "" {
		out["config"] = o.Config
	}
	if o.LogFormat != "" {
		out["log_format"] = o.LogFormat
	}
	if o.Verbose {
		out["log_level"] = "debug"
	}
	return out
}

// Run executes the named tasks one after another, stopping at the first
// failure. Without names the default task runs.
func (a *App) Run(ctx context.Context, taskNames []string, opts Options) error {
	orch, err := a.prepare(opts)
	if err != nil {
		return err
	}
	defer a.shutdown(ctx)

	if len(taskNames) == 0 {
		taskNames = []string{""}
	}
	for _, name := range taskNames {
		if err := orch.Run(ctx, name); err != nil {
			return executionError(err)
		}
	}
	return nil
}

// Watch observes the named watch rules, or every rule, until ctx ends.
func (a *App) Watch(ctx context.Context, ruleNames []string, opts Options) error {
	orch, err := a.prepare(opts)
	if err != nil {
		return err
	}
	defer a.shutdown(ctx)

	var selection domain.Options
	if len(ruleNames) > 0 {
		selection = domain.Options{"rules": ruleNames}
	}
	rules, err := orch.SelectRules(selection)
	if err != nil {
		return err
	}
	return executionError(orch.Watch(ctx, rules))
}

// Tasks loads and validates the task file without running anything.
func (a *App) Tasks(_ context.Context, opts Options) (*domain.TaskConfig, error) {
	orch, err := a.prepare(opts)
	if err != nil {
		return nil, err
	}
	return orch.Config(), nil
}

// prepare resolves settings, configures logging, loads the task file and
// returns an orchestrator with every handler registered and the
// configuration validated.
func (a *App) prepare(opts Options) (*orchestrator.Orchestrator, error) {
	s, err := a.settings.Load(opts.overrides())
	if err != nil {
		return nil, err
	}
	if err := a.configureLogging(s); err != nil {
		return nil, err
	}

	cfg, err := a.configLoader.Load(s.Config)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}

	orch := orchestrator.New(a.logger, a.tracer, a.resolver, a.hasher, a.watchers,
		orchestrator.WithDebounce(s.Debounce))

	for _, h := range a.handlers {
		if err := orch.RegisterHandler(h.Name, h.Handler); err != nil {
			return nil, err
		}
	}
	if err := orch.RegisterHandler(domain.WatchHandlerName, orch.WatchHandler()); err != nil {
		return nil, err
	}

	if err := orch.LoadConfig(cfg); err != nil {
		return nil, err
	}
	return orch, nil
}

func (a *App) configureLogging(s settings.Settings) error {
	lc, ok := a.logger.(logConfigurer)
	if !ok {
		return nil
	}

	requested, err := s.Format()
	if err != nil {
		return err
	}
	format := detector.ResolveFormat(detector.DetectEnvironment(), requested)
	lc.SetJSON(format == detector.FormatJSON)
	lc.SetLevel(parseLevel(s.LogLevel))
	return nil
}

func parseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func (a *App) shutdown(ctx context.Context) {
	s, ok := a.tracer.(shutdowner)
	if !ok {
		return
	}
	if err := s.Shutdown(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn("failed to flush task output", "error", err.Error())
	}
}

// executionError tags task failures with domain.ErrBuildExecutionFailed.
// The renderer has already reported them.
func executionError(err error) error {
	if err == nil {
		return nil
	}
	var execErr *domain.TaskExecutionError
	if errors.As(err, &execErr) {
		return errors.Join(domain.ErrBuildExecutionFailed, err)
	}
	return err
}
