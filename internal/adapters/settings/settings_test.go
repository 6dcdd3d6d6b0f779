package settings_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/tend/internal/adapters/detector"
	"go.trai.ch/tend/internal/adapters/settings"
	"go.trai.ch/tend/internal/core/domain"
)

func TestLoader_Defaults(t *testing.T) {
	s, err := settings.NewLoader().Load(nil)
	require.NoError(t, err)

	assert.Equal(t, settings.Default(), s)
	assert.Equal(t, domain.DefaultDebounce, s.Debounce)
	format, err := s.Format()
	require.NoError(t, err)
	assert.Equal(t, detector.FormatAuto, format)
}

func TestLoader_Environment(t *testing.T) {
	t.Setenv("TEND_LOG_FORMAT", "json")
	t.Setenv("TEND_LOG_LEVEL", "debug")
	t.Setenv("TEND_DEBOUNCE", "200")
	t.Setenv("TEND_CONFIG", "web/tend.yaml")

	s, err := settings.NewLoader().Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "json", s.LogFormat)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, 200*time.Millisecond, s.Debounce)
	assert.Equal(t, "web/tend.yaml", s.Config)
}

func TestLoader_DurationString(t *testing.T) {
	t.Setenv("TEND_DEBOUNCE", "1s")

	s, err := settings.NewLoader().Load(nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, s.Debounce)
}

func TestLoader_OverridesWinOverEnvironment(t *testing.T) {
	t.Setenv("TEND_LOG_FORMAT", "json")

	s, err := settings.NewLoader().Load(map[string]any{
		"log_format": "pretty",
		"log_level":  "warn",
	})
	require.NoError(t, err)

	assert.Equal(t, "pretty", s.LogFormat)
	assert.Equal(t, "warn", s.LogLevel)
}

func TestLoader_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
		want      string
	}{
		{"log format", map[string]any{"log_format": "xml"}, "unknown log format"},
		{"log level", map[string]any{"log_level": "loud"}, "invalid settings"},
		{"negative debounce", map[string]any{"debounce": "-5ms"}, "invalid settings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := settings.NewLoader().Load(tt.overrides)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
