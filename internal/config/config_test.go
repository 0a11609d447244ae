package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	require.NoError(t, cfg.Normalize())

	assert.Equal(t, ProviderMock, cfg.Model.Provider)
	assert.Equal(t, 8, cfg.Pipeline.AcceptThreshold)
	assert.Equal(t, 3, cfg.Pipeline.MaxIterations)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	cfg.Pipeline.AcceptThreshold = 9
	cfg.Pipeline.MaxIterations = 1
	cfg.Server.Addr = ":9999"
	require.NoError(t, cfg.Normalize())

	assert.Equal(t, 9, cfg.Pipeline.AcceptThreshold)
	assert.Equal(t, 1, cfg.Pipeline.MaxIterations)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Model.Provider = "anthropic" }},
		{"threshold out of range", func(c *Config) { c.Pipeline.AcceptThreshold = 11 }},
		{"unknown store driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Store.Driver = DriverSQLite; c.Store.Path = "" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var cfg Config
			tc.mutate(&cfg)
			assert.Error(t, cfg.Normalize())
		})
	}
}

func TestPipelineDurations(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, int64(1_500), cfg.Pipeline.ContextTimeout().Milliseconds())
	assert.Equal(t, int64(30_000), cfg.Pipeline.TurnBudget().Milliseconds())
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	valid := map[string]any{
		"model":    map[string]any{"provider": "mock"},
		"pipeline": map[string]any{"accept_threshold": 8, "max_iterations": 3},
		"store":    map[string]any{"driver": "memory"},
	}
	assert.NoError(t, ValidateSettings(valid))

	invalid := map[string]any{
		"model": map[string]any{"provider": "other"},
	}
	assert.Error(t, ValidateSettings(invalid))
}
