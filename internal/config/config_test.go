package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerDefaults(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, float64(20), cfg.Server.RateLimit)
	assert.False(t, cfg.Structurer.Enabled)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	require.NoError(t, m.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func()
		wantErr string
	}{
		{
			"bad port",
			func() { m.config.Server.Port = -1 },
			"invalid server port",
		},
		{
			"bad log level",
			func() { m.config.Logging.Level = "verbose" },
			"invalid log level",
		},
		{
			"structurer enabled without URL",
			func() { m.config.Structurer.Enabled = true },
			"structurer base URL is required",
		},
		{
			"cache enabled without URL",
			func() {
				m.config.Cache.Enabled = true
				m.config.Cache.RedisURL = ""
			},
			"Redis URL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, m.Reload())
			tt.mutate()
			err := m.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvironmentModes(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	// No environment configured defaults to development.
	assert.True(t, m.IsDevelopment())
	assert.False(t, m.IsProduction())
}
