package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, DefaultAPIKey, cfg.APIKey)
		assert.True(t, cfg.RequireAuth)
		assert.False(t, cfg.SingleTenant)
		assert.Equal(t, 30*time.Second, cfg.KeepAliveInterval)
		assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
		assert.Equal(t, ":3000", cfg.Addr())
		assert.True(t, cfg.UsesDefaultAPIKey())
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("PORT", "8080")
		t.Setenv("HOST", "127.0.0.1")
		t.Setenv("API_KEY", "s3cret")
		t.Setenv("SINGLE_TENANT", "true")
		t.Setenv("KEEPALIVE_INTERVAL", "5s")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example;https://b.example")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
		assert.Equal(t, "s3cret", cfg.APIKey)
		assert.True(t, cfg.SingleTenant)
		assert.Equal(t, 5*time.Second, cfg.KeepAliveInterval)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
		assert.False(t, cfg.UsesDefaultAPIKey())
	})

	t.Run("decode leaves validation to the caller", func(t *testing.T) {
		t.Setenv("LOG_FORMAT", "xml")

		cfg, err := DecodeConfig()
		require.NoError(t, err)
		assert.Equal(t, "xml", cfg.LogFormat)

		_, err = LoadConfig()
		require.ErrorContains(t, err, `unknown log format "xml"`)
	})

	t.Run("malformed value", func(t *testing.T) {
		t.Setenv("PORT", "not-a-port")

		_, err := LoadConfig()
		require.Error(t, err)
	})
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Port:            3000,
		APIKey:          "k",
		RequireAuth:     true,
		MaxMessageBytes: 1024,
		EventQueueSize:  10,
		LogFormat:       LogFormatJSON,
	}
	require.NoError(t, valid.Validate())

	t.Run("auth without key", func(t *testing.T) {
		cfg := valid
		cfg.APIKey = ""
		require.ErrorContains(t, cfg.Validate(), "api key is required")

		cfg.RequireAuth = false
		require.NoError(t, cfg.Validate())
	})

	t.Run("collects every problem", func(t *testing.T) {
		cfg := valid
		cfg.Port = 0
		cfg.EventQueueSize = 0
		cfg.LogFormat = "xml"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "port 0 out of range")
		assert.Contains(t, err.Error(), "event queue size")
		assert.Contains(t, err.Error(), `unknown log format "xml"`)
	})
}
