package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "data.db", cfg.DBPath)
	assert.Equal(t, 2000, cfg.MaxMessageLen)
	assert.Equal(t, 80, cfg.MaxTopicTitle)
	assert.Equal(t, 32, cfg.MaxUsernameLen)
	assert.Equal(t, "/login", cfg.LoginPath)
	assert.Equal(t, "/signup", cfg.SignupPath)
	assert.Equal(t, 30*time.Second, cfg.WS.Heartbeat)
	assert.Equal(t, 10*time.Second, cfg.WS.WriteWait)
	assert.Equal(t, int64(64<<10), cfg.WS.MaxFrameBytes)
	assert.Equal(t, 4, cfg.StoreWorkers)
	assert.Empty(t, cfg.AMQPURL)
	assert.False(t, cfg.OTEL.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_MESSAGE_LEN", "10")
	t.Setenv("SIGNUP_PATH", "very-secret-door/")
	t.Setenv("WS_HEARTBEAT", "5s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("GIN_MODE", "bogus")
	t.Setenv("DEBUG_ROUTES", "yes")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.MaxMessageLen)
	assert.Equal(t, "/very-secret-door", cfg.SignupPath)
	assert.Equal(t, 5*time.Second, cfg.WS.Heartbeat)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.WS.AllowedOrigins)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "release", cfg.GinMode)
	assert.True(t, cfg.DebugRoutes)
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"bad log level":       {"LOG_LEVEL": "loud"},
		"unknown driver":      {"DB_DRIVER": "oracle"},
		"postgres without dsn": {"DB_DRIVER": "postgres"},
		"zero message len":    {"MAX_MESSAGE_LEN": "0"},
		"same paths":          {"LOGIN_PATH": "/door", "SIGNUP_PATH": "door"},
		"no workers":          {"STORE_WORKERS": "0"},
		"bad sample ratio":    {"OTEL_TRACES_SAMPLER_ARG": "2"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/", normalizePath(""))
	assert.Equal(t, "/a", normalizePath("a"))
	assert.Equal(t, "/a/b", normalizePath("/a/b/"))
}
