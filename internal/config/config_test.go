package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "quiztaker", cfg.Name)
	assert.Equal(t, StorageFile, cfg.Storage.Backend)
	assert.Equal(t, time.Second, cfg.Session.TickInterval)
	assert.Equal(t, 5*time.Second, cfg.Session.PollInterval)
	assert.Equal(t, 3*time.Second, cfg.Session.RecheckCooldown)
	assert.Equal(t, 48*time.Hour, cfg.Auth.RefreshThreshold)
	assert.Empty(t, cfg.Status.Addr)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("QUIZ_API_URL", "https://quiz.example.com/api")
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("SESSION_POLL_INTERVAL", "2s")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://quiz.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, StorageRedis, cfg.Storage.Backend)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Second, cfg.Session.PollInterval)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := map[string]func(*App){
		"relative url":    func(c *App) { c.API.BaseURL = "/api" },
		"unknown backend": func(c *App) { c.Storage.Backend = "sqlite" },
		"redis no addr": func(c *App) {
			c.Storage.Backend = StorageRedis
			c.Redis.Addr = ""
		},
		"zero tick": func(c *App) { c.Session.TickInterval = 0 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(context.Background())
			require.NoError(t, err)
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
