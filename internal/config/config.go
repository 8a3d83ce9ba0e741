package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
)

// Storage backends for the participant/token slot.
const (
	StorageFile  = "file"
	StorageRedis = "redis"
)

// App holds runtime configuration for the quiz client.
type App struct {
	Name     string `env:"APP_NAME" envDefault:"quiztaker"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	API     API
	Storage Storage
	Redis   Redis
	Session Session
	Auth    Auth
	Status  Status
}

// API points at the remote quiz REST API.
type API struct {
	BaseURL string        `env:"QUIZ_API_URL" envDefault:"http://localhost:4000/api"`
	Timeout time.Duration `env:"QUIZ_API_TIMEOUT" envDefault:"10s"`
	// PublicURL is used to print shareable quiz links.
	PublicURL string `env:"QUIZ_PUBLIC_URL" envDefault:"http://localhost:3000"`
}

// Storage selects where the local session slot lives.
type Storage struct {
	Backend string `env:"STORAGE_BACKEND" envDefault:"file"`
	Path    string `env:"STORAGE_PATH"`
	Profile string `env:"STORAGE_PROFILE" envDefault:"default"`
}

// Redis is only required when STORAGE_BACKEND=redis.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"4"`
}

// Session governs the quiz-taking loop.
type Session struct {
	TickInterval    time.Duration `env:"SESSION_TICK_INTERVAL" envDefault:"1s"`
	PollInterval    time.Duration `env:"SESSION_POLL_INTERVAL" envDefault:"5s"`
	RecheckCooldown time.Duration `env:"SESSION_RECHECK_COOLDOWN" envDefault:"3s"`
}

// Auth controls opportunistic token refresh.
type Auth struct {
	RefreshThreshold time.Duration `env:"AUTH_REFRESH_THRESHOLD" envDefault:"48h"`
}

// Status configures the optional local status server. Empty Addr disables it.
type Status struct {
	Addr string `env:"STATUS_ADDR"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the tags cannot express.
func (c *App) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("QUIZ_API_URL must be an absolute URL, got %q", c.API.BaseURL)
	}
	switch c.Storage.Backend {
	case StorageFile:
	case StorageRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR must be set for the redis storage backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Session.TickInterval <= 0 || c.Session.PollInterval <= 0 {
		return fmt.Errorf("session intervals must be positive")
	}
	return nil
}
