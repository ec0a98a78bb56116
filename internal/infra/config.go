package infra

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`
	JWTSecret   string `env:"JWT_SECRET,notEmpty"`

	HTTPReadTimeoutSeconds  int `env:"HTTP_READ_TIMEOUT_SECONDS" envDefault:"15"`
	HTTPWriteTimeoutSeconds int `env:"HTTP_WRITE_TIMEOUT_SECONDS" envDefault:"30"`
	HTTPIdleTimeoutSeconds  int `env:"HTTP_IDLE_TIMEOUT_SECONDS" envDefault:"60"`

	DBMaxConns           int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	AllocationMaxRetries uint  `env:"ALLOCATION_MAX_RETRIES" envDefault:"5"`

	HTTPReadTimeout  time.Duration `env:"-"`
	HTTPWriteTimeout time.Duration `env:"-"`
	HTTPIdleTimeout  time.Duration `env:"-"`
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.HTTPReadTimeout = time.Second * time.Duration(cfg.HTTPReadTimeoutSeconds)
	cfg.HTTPWriteTimeout = time.Second * time.Duration(cfg.HTTPWriteTimeoutSeconds)
	cfg.HTTPIdleTimeout = time.Second * time.Duration(cfg.HTTPIdleTimeoutSeconds)

	if cfg.DBMaxConns <= 0 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if _, err := cfg.StoreDriver(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Store drivers selected by the DATABASE_URL scheme.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// StoreDriver reports which persistence adapter DATABASE_URL points at.
func (c *Config) StoreDriver() (string, error) {
	raw := strings.TrimSpace(c.DatabaseURL)
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DriverPostgres, nil
	case strings.HasPrefix(raw, "sqlite://"), strings.HasPrefix(raw, "file:"):
		return DriverSQLite, nil
	case strings.Contains(raw, "://"):
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parse DATABASE_URL: %w", err)
		}
		return "", fmt.Errorf("unsupported DATABASE_URL scheme %q", u.Scheme)
	case raw == "":
		return "", fmt.Errorf("DATABASE_URL is required")
	}
	return DriverSQLite, nil
}

// SQLitePath returns the database file path for the sqlite driver.
func (c *Config) SQLitePath() string {
	raw := strings.TrimSpace(c.DatabaseURL)
	raw = strings.TrimPrefix(raw, "sqlite://")
	raw = strings.TrimPrefix(raw, "file:")
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	return raw
}
