// Package config loads the server's runtime configuration from the
// environment. Everything is read once at startup; a missing or invalid
// required value stops the process before it serves a single request.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// minSecretBytes matches auth.MinSecretBytes; HS256 keys shorter than
	// the hash output are refused.
	minSecretBytes = 32
)

// JWTSettings are the signing parameters shared by token issuance and
// validation. Read from JWT_SECRET_KEY, JWT_ISSUER, JWT_AUDIENCE and
// JWT_EXPIRATION_HOURS.
type JWTSettings struct {
	SecretKey       string `envconfig:"SECRET_KEY" required:"true"`
	Issuer          string `envconfig:"ISSUER" required:"true"`
	Audience        string `envconfig:"AUDIENCE" required:"true"`
	ExpirationHours int    `envconfig:"EXPIRATION_HOURS" required:"true"`
}

// Config holds runtime configuration for the application.
type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBPath      string `envconfig:"DB_PATH" default:"data/todo.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	HashWorkFactor     int `envconfig:"HASH_WORK_FACTOR" required:"true"`
	HashMaxConcurrency int `envconfig:"HASH_MAX_CONCURRENCY" default:"0"`

	JWT JWTSettings `envconfig:"JWT"`

	// Empty RedisAddr disables the failed-login lockout.
	RedisAddr          string        `envconfig:"REDIS_ADDR"`
	LoginMaxAttempts   int           `envconfig:"LOGIN_MAX_ATTEMPTS" default:"5"`
	LoginLockoutWindow time.Duration `envconfig:"LOGIN_LOCKOUT_WINDOW" default:"15m"`

	// Requests per minute per client IP on /api/auth/*.
	AuthRateLimit int `envconfig:"AUTH_RATE_LIMIT" default:"20"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values envconfig cannot: ranges, enums and
// cross-field requirements.
func (c *Config) Validate() error {
	var errs []error

	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver))
	}

	if c.HashWorkFactor <= 0 {
		errs = append(errs, fmt.Errorf("HASH_WORK_FACTOR must be positive, got %d", c.HashWorkFactor))
	}
	if c.HashMaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("HASH_MAX_CONCURRENCY must not be negative, got %d", c.HashMaxConcurrency))
	}

	if len(c.JWT.SecretKey) < minSecretBytes {
		errs = append(errs, fmt.Errorf("JWT_SECRET_KEY must be at least %d bytes", minSecretBytes))
	}
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		errs = append(errs, errors.New("JWT_ISSUER must not be blank"))
	}
	if strings.TrimSpace(c.JWT.Audience) == "" {
		errs = append(errs, errors.New("JWT_AUDIENCE must not be blank"))
	}
	if c.JWT.ExpirationHours <= 0 {
		errs = append(errs, fmt.Errorf("JWT_EXPIRATION_HOURS must be positive, got %d", c.JWT.ExpirationHours))
	}

	if c.RedisAddr != "" {
		if c.LoginMaxAttempts <= 0 {
			errs = append(errs, fmt.Errorf("LOGIN_MAX_ATTEMPTS must be positive, got %d", c.LoginMaxAttempts))
		}
		if c.LoginLockoutWindow <= 0 {
			errs = append(errs, fmt.Errorf("LOGIN_LOCKOUT_WINDOW must be positive, got %s", c.LoginLockoutWindow))
		}
	}
	if c.AuthRateLimit < 0 {
		errs = append(errs, fmt.Errorf("AUTH_RATE_LIMIT must not be negative, got %d", c.AuthRateLimit))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
