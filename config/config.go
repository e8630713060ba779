// Package config loads imagestudio configuration.
//
// Precedence: defaults -> YAML file -> environment variables.
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("imagestudio.yaml").
//	    Load()
//
// The loaded Config is built once at process start and passed explicitly into adapter
// construction; adapters never read the environment themselves.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the complete imagestudio configuration.
type Config struct {
	// DefaultProvider names the adapter used when a call does not pick one.
	DefaultProvider string `yaml:"default_provider" env:"DEFAULT_PROVIDER"`

	Providers ProvidersConfig `yaml:"providers" env:"PROVIDERS"`
	Poll      PollConfig      `yaml:"poll" env:"POLL"`
	RateLimit RateLimitConfig `yaml:"rate_limit" env:"RATE_LIMIT"`
	History   HistoryConfig   `yaml:"history" env:"HISTORY"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
}

// ProvidersConfig holds per-backend settings.
type ProvidersConfig struct {
	ModelScope ModelScopeConfig `yaml:"modelscope" env:"MODELSCOPE"`
	Gemini     GeminiConfig     `yaml:"gemini" env:"GEMINI"`
}

// ModelScopeConfig configures the ModelScope adapter.
type ModelScopeConfig struct {
	APIKey  string `yaml:"api_key" env:"API_KEY"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`

	// Async selects the task-queue variant, which also enables native edits.
	Async bool `yaml:"async" env:"ASYNC"`

	GenerateModel string `yaml:"generate_model" env:"GENERATE_MODEL"`

	// EditModel enables native edits. Empty means edits are serviced as degraded
	// generations.
	EditModel string `yaml:"edit_model" env:"EDIT_MODEL"`

	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// GeminiConfig configures the Gemini adapter. It is registered only when an API key
// is present.
type GeminiConfig struct {
	APIKey string `yaml:"api_key" env:"API_KEY"`
	Model  string `yaml:"model" env:"MODEL"`
}

// PollConfig tunes the task poller.
type PollConfig struct {
	Interval    time.Duration `yaml:"interval" env:"INTERVAL"`
	MaxAttempts int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
}

// RateLimitConfig applies to every provider. Zero disables a dimension.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
	TokensPerMinute   int `yaml:"tokens_per_minute" env:"TOKENS_PER_MINUTE"`
}

// HistoryConfig selects the history backend.
type HistoryConfig struct {
	// Driver: memory, sqlite, postgres, redis
	Driver    string `yaml:"driver" env:"DRIVER"`
	DSN       string `yaml:"dsn" env:"DSN"`
	RedisAddr string `yaml:"redis_addr" env:"REDIS_ADDR"`
}

// LogConfig configures slog output.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: text, json
	Format string `yaml:"format" env:"FORMAT"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

var validProviders = map[string]bool{"modelscope": true, "gemini": true}

var validHistoryDrivers = map[string]bool{"memory": true, "sqlite": true, "postgres": true, "redis": true}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the configuration for values the process cannot start with.
func (c *Config) Validate() error {
	var errs []string

	if !validProviders[c.DefaultProvider] {
		errs = append(errs, fmt.Sprintf("unknown default_provider %q", c.DefaultProvider))
	}
	switch c.DefaultProvider {
	case "modelscope":
		if c.Providers.ModelScope.APIKey == "" {
			errs = append(errs, "providers.modelscope.api_key is required (or set MODELSCOPE_API_KEY)")
		}
	case "gemini":
		if c.Providers.Gemini.APIKey == "" {
			errs = append(errs, "providers.gemini.api_key is required (or set GEMINI_API_KEY)")
		}
	}

	if c.Providers.ModelScope.GenerateModel == "" {
		errs = append(errs, "providers.modelscope.generate_model must not be empty")
	}
	if c.Providers.ModelScope.Timeout < 0 {
		errs = append(errs, "providers.modelscope.timeout must not be negative")
	}

	if c.Poll.Interval <= 0 {
		errs = append(errs, "poll.interval must be positive")
	}
	if c.Poll.MaxAttempts <= 0 {
		errs = append(errs, "poll.max_attempts must be positive")
	}

	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.TokensPerMinute < 0 {
		errs = append(errs, "rate_limit values must not be negative")
	}

	if !validHistoryDrivers[c.History.Driver] {
		errs = append(errs, fmt.Sprintf("unknown history.driver %q", c.History.Driver))
	}
	switch c.History.Driver {
	case "sqlite", "postgres":
		if c.History.DSN == "" {
			errs = append(errs, fmt.Sprintf("history.dsn is required for %s", c.History.Driver))
		}
	case "redis":
		if c.History.RedisAddr == "" {
			errs = append(errs, "history.redis_addr is required for redis")
		}
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("unknown log.level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return errors.New("config validation failed: " + strings.Join(errs, "; "))
	}
	return nil
}
