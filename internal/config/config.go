package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all engine configuration.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Executor  ExecutorConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds admin HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Path string `envconfig:"STORE_PATH" default:"fragments.db"`
}

// ExecutorConfig holds sandbox execution configuration.
type ExecutorConfig struct {
	TimeoutMS int `envconfig:"EXEC_TIMEOUT_MS" default:"5000"`
	// AllowUnsafe bypasses the dangerous-construct filter. Off by default;
	// enabling it is logged on every execution.
	AllowUnsafe bool `envconfig:"EXEC_ALLOW_UNSAFE" default:"false"`
	// DenyExtra appends operation names to the built-in deny list.
	DenyExtra []string `envconfig:"EXEC_DENY_EXTRA"`
}

// Timeout returns the execution time budget as a duration.
func (c ExecutorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds admin API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Store: StoreConfig{
			Path: "fragments.db",
		},
		Executor: ExecutorConfig{
			TimeoutMS:   5000,
			AllowUnsafe: false,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
