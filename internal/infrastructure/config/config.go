// Package config loads daemon configuration from an optional YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Host      HostConfig      `yaml:"host"`
	Sync      SyncConfig      `yaml:"sync"`
	Watch     WatchConfig     `yaml:"watch"`
	Notify    NotifyConfig    `yaml:"notify"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Host string `yaml:"host"` // PKGSYNC_SERVER_HOST
	Port string `yaml:"port"` // PKGSYNC_SERVER_PORT
}

// HostConfig holds the package-management host connection.
type HostConfig struct {
	URL     string `yaml:"url"`     // PKGSYNC_HOST_URL
	Enabled bool   `yaml:"enabled"` // PKGSYNC_HOST_ENABLED
}

// SyncConfig tunes the synchronization engine.
type SyncConfig struct {
	// Window is the quiescence interval before a batch of change events is
	// processed. PKGSYNC_SYNC_WINDOW
	Window time.Duration `yaml:"window"`
}

// WatchConfig holds the optional filesystem change source.
type WatchConfig struct {
	Enabled bool     `yaml:"enabled"` // PKGSYNC_WATCH_ENABLED
	Dirs    []string `yaml:"dirs"`    // PKGSYNC_WATCH_DIRS (comma-separated)
}

// NotifyConfig holds the user-notification webhook.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" envconfig:"WEBHOOK_URL"` // PKGSYNC_NOTIFY_WEBHOOK_URL
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `yaml:"level"`       // PKGSYNC_LOGGING_LEVEL
	Development bool   `yaml:"development"` // PKGSYNC_LOGGING_DEVELOPMENT
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"` // PKGSYNC_RATE_LIMIT_REQUESTS_PER_SECOND
	Burst             int  `yaml:"burst"`                                               // PKGSYNC_RATE_LIMIT_BURST
	Enabled           bool `yaml:"enabled"`                                             // PKGSYNC_RATE_LIMIT_ENABLED
}

// Default returns the built-in configuration. Defaults live here rather than
// in struct tags so later layers only touch keys they actually set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: "7420"},
		Host:   HostConfig{URL: "ws://localhost:7421/rpc", Enabled: true},
		Sync:   SyncConfig{Window: time.Second},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Load builds the configuration in three layers: built-in defaults, then the
// YAML file at path (if non-empty), then PKGSYNC_* environment variables on
// top. A key absent from a layer leaves the value from the layer below.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process("pkgsync", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	return cfg, nil
}
