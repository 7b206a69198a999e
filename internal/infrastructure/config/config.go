package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "LIVECODE"

// FileEnv names the variable pointing at an optional config file.
const FileEnv = "LIVECODE_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit" split_words:"true"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Sandbox   SandboxConfig   `yaml:"sandbox" toml:"sandbox"`
	Preview   PreviewConfig   `yaml:"preview" toml:"preview"`
	Console   ConsoleConfig   `yaml:"console" toml:"console"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string   `yaml:"port" toml:"port" split_words:"true"`
	Host           string   `yaml:"host" toml:"host" split_words:"true"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins" split_words:"true"`
	Gzip           bool     `yaml:"gzip" toml:"gzip" split_words:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `yaml:"level" toml:"level" split_words:"true"`
	Development bool   `yaml:"development" toml:"development" split_words:"true"`
}

// RateLimitConfig holds per-client rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `yaml:"rps" toml:"rps" split_words:"true"`
	Burst             int  `yaml:"burst" toml:"burst" split_words:"true"`
	Enabled           bool `yaml:"enabled" toml:"enabled" split_words:"true"`
}

// AuthConfig controls bearer-token authentication. When disabled every
// request runs in the anonymous scope.
type AuthConfig struct {
	Enabled bool          `yaml:"enabled" toml:"enabled" split_words:"true"`
	Secret  string        `yaml:"secret" toml:"secret" split_words:"true"`
	Issuer  string        `yaml:"issuer" toml:"issuer" split_words:"true"`
	TTL     time.Duration `yaml:"ttl" toml:"ttl" split_words:"true"`
}

// SandboxConfig holds isolated frame settings.
type SandboxConfig struct {
	// Mode is "headless" (in-process frames) or "browser" (client iframes).
	Mode           string        `yaml:"mode" toml:"mode" split_words:"true"`
	Timeout        time.Duration `yaml:"timeout" toml:"timeout" split_words:"true"`
	ReloadDebounce time.Duration `yaml:"reload_debounce" toml:"reload_debounce" split_words:"true"`
	MaxDepth       int           `yaml:"max_depth" toml:"max_depth" split_words:"true"`
}

// PreviewConfig controls document synthesis.
type PreviewConfig struct {
	Provenance bool `yaml:"provenance" toml:"provenance" split_words:"true"`
	Guard      bool `yaml:"guard" toml:"guard" split_words:"true"`
}

// ConsoleConfig bounds the per-session log store. Zero keeps every record.
type ConsoleConfig struct {
	MaxEntries int `yaml:"max_entries" toml:"max_entries" split_words:"true"`
}

// StorageConfig selects the persistence backends.
type StorageConfig struct {
	// KV is "file", "redis" or "memory".
	KV       string `yaml:"kv" toml:"kv" split_words:"true"`
	Dir      string `yaml:"dir" toml:"dir" split_words:"true"`
	RedisURL string `yaml:"redis_url" toml:"redis_url" split_words:"true"`
	// Projects is "sqlite", "remote" or "none".
	Projects  string `yaml:"projects" toml:"projects" split_words:"true"`
	Database  string `yaml:"database" toml:"database" split_words:"true"`
	RemoteURL string `yaml:"remote_url" toml:"remote_url" split_words:"true"`
	RemoteKey string `yaml:"remote_key" toml:"remote_key" split_words:"true"`
}

// Load builds configuration from defaults, then the optional config file
// named by LIVECODE_CONFIG, then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration or falls back to defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8000",
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
			Gzip:           true,
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
		Auth: AuthConfig{
			Enabled: false,
			Issuer:  "livecode",
			TTL:     24 * time.Hour,
		},
		Sandbox: SandboxConfig{
			Mode:     "headless",
			MaxDepth: 64,
		},
		Preview: PreviewConfig{
			Provenance: false,
			Guard:      true,
		},
		Storage: StorageConfig{
			KV:       "file",
			Dir:      "data",
			Projects: "sqlite",
			Database: "data/projects.db",
		},
	}
}
