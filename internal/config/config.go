package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the system-wide settings coordinator. Each section feeds one
// component at wiring time.
type Config struct {
	HTTP     *HTTPConfig     `json:"http"`
	Database *DatabaseConfig `json:"database"`
	Auth     *AuthConfig     `json:"auth"`
	Chat     *ChatConfig     `json:"chat"`
}

type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DatabaseConfig configures the write-behind sink. An empty path disables
// persistence entirely; the in-memory store is always the source of truth.
type DatabaseConfig struct {
	Path      string `json:"path"`
	QueueSize int    `json:"queue_size"`
}

type AuthConfig struct {
	Secret        string        `json:"secret"`
	TokenLifetime time.Duration `json:"token_lifetime"`
}

type ChatConfig struct {
	PresenceWindow time.Duration `json:"presence_window"`
	RecentWindow   int           `json:"recent_window"`
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: &DatabaseConfig{
			Path:      "./data/chatflow.db",
			QueueSize: 256,
		},
		Auth: &AuthConfig{
			Secret:        "chatflow-dev-secret-change-in-production",
			TokenLifetime: 24 * time.Hour,
		},
		Chat: &ChatConfig{
			PresenceWindow: 30 * time.Second,
			RecentWindow:   50,
		},
	}
}

// Validate ensures the configuration can actually boot the system.
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.Auth == nil || c.Auth.Secret == "" {
		return fmt.Errorf("auth secret cannot be empty")
	}
	if c.Auth.TokenLifetime <= 0 {
		return fmt.Errorf("auth token lifetime must be positive")
	}
	if c.Chat == nil {
		return fmt.Errorf("chat configuration is required")
	}
	if c.Chat.PresenceWindow <= 0 {
		return fmt.Errorf("presence window must be positive")
	}
	if c.Chat.RecentWindow <= 0 {
		return fmt.Errorf("recent window must be positive")
	}
	if c.Database != nil && c.Database.Path != "" && c.Database.QueueSize <= 0 {
		return fmt.Errorf("database queue size must be positive")
	}
	return nil
}

// LoadFromEnv builds a configuration from defaults overridden by
// CHATFLOW_* environment variables.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	if host := os.Getenv("CHATFLOW_HTTP_HOST"); host != "" {
		cfg.HTTP.Host = host
	}
	if port := os.Getenv("CHATFLOW_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.HTTP.Port = p
		}
	}
	if timeout := os.Getenv("CHATFLOW_HTTP_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.HTTP.ReadTimeout = d
		}
	}
	if timeout := os.Getenv("CHATFLOW_HTTP_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.HTTP.WriteTimeout = d
		}
	}
	if path, ok := os.LookupEnv("CHATFLOW_DATABASE_PATH"); ok {
		cfg.Database.Path = path
	}
	if size := os.Getenv("CHATFLOW_DATABASE_QUEUE_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			cfg.Database.QueueSize = n
		}
	}
	if secret := os.Getenv("CHATFLOW_AUTH_SECRET"); secret != "" {
		cfg.Auth.Secret = secret
	}
	if lifetime := os.Getenv("CHATFLOW_AUTH_TOKEN_LIFETIME"); lifetime != "" {
		if d, err := time.ParseDuration(lifetime); err == nil {
			cfg.Auth.TokenLifetime = d
		}
	}
	if window := os.Getenv("CHATFLOW_CHAT_PRESENCE_WINDOW"); window != "" {
		if d, err := time.ParseDuration(window); err == nil {
			cfg.Chat.PresenceWindow = d
		}
	}
	if window := os.Getenv("CHATFLOW_CHAT_RECENT_WINDOW"); window != "" {
		if n, err := strconv.Atoi(window); err == nil {
			cfg.Chat.RecentWindow = n
		}
	}

	return cfg
}

// configFile mirrors Config with string durations for JSON parsing.
type configFile struct {
	HTTP *struct {
		Host         string `json:"host"`
		Port         int    `json:"port"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"http"`
	Database *struct {
		Path      string `json:"path"`
		QueueSize int    `json:"queue_size"`
	} `json:"database"`
	Auth *struct {
		Secret        string `json:"secret"`
		TokenLifetime string `json:"token_lifetime"`
	} `json:"auth"`
	Chat *struct {
		PresenceWindow string `json:"presence_window"`
		RecentWindow   int    `json:"recent_window"`
	} `json:"chat"`
}

// LoadFromFile reads a JSON configuration file, applying defaults for any
// omitted field.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	if file.HTTP != nil {
		if file.HTTP.Host != "" {
			cfg.HTTP.Host = file.HTTP.Host
		}
		if file.HTTP.Port > 0 {
			cfg.HTTP.Port = file.HTTP.Port
		}
		if d, err := time.ParseDuration(file.HTTP.ReadTimeout); err == nil && file.HTTP.ReadTimeout != "" {
			cfg.HTTP.ReadTimeout = d
		}
		if d, err := time.ParseDuration(file.HTTP.WriteTimeout); err == nil && file.HTTP.WriteTimeout != "" {
			cfg.HTTP.WriteTimeout = d
		}
	}
	if file.Database != nil {
		cfg.Database.Path = file.Database.Path
		if file.Database.QueueSize > 0 {
			cfg.Database.QueueSize = file.Database.QueueSize
		}
	}
	if file.Auth != nil {
		if file.Auth.Secret != "" {
			cfg.Auth.Secret = file.Auth.Secret
		}
		if d, err := time.ParseDuration(file.Auth.TokenLifetime); err == nil && file.Auth.TokenLifetime != "" {
			cfg.Auth.TokenLifetime = d
		}
	}
	if file.Chat != nil {
		if d, err := time.ParseDuration(file.Chat.PresenceWindow); err == nil && file.Chat.PresenceWindow != "" {
			cfg.Chat.PresenceWindow = d
		}
		if file.Chat.RecentWindow > 0 {
			cfg.Chat.RecentWindow = file.Chat.RecentWindow
		}
	}

	return cfg, nil
}

// LoadWithPrecedence loads configuration as file > environment > defaults.
// An empty path skips the file layer.
func LoadWithPrecedence(path string) *Config {
	if path == "" {
		return LoadFromEnv()
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config file error, falling back to environment: %v\n", err)
		return LoadFromEnv()
	}
	return cfg
}
