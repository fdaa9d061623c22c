package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default configuration invalid: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }},
		{"huge port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"zero read timeout", func(c *Config) { c.HTTP.ReadTimeout = 0 }},
		{"empty secret", func(c *Config) { c.Auth.Secret = "" }},
		{"zero token lifetime", func(c *Config) { c.Auth.TokenLifetime = 0 }},
		{"zero presence window", func(c *Config) { c.Chat.PresenceWindow = 0 }},
		{"zero recent window", func(c *Config) { c.Chat.RecentWindow = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHATFLOW_HTTP_PORT", "9090")
	t.Setenv("CHATFLOW_DATABASE_PATH", "")
	t.Setenv("CHATFLOW_AUTH_SECRET", "env-secret")
	t.Setenv("CHATFLOW_CHAT_PRESENCE_WINDOW", "45s")
	t.Setenv("CHATFLOW_CHAT_RECENT_WINDOW", "25")

	cfg := LoadFromEnv()
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Database.Path != "" {
		t.Errorf("database path = %q, want disabled", cfg.Database.Path)
	}
	if cfg.Auth.Secret != "env-secret" {
		t.Errorf("secret = %q", cfg.Auth.Secret)
	}
	if cfg.Chat.PresenceWindow != 45*time.Second {
		t.Errorf("presence window = %v", cfg.Chat.PresenceWindow)
	}
	if cfg.Chat.RecentWindow != 25 {
		t.Errorf("recent window = %d", cfg.Chat.RecentWindow)
	}
}

func TestLoadFromEnvIgnoresMalformed(t *testing.T) {
	t.Setenv("CHATFLOW_HTTP_PORT", "not-a-number")
	t.Setenv("CHATFLOW_CHAT_PRESENCE_WINDOW", "soon")

	cfg := LoadFromEnv()
	if cfg.HTTP.Port != 8080 {
		t.Errorf("malformed port should keep default, got %d", cfg.HTTP.Port)
	}
	if cfg.Chat.PresenceWindow != 30*time.Second {
		t.Errorf("malformed duration should keep default, got %v", cfg.Chat.PresenceWindow)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"http": {"port": 3000, "read_timeout": "10s"},
		"database": {"path": "/tmp/chat.db", "queue_size": 64},
		"auth": {"secret": "file-secret", "token_lifetime": "2h"},
		"chat": {"presence_window": "1m", "recent_window": 10}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.HTTP.Port != 3000 || cfg.HTTP.ReadTimeout != 10*time.Second {
		t.Errorf("http section: %+v", cfg.HTTP)
	}
	if cfg.HTTP.Host != "0.0.0.0" {
		t.Errorf("omitted host should keep default, got %q", cfg.HTTP.Host)
	}
	if cfg.Database.Path != "/tmp/chat.db" || cfg.Database.QueueSize != 64 {
		t.Errorf("database section: %+v", cfg.Database)
	}
	if cfg.Auth.Secret != "file-secret" || cfg.Auth.TokenLifetime != 2*time.Hour {
		t.Errorf("auth section: %+v", cfg.Auth)
	}
	if cfg.Chat.PresenceWindow != time.Minute || cfg.Chat.RecentWindow != 10 {
		t.Errorf("chat section: %+v", cfg.Chat)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("file config invalid: %v", err)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/config.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadWithPrecedenceFallsBack(t *testing.T) {
	cfg := LoadWithPrecedence("")
	if cfg == nil || cfg.HTTP.Port == 0 {
		t.Error("empty path should load environment config")
	}

	cfg = LoadWithPrecedence("/nonexistent/config.json")
	if cfg == nil || cfg.HTTP.Port == 0 {
		t.Error("bad file should fall back to environment config")
	}
}
