package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != StoreFile || cfg.Profile != "default" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.HTTPTimeout != 20*time.Second {
		t.Fatalf("expected 20s timeout, got %s", cfg.HTTPTimeout)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("CONSOLE_API_URL", "https://inventario.example.com/api")
	t.Setenv("CONSOLE_PROFILE", "staging")
	t.Setenv("CONSOLE_STORE", "MEMORY")
	t.Setenv("CONSOLE_HTTP_TIMEOUT_SECONDS", "7")
	t.Setenv("DEVBACKEND_TOKEN_TTL", "90m")
	t.Setenv("DEVBACKEND_LOGIN_RPS", "2.5")
	t.Setenv("DEVBACKEND_LOGIN_BURST", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "https://inventario.example.com/api" {
		t.Fatalf("expected CONSOLE_API_URL override, got %s", cfg.APIURL)
	}
	if cfg.Profile != "staging" {
		t.Fatalf("expected CONSOLE_PROFILE override, got %s", cfg.Profile)
	}
	if cfg.Store != StoreMemory {
		t.Fatalf("expected memory store, got %s", cfg.Store)
	}
	if cfg.HTTPTimeout != 7*time.Second {
		t.Fatalf("expected 7s timeout, got %s", cfg.HTTPTimeout)
	}
	if cfg.DevBackend.TokenTTL != 90*time.Minute {
		t.Fatalf("expected 90m ttl, got %s", cfg.DevBackend.TokenTTL)
	}
	if cfg.DevBackend.LoginRPS != 2.5 || cfg.DevBackend.LoginBurst != 3 {
		t.Fatalf("unexpected throttle: %+v", cfg.DevBackend)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.yaml")
	doc := "api_url: http://files.example.com/api\nprofile: from-file\nhttp_timeout: 45s\ndevbackend:\n  secret: file-secret\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONSOLE_CONFIG", path)
	t.Setenv("CONSOLE_PROFILE", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "http://files.example.com/api" {
		t.Fatalf("file value lost: %s", cfg.APIURL)
	}
	if cfg.Profile != "from-env" {
		t.Fatalf("env must win over file, got %s", cfg.Profile)
	}
	if cfg.HTTPTimeout != 45*time.Second {
		t.Fatalf("expected 45s, got %s", cfg.HTTPTimeout)
	}
	if cfg.DevBackend.Secret != "file-secret" || cfg.DevBackend.Addr != ":8000" {
		t.Fatalf("nested overlay wrong: %+v", cfg.DevBackend)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("api_ulr: typo\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := Defaults()
	if err := LoadFile(path, &cfg); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown store", func(c *Config) { c.Store = "redis" }},
		{"sql without dsn", func(c *Config) { c.Store = StoreSQL }},
		{"empty url", func(c *Config) { c.APIURL = " " }},
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	cfg := Defaults()
	cfg.Store = StoreSQL
	cfg.StoreDSN = "postgres://localhost/console"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid sql config rejected: %v", err)
	}
}
