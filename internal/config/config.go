// Package config loads console and dev backend settings from the
// environment, optionally layered over a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Credential store kinds.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreSQL    = "sql"
)

type Config struct {
	APIURL      string        `yaml:"api_url"`
	Profile     string        `yaml:"profile"`
	Store       string        `yaml:"store"`
	StoreDSN    string        `yaml:"store_dsn"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	DevBackend  DevBackend    `yaml:"devbackend"`
}

// DevBackend configures the local reference backend.
type DevBackend struct {
	Addr       string        `yaml:"addr"`
	Secret     string        `yaml:"secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	LoginRPS   float64       `yaml:"login_rps"`
	LoginBurst int           `yaml:"login_burst"`
	UsersFile  string        `yaml:"users_file"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		APIURL:      "http://127.0.0.1:8000/api",
		Profile:     "default",
		Store:       StoreFile,
		HTTPTimeout: 20 * time.Second,
		DevBackend: DevBackend{
			Addr:       ":8000",
			TokenTTL:   time.Hour,
			LoginRPS:   5,
			LoginBurst: 10,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONSOLE_CONFIG when set, then environment overrides.
func Load() (Config, error) {
	cfg := Defaults()
	if path := getenv("CONSOLE_CONFIG", ""); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML document at path onto cfg. Unknown keys are rejected.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.APIURL = getenv("CONSOLE_API_URL", cfg.APIURL)
	cfg.Profile = getenv("CONSOLE_PROFILE", cfg.Profile)
	cfg.Store = strings.ToLower(getenv("CONSOLE_STORE", cfg.Store))
	cfg.StoreDSN = getenv("CONSOLE_STORE_DSN", cfg.StoreDSN)
	cfg.HTTPTimeout = getenvDuration("CONSOLE_HTTP_TIMEOUT", cfg.HTTPTimeout)

	cfg.DevBackend.Addr = getenv("DEVBACKEND_ADDR", cfg.DevBackend.Addr)
	cfg.DevBackend.Secret = getenv("DEVBACKEND_SECRET", cfg.DevBackend.Secret)
	cfg.DevBackend.TokenTTL = getenvDuration("DEVBACKEND_TOKEN_TTL", cfg.DevBackend.TokenTTL)
	cfg.DevBackend.LoginRPS = getenvFloat("DEVBACKEND_LOGIN_RPS", cfg.DevBackend.LoginRPS)
	cfg.DevBackend.LoginBurst = getenvInt("DEVBACKEND_LOGIN_BURST", cfg.DevBackend.LoginBurst)
	cfg.DevBackend.UsersFile = getenv("DEVBACKEND_USERS_FILE", cfg.DevBackend.UsersFile)
}

// Validate rejects settings the console cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return errors.New("config: api url is required")
	}
	if strings.TrimSpace(c.Profile) == "" {
		return errors.New("config: profile is required")
	}
	switch c.Store {
	case StoreFile, StoreMemory:
	case StoreSQL:
		if c.StoreDSN == "" {
			return errors.New("config: CONSOLE_STORE_DSN is required for the sql store")
		}
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("config: http timeout must be positive")
	}
	return nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
