package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap/zapcore"
)

// Config represents the global ~/.phonecontact/config.toml.
// Priority: ENV > file > defaults (via env-default tags).
type Config struct {
	DefaultSession string       `toml:"default_session" env:"PHONECONTACT_SESSION" env-default:"main"`
	API            APIConfig    `toml:"api"`
	Log            LogConfig    `toml:"log"`
	Search         SearchConfig `toml:"search"`
	Sync           SyncConfig   `toml:"sync"`
}

// APIConfig holds the remote contacts API settings.
type APIConfig struct {
	BaseURL string `toml:"base_url" env:"PHONECONTACT_API_BASE_URL" env-default:"http://localhost:8080/api"`
	Key     string `toml:"key"      env:"PHONECONTACT_API_KEY"`
	// Timeout is a Go duration string such as "30s".
	Timeout string `toml:"timeout"  env:"PHONECONTACT_API_TIMEOUT"  env-default:"30s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level" env:"PHONECONTACT_LOG_LEVEL" env-default:"info"`
}

// SearchConfig holds search history limits.
type SearchConfig struct {
	HistoryLimit    int `toml:"history_limit"    env-default:"10"`
	SuggestionLimit int `toml:"suggestion_limit" env-default:"5"`
}

// SyncConfig controls the daemon's startup sync.
type SyncConfig struct {
	SkipOnStart bool `toml:"skip_on_start" env:"PHONECONTACT_SYNC_SKIP_ON_START"`
}

// Load reads config from path, applying environment overrides and defaults.
// A missing file yields a config built from the environment and defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	} else {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that cannot be expressed as tags.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url %q: must be an http(s) URL", c.API.BaseURL)
	}
	if _, err := c.APITimeout(); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Search.HistoryLimit < 1 || c.Search.SuggestionLimit < 1 {
		return fmt.Errorf("search limits must be positive")
	}
	if c.Search.SuggestionLimit > c.Search.HistoryLimit {
		return fmt.Errorf("search.suggestion_limit (%d) exceeds search.history_limit (%d)",
			c.Search.SuggestionLimit, c.Search.HistoryLimit)
	}
	return nil
}

// APITimeout returns the parsed per-call remote timeout.
func (c *Config) APITimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 0, fmt.Errorf("api.timeout %q: %w", c.API.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("api.timeout %q: must be positive", c.API.Timeout)
	}
	return d, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
