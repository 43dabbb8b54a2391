package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultStorePath = "tasks.json"
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"

	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

type Config struct {
	Store StoreConfig `json:"store"`
	Log   LogConfig   `json:"log"`
}

type StoreConfig struct {
	Path    string `json:"path"`
	Backend string `json:"backend"` // "json" (default) or "sqlite"
	Lock    bool   `json:"lock"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format,omitempty"` // "text" (default) or "json"
}

func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:    DefaultStorePath,
			Backend: BackendJSON,
			Lock:    true,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".tasktracker")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if path := os.Getenv("TASKTRACKER_FILE"); path != "" {
		cfg.Store.Path = path
	}
	if backend := os.Getenv("TASKTRACKER_BACKEND"); backend != "" {
		cfg.Store.Backend = backend
	}
	if lock := os.Getenv("TASKTRACKER_LOCK"); lock != "" {
		if parsed, err := strconv.ParseBool(lock); err == nil {
			cfg.Store.Lock = parsed
		}
	}
	if level := os.Getenv("TASKTRACKER_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	} else if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if format := os.Getenv("TASKTRACKER_LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendJSON
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	return cfg, nil
}

// Validate rejects settings no component can honour.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store.Backend) {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q (want %s or %s)", c.Store.Backend, BackendJSON, BackendSQLite)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
