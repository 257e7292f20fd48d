package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Backends a client can talk to.
const (
	BackendSQL    = "sql"
	BackendRedis  = "redis"
	BackendDaemon = "daemon"
)

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config represents the global ~/.convo/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`

	// Identity of the local user.
	UserID   string `toml:"user_id"`
	Username string `toml:"username"`

	// Backend selects the remote channel: sql, redis or daemon.
	Backend      string `toml:"backend"`
	DatabasePath string `toml:"database_path"` // empty = profile default
	RedisURL     string `toml:"redis_url"`

	PageSize          int      `toml:"page_size"`
	TypingTimeout     Duration `toml:"typing_timeout"`
	HeartbeatInterval Duration `toml:"heartbeat_interval"`
	RefreshInterval   Duration `toml:"refresh_interval"`
	EditWindow        Duration `toml:"edit_window"`
	AutoRetry         int      `toml:"auto_retry"`

	// MetricsAddr enables the daemon's admin HTTP listener (e.g. "127.0.0.1:9464").
	MetricsAddr string `toml:"metrics_addr"`
	LogLevel    string `toml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultProfile:    "main",
		Backend:           BackendSQL,
		RedisURL:          "redis://localhost:6379/0",
		PageSize:          10,
		TypingTimeout:     Duration{10 * time.Second},
		HeartbeatInterval: Duration{5 * time.Second},
		RefreshInterval:   Duration{15 * time.Second},
		EditWindow:        Duration{15 * time.Minute},
		LogLevel:          "info",
	}
}

// Load reads config from the given path on top of the defaults. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve builds the effective configuration: defaults, then the file at path
// when it exists, then CONVO_* environment variables. A .env file in the
// working directory is loaded into the environment first.
func Resolve(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CONVO_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"CONVO_PROFILE":       &c.DefaultProfile,
		"CONVO_USER_ID":       &c.UserID,
		"CONVO_USERNAME":      &c.Username,
		"CONVO_BACKEND":       &c.Backend,
		"CONVO_DATABASE_PATH": &c.DatabasePath,
		"CONVO_REDIS_URL":     &c.RedisURL,
		"CONVO_METRICS_ADDR":  &c.MetricsAddr,
		"CONVO_LOG_LEVEL":     &c.LogLevel,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CONVO_PAGE_SIZE":  &c.PageSize,
		"CONVO_AUTO_RETRY": &c.AutoRetry,
	}
	for key, dst := range ints {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	durs := map[string]*Duration{
		"CONVO_TYPING_TIMEOUT":     &c.TypingTimeout,
		"CONVO_HEARTBEAT_INTERVAL": &c.HeartbeatInterval,
		"CONVO_REFRESH_INTERVAL":   &c.RefreshInterval,
		"CONVO_EDIT_WINDOW":        &c.EditWindow,
	}
	for key, dst := range durs {
		if v := getenv(key); v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	return nil
}

// Validate rejects configurations no client can run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQL, BackendRedis, BackendDaemon:
	default:
		return fmt.Errorf("backend %q: want %s, %s or %s", c.Backend, BackendSQL, BackendRedis, BackendDaemon)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.AutoRetry < 0 {
		return fmt.Errorf("auto_retry must not be negative, got %d", c.AutoRetry)
	}
	for name, d := range map[string]Duration{
		"typing_timeout":     c.TypingTimeout,
		"heartbeat_interval": c.HeartbeatInterval,
		"refresh_interval":   c.RefreshInterval,
		"edit_window":        c.EditWindow,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
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
