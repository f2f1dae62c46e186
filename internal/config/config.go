// Package config is the global, viper-backed configuration layer:
// daemon poll interval override, a read_permits value, and log level,
// read from a per-user TOML file with FRG_* environment overrides. The
// per-source .frg/source.yaml file is package sourcefile.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Config is the resolved global configuration.
type Config struct {
	// SyncInterval is the base sleep between reconciliation cycles,
	// before jitter.
	SyncInterval time.Duration `toml:"sync_interval"`
	// ReadPermits is loaded and validated here but is not passed to the
	// REST-forge backend, whose read-concurrency cap is always
	// ratelimit.DefaultReadPermits.
	ReadPermits int `toml:"read_permits"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// Defaults returns the built-in configuration values.
func Defaults() Config {
	return Config{
		SyncInterval: 30 * time.Second,
		ReadPermits:  80,
		LogLevel:     "info",
	}
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(base, "frg"), nil
}

// CacheDir returns the per-user cache directory holding the database,
// the daemon lock, and the daemon log.
func CacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache directory: %w", err)
	}
	return filepath.Join(base, "frg"), nil
}

// DBPath returns the cache database path under CacheDir.
func DBPath() (string, error) {
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache.db"), nil
}

// Load reads config.toml from Dir (a missing file yields defaults) and
// applies FRG_* environment overrides (FRG_SYNC_INTERVAL,
// FRG_READ_PERMITS, FRG_LOG_LEVEL).
func Load() (Config, error) {
	dir, err := Dir()
	if err != nil {
		return Defaults(), err
	}
	return loadFrom(filepath.Join(dir, "config.toml"))
}

func loadFrom(path string) (Config, error) {
	defaults := Defaults()

	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigFile(path)
	v.SetDefault("sync_interval", defaults.SyncInterval.String())
	v.SetDefault("read_permits", defaults.ReadPermits)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetEnvPrefix("FRG")
	v.AutomaticEnv()

	// A missing file is not an error; a malformed one is.
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return defaults, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		ReadPermits: v.GetInt("read_permits"),
		LogLevel:    v.GetString("log_level"),
	}
	interval, err := time.ParseDuration(v.GetString("sync_interval"))
	if err != nil {
		return defaults, fmt.Errorf("parse sync_interval: %w", err)
	}
	cfg.SyncInterval = interval

	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = defaults.SyncInterval
	}
	if cfg.ReadPermits <= 0 {
		cfg.ReadPermits = defaults.ReadPermits
	}
	return cfg, nil
}

// WriteDefault scaffolds config.toml with the default values if no file
// exists yet, and returns its path.
func WriteDefault() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	type fileShape struct {
		SyncInterval string `toml:"sync_interval"`
		ReadPermits  int    `toml:"read_permits"`
		LogLevel     string `toml:"log_level"`
	}
	d := Defaults()
	if err := toml.NewEncoder(f).Encode(fileShape{
		SyncInterval: d.SyncInterval.String(),
		ReadPermits:  d.ReadPermits,
		LogLevel:     d.LogLevel,
	}); err != nil {
		return "", fmt.Errorf("write default config: %w", err)
	}
	return path, nil
}
