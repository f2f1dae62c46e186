package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := loadFrom(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestLoadReadsTomlFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("sync_interval = \"2m\"\nread_permits = 16\nlog_level = \"debug\"\n"), 0o644))

	cfg, err := loadFrom(path)
	require.NoError(t, err)
	require.Equal(t, 2*time.Minute, cfg.SyncInterval)
	require.Equal(t, 16, cfg.ReadPermits)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("read_permits = 16\n"), 0o644))
	t.Setenv("FRG_READ_PERMITS", "4")

	cfg, err := loadFrom(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.ReadPermits)
}

func TestLoadMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("sync_interval = = nope"), 0o644))

	_, err := loadFrom(path)
	require.Error(t, err)
}
