package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Queue.Backend)
	assert.Equal(t, SandboxContainer, cfg.Sandbox.Backend)
	assert.Equal(t, 10*time.Second, cfg.Sandbox.WallTimeout)
	assert.Equal(t, int64(128*1024*1024), cfg.Sandbox.MemoryBytes)
	assert.Equal(t, 2, cfg.AI.Retries)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.False(t, cfg.AI.Primary.Configured())
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Queue.Backend)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
logger:
  level: debug
sandbox:
  backend: disabled
server:
  port: 9999
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, SandboxDisabled, cfg.Sandbox.Backend)
	assert.Equal(t, 9999, cfg.Server.Port)
	// Untouched sections keep their defaults.
	assert.Equal(t, "memory", cfg.Queue.Backend)
}

func TestWriteDefaultRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".codeguard.yaml")

	require.NoError(t, WriteDefault(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sandbox:")

	assert.Error(t, WriteDefault(path))
}
