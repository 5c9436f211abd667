package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Checkpoint.Backend)
	assert.Equal(t, 4, cfg.Limits.MaxConcurrency)
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
checkpoint:
  backend: sqlite
  path: run.db
limits:
  max_concurrency: 8
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Checkpoint.Backend)
	assert.Equal(t, "run.db", cfg.Checkpoint.Path)
	assert.Equal(t, 8, cfg.Limits.MaxConcurrency)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("checkpoint:\n  backend: sqlite\n"), 0o644))

	t.Setenv("NORMCODE_CHECKPOINT_BACKEND", "memory")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Checkpoint.Backend)
}
