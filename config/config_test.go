package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("loads values from file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		content := `
store:
  path: /var/lib/chatsync
  snapshot_depth: 3
  reset_ephemerals_on_open: false
logging:
  level: debug
  format: text
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/chatsync", cfg.Store.Path)
		assert.Equal(t, 3, cfg.Store.SnapshotDepth)
		assert.False(t, cfg.Store.ResetEphemeralsOnOpen)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "text", cfg.Logging.Format)
	})

	t.Run("applies defaults for missing keys", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("store:\n  path: ./data\n"), 0644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "./data", cfg.Store.Path)
		assert.Equal(t, 2, cfg.Store.SnapshotDepth)
		assert.True(t, cfg.Store.ResetEphemeralsOnOpen)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "json", cfg.Logging.Format)
		assert.Equal(t, "stdout", cfg.Logging.Output)
	})

	t.Run("fails for missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.Store.Path)
	assert.Equal(t, 2, cfg.Store.SnapshotDepth)
	assert.Equal(t, "info", cfg.Logging.Level)
}
