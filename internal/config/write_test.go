package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDefault_Loads(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("GALLERIA_ROOT", filepath.Join(tmp, "dl"))
	path := filepath.Join(tmp, "nested", "config.toml")

	require.NoError(t, WriteDefault(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[network]")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmp, "dl"), cfg.Download.Root)
	assert.Equal(t, "{page:03}.{ext}", cfg.Services["nhentai"].Formats["Gallery ID(s)"].FilenameFormat)
}

func TestConfig_WriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.toml")
	cfg := &Config{Download: DownloadConfig{Root: "/x"}}
	cfg.applyDefaults()

	require.NoError(t, cfg.Write(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Network.ReplyTimeout, loaded.Network.ReplyTimeout)
	assert.Equal(t, "/x", loaded.Download.Root)
}

func TestConfig_WriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	cfg := &Config{Download: DownloadConfig{Root: "/x"}, Database: DatabaseConfig{Path: "/tmp/lib.db"}}
	cfg.applyDefaults()

	require.NoError(t, cfg.Write(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"location": "/tmp/lib.db"`)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/lib.db", loaded.Database.Path)
	assert.Equal(t, cfg.Network.RequestCooldown, loaded.Network.RequestCooldown)
}
