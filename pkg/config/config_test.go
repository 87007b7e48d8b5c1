package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, DefaultHistoryLimit, cfg.Chat.HistoryLimit)
	assert.Equal(t, DefaultMaxHistoryLimit, cfg.Chat.MaxHistoryLimit)
	assert.Equal(t, DefaultPreviewLength, cfg.Chat.PreviewLength)
	assert.True(t, cfg.Notifications.Persist)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL.Duration)
}

func TestLoadConfigParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
storage_dir = "` + filepath.ToSlash(dir) + `"
listen = "0.0.0.0:9000"

[auth]
secret = "0123456789abcdef0123"
token_ttl = "2h"

[chat]
history_limit = 20
ping_period = "5s"

[notifications]
persist = false
socket_path = "/tmp/notify.sock"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL.Duration)
	assert.Equal(t, 20, cfg.Chat.HistoryLimit)
	assert.Equal(t, DefaultMaxHistoryLimit, cfg.Chat.MaxHistoryLimit)
	assert.Equal(t, 5*time.Second, cfg.Chat.PingPeriod.Duration)
	assert.Equal(t, 10*time.Second, cfg.Chat.WriteWait.Duration)
	assert.False(t, cfg.Notifications.Persist)
	assert.Equal(t, "/tmp/notify.sock", cfg.Notifications.SocketPath)
	assert.Equal(t, DefaultQueue, cfg.Notifications.Queue)
	assert.Equal(t, filepath.Join(dir, "huddle.db"), cfg.DBPath())
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresSecret(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())

	cfg.Auth.Secret = "short"
	assert.Error(t, cfg.Validate())
}

func TestSaveTemplateConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := &Config{StorageDir: dir, Auth: AuthConfig{Secret: "a-very-long-generated-secret"}}
	require.NoError(t, cfg.SaveTemplateConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, dir, loaded.StorageDir)
	assert.Equal(t, "a-very-long-generated-secret", loaded.Auth.Secret)
	assert.True(t, loaded.Notifications.Persist)
}
