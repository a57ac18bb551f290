package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/yuna-go/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig_FileAndDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
server:
  port: 9090
library:
  anime_dir: ~/Anime
scanner:
  interval: 30m
downloader:
  prefer_nm3u8: false
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, filepath.Join(home, "Anime"), config.Library.AnimeDir)
	assert.Equal(t, filepath.Join(home, "Media", "Series"), config.Library.SeriesDir)
	assert.Equal(t, 30*time.Minute, config.Scanner.Interval)
	assert.False(t, config.Downloader.PreferNm3u8)
	assert.Equal(t, 16, config.Downloader.ThreadCount)
}

func TestLoadConfig_LegacyEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DESTINATION_FOLDER", "/srv/anime")
	t.Setenv("NM3U8_THREAD_COUNT", "8")
	t.Setenv("PREFER_NM3U8", "false")
	t.Setenv("UPDATE_TIME", "15")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("YUNA_SERVER_PORT", "7000")

	config, err := LoadConfig(writeConfig(t, "server:\n  host: 0.0.0.0\n"))
	require.NoError(t, err)

	assert.Equal(t, "/srv/anime", config.Library.AnimeDir)
	assert.Equal(t, 8, config.Downloader.ThreadCount)
	assert.False(t, config.Downloader.PreferNm3u8)
	assert.Equal(t, 15*time.Minute, config.Scanner.Interval)
	assert.True(t, config.Telegram.Enabled)
	assert.Equal(t, int64(42), config.Telegram.ChatID)
	assert.Equal(t, 7000, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := LoadConfig(writeConfig(t, "server:\n  port: 70000\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "status:\n  backend: redis\n"))
	assert.Error(t, err)

	t.Setenv("UPDATE_TIME", "soon")
	_, err = LoadConfig(writeConfig(t, "server:\n  port: 8080\n"))
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	config := domain.DefaultConfig()
	config.Library.AnimeDir = "/data/anime"
	config.Scanner.Interval = 45 * time.Minute
	config.Jellyfin.URL = "http://jellyfin:8096"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(config, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/anime", loaded.Library.AnimeDir)
	assert.Equal(t, 45*time.Minute, loaded.Scanner.Interval)
	assert.Equal(t, "http://jellyfin:8096", loaded.Jellyfin.URL)
	assert.Equal(t, config.Downloader.ThreadCount, loaded.Downloader.ThreadCount)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("YUNA_TEST_DOTENV=loaded\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("YUNA_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "loaded", os.Getenv("YUNA_TEST_DOTENV"))
}

func TestLoadConfig_Auth(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	config, err := LoadConfig(writeConfig(t, "server:\n  port: 8080\n"))
	require.NoError(t, err)
	assert.False(t, config.Auth.Enabled)
	assert.Equal(t, "admin", config.Auth.Username)
	assert.Equal(t, 24*time.Hour, config.Auth.TokenTTL)

	t.Setenv("YUNA_PASSWORD", "hunter2")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_EXPIRE_HOURS", "6")
	config, err = LoadConfig(writeConfig(t, "server:\n  port: 8080\n"))
	require.NoError(t, err)
	assert.True(t, config.Auth.Enabled)
	assert.Equal(t, "hunter2", config.Auth.Password)
	assert.Equal(t, "s3cret", config.Auth.Secret)
	assert.Equal(t, 6*time.Hour, config.Auth.TokenTTL)

	// an explicit enabled: false wins over a configured password
	config, err = LoadConfig(writeConfig(t, "auth:\n  enabled: false\n"))
	require.NoError(t, err)
	assert.False(t, config.Auth.Enabled)
}

func TestLoadConfig_AuthWithoutPassword(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, err := LoadConfig(writeConfig(t, "auth:\n  enabled: true\n"))
	assert.Error(t, err)
}
