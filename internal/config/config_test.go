package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "k")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("FETCHER_TIMEOUT", "")
	t.Setenv("EMBED_PROVIDERS", "")
	t.Setenv("ALLOW_PLAYLIST_OVERRIDE", "")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "k", c.TMDBAPIKey)
	assert.Equal(t, DefaultServerPort, c.ServerPort)
	assert.Equal(t, DefaultTimeout, c.Timeout)
	assert.Equal(t, DefaultTMDBBaseURL, c.TMDBBaseURL)
	assert.Equal(t, int64(DefaultMaxPlaylistBytes), c.MaxPlaylistBytes)
	assert.Equal(t, DefaultEmbedProviders, c.EmbedProviders)
	assert.False(t, c.AllowPlaylistOverride)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "k")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("FETCHER_TIMEOUT", "5s")
	t.Setenv("CACHE_TTL", "1m")
	t.Setenv("MAX_PLAYLIST_BYTES", "1024")
	t.Setenv("EMBED_PROVIDERS", "https://a/{id}, ,https://b/{type}/{id}")
	t.Setenv("IPTV_PLAYLIST_URL", "https://iptv-org.github.io/iptv/index.m3u")
	t.Setenv("ALLOW_PLAYLIST_OVERRIDE", "true")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", c.ServerPort)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, time.Minute, c.CacheTTL)
	assert.Equal(t, int64(1024), c.MaxPlaylistBytes)
	assert.Equal(t, []string{"https://a/{id}", "https://b/{type}/{id}"}, c.EmbedProviders)
	assert.Equal(t, "https://iptv-org.github.io/iptv/index.m3u", c.IPTVPlaylistURL)
	assert.True(t, c.AllowPlaylistOverride)
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_port: "8181"
tmdb_api_key: file-key
timeout: 3s
cache_ttl: 90s
redis_url: redis://localhost:6379/0
allow_playlist_override: true
embed_providers:
  - https://player.example/{type}/{id}
`), 0o600))

	c, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "8181", c.ServerPort)
	assert.Equal(t, "file-key", c.TMDBAPIKey)
	assert.Equal(t, 3*time.Second, c.Timeout)
	assert.Equal(t, 90*time.Second, c.CacheTTL)
	assert.Equal(t, "redis://localhost:6379/0", c.RedisURL)
	assert.Equal(t, []string{"https://player.example/{type}/{id}"}, c.EmbedProviders)
	assert.Equal(t, DefaultUserAgent, c.UserAgent)
	assert.True(t, c.AllowPlaylistOverride)
}

func TestLoadFromFile_KeyFromEnv(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "env-key")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_port: \"1\"\n"), 0o600))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", c.TMDBAPIKey)
}

func TestLoadFromFile_MissingKey(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_port: \"1\"\n"), 0o600))

	_, err := LoadFromFile(path)
	assert.ErrorIs(t, err, ErrMissingTMDBKey)
}

func TestApplyEnvFile(t *testing.T) {
	t.Setenv("RV_PRESET", "kept")
	os.Unsetenv("RV_QUOTED")
	os.Unsetenv("RV_EXPORTED")
	t.Cleanup(func() {
		os.Unsetenv("RV_QUOTED")
		os.Unsetenv("RV_EXPORTED")
	})

	applyEnvFile([]byte(`
# comment
RV_PRESET=overwritten
RV_QUOTED="hello world"
export RV_EXPORTED=yes
not-a-pair
`))

	assert.Equal(t, "kept", os.Getenv("RV_PRESET"))
	assert.Equal(t, "hello world", os.Getenv("RV_QUOTED"))
	assert.Equal(t, "yes", os.Getenv("RV_EXPORTED"))
}

func TestLoadEnvFilesFrom_LocalWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RV_LAYER=base\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("RV_LAYER=local\n"), 0o600))
	os.Unsetenv("RV_LAYER")
	t.Cleanup(func() { os.Unsetenv("RV_LAYER") })

	loadEnvFilesFrom(dir)

	assert.Equal(t, "local", os.Getenv("RV_LAYER"))
}
