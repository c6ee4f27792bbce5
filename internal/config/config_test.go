package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp keeps Load from picking up a .env file next to the package
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"APP_ENV", "PORT", "TMDB_KEY", "TMDB_READ_TOKEN", "TMDB_URL", "REDIS_ENABLED",
		"CACHE_TTL", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW", "LOG_FILE", "WATCHLIST_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	clearEnv(t)
	t.Setenv("TMDB_KEY", "abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Server.Port)
	assert.Equal(t, "https://api.themoviedb.org/3", cfg.TMDB.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 120, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.Equal(t, "watchlist.json", cfg.Watchlist.Path)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoadRequiresCredential(t *testing.T) {
	chdirTemp(t)
	clearEnv(t)

	_, err := Load()
	assert.ErrorContains(t, err, "TMDB_KEY")

	t.Setenv("TMDB_READ_TOKEN", "token")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "token", cfg.TMDB.ReadToken)
}

func TestLoadParsesDurations(t *testing.T) {
	chdirTemp(t)
	clearEnv(t)
	t.Setenv("TMDB_KEY", "abc")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("RATE_LIMIT_WINDOW", "10s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Window)

	t.Setenv("CACHE_TTL", "soon")
	_, err = Load()
	assert.ErrorContains(t, err, "CACHE_TTL")
}

func TestLoadReadsDotEnv(t *testing.T) {
	chdirTemp(t)
	clearEnv(t)
	require.NoError(t, os.Unsetenv("TMDB_KEY"))
	require.NoError(t, os.WriteFile(filepath.Join(".", ".env"), []byte("TMDB_KEY=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("TMDB_KEY") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.TMDB.APIKey)
}
