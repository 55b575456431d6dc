package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresCredentials(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TMDB_API_KEY", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	_, err = Load()
	require.Error(t, err, "the catalog key is just as mandatory")

	t.Setenv("TMDB_API_KEY", "key")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "token", cfg.TelegramToken)
	assert.Equal(t, "key", cfg.TMDBAPIKey)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TMDB_API_KEY", "key")
	t.Setenv("TMDB_BASE_URL", "")
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("WATCH_INTERVAL", "")
	t.Setenv("WATCHER_CONCURRENCY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.themoviedb.org/3", cfg.TMDBBaseURL)
	assert.Equal(t, time.Hour, cfg.WatchInterval)
	assert.Equal(t, int64(4), cfg.WatcherConcurrency)
	assert.Equal(t, "data/movies.db", cfg.SQLitePath)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TMDB_API_KEY", "key")
	t.Setenv("WATCH_INTERVAL", "30m")
	t.Setenv("WATCHER_CONCURRENCY", "8")
	t.Setenv("WATCHER_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.WatchInterval)
	assert.Equal(t, int64(8), cfg.WatcherConcurrency)
	assert.Equal(t, 2.5, cfg.WatcherRPS)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TMDB_API_KEY", "key")
	t.Setenv("WATCH_INTERVAL", "soon")
	t.Setenv("WATCHER_CONCURRENCY", "-3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.WatchInterval, "unparseable values fall back to defaults")
	assert.Equal(t, int64(4), cfg.WatcherConcurrency, "non-positive values fall back to defaults")
}
