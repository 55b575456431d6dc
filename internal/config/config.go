package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the process reads from the environment. It is
// loaded once at startup; nothing else in the codebase touches os.Getenv.
type Config struct {
	// TelegramToken authenticates the bot against the Telegram API.
	TelegramToken string
	// TMDBAPIKey authenticates against the metadata catalog.
	TMDBAPIKey string
	// TMDBBaseURL is overridable for tests.
	TMDBBaseURL string
	// DatabaseURL selects Postgres when set; otherwise SQLite is used.
	DatabaseURL string
	// SQLitePath is the SQLite file location.
	SQLitePath string
	// AliasFile is an optional xlsx/csv sheet of title aliases.
	AliasFile string
	// WatchInterval is the subscription watcher cadence.
	WatchInterval time.Duration
	// GatewayTimeout bounds every single catalog call.
	GatewayTimeout time.Duration
	// WatcherConcurrency bounds parallel catalog calls per watcher cycle.
	WatcherConcurrency int64
	// WatcherRPS rate-limits catalog calls issued by the watcher.
	WatcherRPS float64
}

// Load reads the configuration from the environment. Missing credentials are
// a startup failure: the process must not come up half-configured.
func Load() (*Config, error) {
	cfg := &Config{
		TelegramToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TMDBAPIKey:         os.Getenv("TMDB_API_KEY"),
		TMDBBaseURL:        envOr("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SQLitePath:         envOr("SQLITE_PATH", "data/movies.db"),
		AliasFile:          os.Getenv("TITLE_ALIAS_FILE"),
		WatchInterval:      envDuration("WATCH_INTERVAL", time.Hour),
		GatewayTimeout:     envDuration("GATEWAY_TIMEOUT", 10*time.Second),
		WatcherConcurrency: envInt64("WATCHER_CONCURRENCY", 4),
		WatcherRPS:         envFloat("WATCHER_RPS", 5),
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	if cfg.TMDBAPIKey == "" {
		return nil, fmt.Errorf("TMDB_API_KEY environment variable is not set")
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}
