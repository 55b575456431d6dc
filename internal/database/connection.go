package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/havtorin/moviebot/internal/config"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("database: not found")

// Connect opens the store. Postgres is used when DATABASE_URL is set,
// otherwise a local SQLite file under the data directory.
func Connect(cfg *config.Config) (*sqlx.DB, error) {
	if cfg.DatabaseURL != "" {
		db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return db, initializeSchema(db)
	}

	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", cfg.SQLitePath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, initializeSchema(db)
}

// initializeSchema creates the tables if they don't exist. All writes in the
// store are single-row inserts/upserts, so no cross-table constraints beyond
// foreign keys are needed.
func initializeSchema(db *sqlx.DB) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "postgres" {
		pk = "BIGSERIAL PRIMARY KEY"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %s,
			chat_id BIGINT UNIQUE NOT NULL,
			state TEXT NOT NULL DEFAULT 'new',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS favorites (
			id %s,
			user_id BIGINT NOT NULL REFERENCES users(id),
			title_id BIGINT NOT NULL,
			title TEXT NOT NULL,
			kind TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, title_id)
		)`, pk),
		`CREATE TABLE IF NOT EXISTS genre_preferences (
			user_id BIGINT NOT NULL REFERENCES users(id),
			genre_id BIGINT NOT NULL,
			PRIMARY KEY(user_id, genre_id)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS feedback_events (
			id %s,
			user_id BIGINT NOT NULL REFERENCES users(id),
			title_id BIGINT NOT NULL,
			kind TEXT NOT NULL,
			weight REAL NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, pk),
		`CREATE INDEX IF NOT EXISTS idx_feedback_user_title ON feedback_events(user_id, title_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS calibration_candidates (
			id %s,
			user_id BIGINT NOT NULL REFERENCES users(id),
			title_id BIGINT NOT NULL,
			title TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'unset',
			shown BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, title_id)
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS subscriptions (
			id %s,
			user_id BIGINT NOT NULL REFERENCES users(id),
			title_id BIGINT NOT NULL,
			title TEXT NOT NULL,
			last_marker TEXT NOT NULL DEFAULT '',
			last_notified TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, title_id)
		)`, pk),
		`CREATE TABLE IF NOT EXISTS exposures (
			user_id BIGINT NOT NULL REFERENCES users(id),
			title_id BIGINT NOT NULL,
			times_shown INTEGER NOT NULL DEFAULT 0,
			last_shown_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_action TEXT NOT NULL DEFAULT '',
			PRIMARY KEY(user_id, title_id)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
