package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/havtorin/moviebot/pkg/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreateByChatID returns the user owning a chat, creating the row on
// first contact.
func (r *UserRepository) GetOrCreateByChatID(ctx context.Context, chatID int64) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		r.db.Rebind(`SELECT id, chat_id, state, created_at FROM users WHERE chat_id = ?`), chatID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	// Two first contacts from the same chat can race past the select; the
	// loser's insert is a no-op and both read the same row back.
	if _, err := r.db.ExecContext(ctx,
		r.db.Rebind(`INSERT INTO users (chat_id, state) VALUES (?, ?)
			ON CONFLICT (chat_id) DO NOTHING`),
		chatID, models.StateNew); err != nil {
		return models.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	err = r.db.GetContext(ctx, &user,
		r.db.Rebind(`SELECT id, chat_id, state, created_at FROM users WHERE chat_id = ?`), chatID)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to read created user: %w", err)
	}
	return user, nil
}

// GetByID returns a user by internal ID.
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		r.db.Rebind(`SELECT id, chat_id, state, created_at FROM users WHERE id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetState persists the user's calibration state.
func (r *UserRepository) SetState(ctx context.Context, userID int64, state models.CalibrationState) error {
	_, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE users SET state = ? WHERE id = ?`), state, userID)
	if err != nil {
		return fmt.Errorf("failed to set user state: %w", err)
	}
	return nil
}
