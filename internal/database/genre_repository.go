package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// GenreRepository handles database operations for genre preferences
type GenreRepository struct {
	db *sqlx.DB
}

// NewGenreRepository creates a new repository instance
func NewGenreRepository(db *sqlx.DB) *GenreRepository {
	return &GenreRepository{db: db}
}

// Toggle flips a genre preference on or off and returns the resulting state
// (true = now preferred).
func (r *GenreRepository) Toggle(ctx context.Context, userID, genreID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`DELETE FROM genre_preferences WHERE user_id = ? AND genre_id = ?`),
		userID, genreID)
	if err != nil {
		return false, fmt.Errorf("failed to toggle genre: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return false, nil
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO genre_preferences (user_id, genre_id) VALUES (?, ?)
		ON CONFLICT (user_id, genre_id) DO NOTHING`), userID, genreID)
	if err != nil {
		return false, fmt.Errorf("failed to toggle genre: %w", err)
	}
	return true, nil
}

// Has reports whether a genre is currently preferred.
func (r *GenreRepository) Has(ctx context.Context, userID, genreID int64) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		r.db.Rebind(`SELECT COUNT(*) FROM genre_preferences WHERE user_id = ? AND genre_id = ?`),
		userID, genreID)
	if err != nil {
		return false, fmt.Errorf("failed to check genre preference: %w", err)
	}
	return count > 0, nil
}

// ListByUser returns the user's preferred genre IDs.
func (r *GenreRepository) ListByUser(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids,
		r.db.Rebind(`SELECT genre_id FROM genre_preferences WHERE user_id = ? ORDER BY genre_id`),
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list genre preferences: %w", err)
	}
	return ids, nil
}
