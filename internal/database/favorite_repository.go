package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/havtorin/moviebot/pkg/models"
)

// FavoriteRepository handles database operations for favorite titles
type FavoriteRepository struct {
	db *sqlx.DB
}

// NewFavoriteRepository creates a new repository instance
func NewFavoriteRepository(db *sqlx.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Add records a favorite. Re-adding the same (user, title) is a no-op.
func (r *FavoriteRepository) Add(ctx context.Context, fav models.FavoriteTitle) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO favorites (user_id, title_id, title, kind)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, title_id) DO NOTHING`),
		fav.UserID, fav.TitleID, fav.Title, fav.Kind)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

// ListByUser returns all favorites of one user.
func (r *FavoriteRepository) ListByUser(ctx context.Context, userID int64) ([]models.FavoriteTitle, error) {
	var favs []models.FavoriteTitle
	err := r.db.SelectContext(ctx, &favs, r.db.Rebind(`
		SELECT id, user_id, title_id, title, kind, created_at
		FROM favorites WHERE user_id = ? ORDER BY id`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return favs, nil
}

// CountByUser returns how many favorites a user has.
func (r *FavoriteRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		r.db.Rebind(`SELECT COUNT(*) FROM favorites WHERE user_id = ?`), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count favorites: %w", err)
	}
	return count, nil
}

// Exists reports whether a title is already a favorite of the user.
func (r *FavoriteRepository) Exists(ctx context.Context, userID, titleID int64) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		r.db.Rebind(`SELECT COUNT(*) FROM favorites WHERE user_id = ? AND title_id = ?`),
		userID, titleID)
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return count > 0, nil
}
