package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/havtorin/moviebot/pkg/models"
)

// ExposureRepository handles database operations for exposure records
type ExposureRepository struct {
	db *sqlx.DB
}

// NewExposureRepository creates a new repository instance
func NewExposureRepository(db *sqlx.DB) *ExposureRepository {
	return &ExposureRepository{db: db}
}

// Increment bumps the times-shown counter for a surfaced title, creating the
// record on first exposure.
func (r *ExposureRepository) Increment(ctx context.Context, userID, titleID int64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO exposures (user_id, title_id, times_shown, last_shown_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (user_id, title_id) DO UPDATE SET
			times_shown = exposures.times_shown + 1,
			last_shown_at = excluded.last_shown_at`),
		userID, titleID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to increment exposure: %w", err)
	}
	return nil
}

// SetLastAction records the user's latest reaction to an exposure.
func (r *ExposureRepository) SetLastAction(ctx context.Context, userID, titleID int64, action models.FeedbackKind) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE exposures SET last_action = ? WHERE user_id = ? AND title_id = ?`),
		action, userID, titleID)
	if err != nil {
		return fmt.Errorf("failed to set exposure action: %w", err)
	}
	return nil
}

// Get returns the exposure record for one (user, title); ErrNotFound when
// the title was never surfaced.
func (r *ExposureRepository) Get(ctx context.Context, userID, titleID int64) (models.ExposureRecord, error) {
	var rec models.ExposureRecord
	err := r.db.GetContext(ctx, &rec, r.db.Rebind(`
		SELECT user_id, title_id, times_shown, last_shown_at, last_action
		FROM exposures WHERE user_id = ? AND title_id = ?`), userID, titleID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ExposureRecord{}, ErrNotFound
	}
	if err != nil {
		return models.ExposureRecord{}, fmt.Errorf("failed to get exposure: %w", err)
	}
	return rec, nil
}

// MapByUser returns all exposure records of a user keyed by title ID.
func (r *ExposureRepository) MapByUser(ctx context.Context, userID int64) (map[int64]models.ExposureRecord, error) {
	var recs []models.ExposureRecord
	err := r.db.SelectContext(ctx, &recs, r.db.Rebind(`
		SELECT user_id, title_id, times_shown, last_shown_at, last_action
		FROM exposures WHERE user_id = ?`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exposures: %w", err)
	}

	byTitle := make(map[int64]models.ExposureRecord, len(recs))
	for _, rec := range recs {
		byTitle[rec.TitleID] = rec
	}
	return byTitle, nil
}
