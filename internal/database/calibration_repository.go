package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/havtorin/moviebot/pkg/models"
)

// CalibrationRepository handles database operations for calibration candidates
type CalibrationRepository struct {
	db *sqlx.DB
}

// NewCalibrationRepository creates a new repository instance
func NewCalibrationRepository(db *sqlx.DB) *CalibrationRepository {
	return &CalibrationRepository{db: db}
}

// CreateBatch persists a user's calibration pool. Duplicate title IDs are
// ignored so re-running pool creation cannot grow the pool.
func (r *CalibrationRepository) CreateBatch(ctx context.Context, cands []models.CalibrationCandidate) error {
	for _, c := range cands {
		_, err := r.db.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO calibration_candidates (user_id, title_id, title, kind, status, shown)
			VALUES (?, ?, ?, ?, ?, FALSE)
			ON CONFLICT (user_id, title_id) DO NOTHING`),
			c.UserID, c.TitleID, c.Title, c.Kind, models.StatusUnset)
		if err != nil {
			return fmt.Errorf("failed to create calibration candidate: %w", err)
		}
	}
	return nil
}

// NextUnshown returns up to limit candidates that were never presented.
func (r *CalibrationRepository) NextUnshown(ctx context.Context, userID int64, limit int) ([]models.CalibrationCandidate, error) {
	var cands []models.CalibrationCandidate
	err := r.db.SelectContext(ctx, &cands, r.db.Rebind(`
		SELECT id, user_id, title_id, title, kind, status, shown, created_at
		FROM calibration_candidates
		WHERE user_id = ? AND shown = FALSE
		ORDER BY id LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unshown candidates: %w", err)
	}
	return cands, nil
}

// MarkShown flags a candidate as presented. Shown never goes back to false.
func (r *CalibrationRepository) MarkShown(ctx context.Context, userID, titleID int64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE calibration_candidates SET shown = TRUE
		WHERE user_id = ? AND title_id = ?`), userID, titleID)
	if err != nil {
		return fmt.Errorf("failed to mark candidate shown: %w", err)
	}
	return nil
}

// SetStatusOnce records the user's response. It only succeeds for a shown
// candidate whose status is still unset; the returned bool reports whether a
// row actually changed, so a repeated response is a detectable no-op.
func (r *CalibrationRepository) SetStatusOnce(ctx context.Context, userID, titleID int64, status models.CalibrationStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE calibration_candidates SET status = ?
		WHERE user_id = ? AND title_id = ? AND shown = TRUE AND status = ?`),
		status, userID, titleID, models.StatusUnset)
	if err != nil {
		return false, fmt.Errorf("failed to set candidate status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to set candidate status: %w", err)
	}
	return n == 1, nil
}

// Get returns one candidate.
func (r *CalibrationRepository) Get(ctx context.Context, userID, titleID int64) (models.CalibrationCandidate, error) {
	var c models.CalibrationCandidate
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`
		SELECT id, user_id, title_id, title, kind, status, shown, created_at
		FROM calibration_candidates WHERE user_id = ? AND title_id = ?`),
		userID, titleID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CalibrationCandidate{}, ErrNotFound
	}
	if err != nil {
		return models.CalibrationCandidate{}, fmt.Errorf("failed to get candidate: %w", err)
	}
	return c, nil
}

// CountShownUnanswered returns how many presented candidates still await a
// response. The next batch is gated on this reaching zero.
func (r *CalibrationRepository) CountShownUnanswered(ctx context.Context, userID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM calibration_candidates
		WHERE user_id = ? AND shown = TRUE AND status = 'unset'`, userID)
}

// CountUnshown returns how many candidates were never presented.
func (r *CalibrationRepository) CountUnshown(ctx context.Context, userID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM calibration_candidates
		WHERE user_id = ? AND shown = FALSE`, userID)
}

// CountAll returns the size of the user's calibration pool.
func (r *CalibrationRepository) CountAll(ctx context.Context, userID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM calibration_candidates WHERE user_id = ?`, userID)
}

func (r *CalibrationRepository) count(ctx context.Context, query string, userID int64) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(query), userID); err != nil {
		return 0, fmt.Errorf("failed to count candidates: %w", err)
	}
	return count, nil
}
