package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/havtorin/moviebot/pkg/models"
)

// FeedbackRepository handles the append-only feedback log
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository creates a new repository instance
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Append records one feedback event. The weight of the kind is stored with
// the event.
func (r *FeedbackRepository) Append(ctx context.Context, userID, titleID int64, kind models.FeedbackKind) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO feedback_events (user_id, title_id, kind, weight)
		VALUES (?, ?, ?, ?)`),
		userID, titleID, kind, kind.Weight())
	if err != nil {
		return fmt.Errorf("failed to append feedback: %w", err)
	}
	return nil
}

// NetWeightByTitle returns the summed feedback weight per title for a user.
func (r *FeedbackRepository) NetWeightByTitle(ctx context.Context, userID int64) (map[int64]float64, error) {
	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(`
		SELECT title_id, SUM(weight) FROM feedback_events
		WHERE user_id = ? GROUP BY title_id`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate feedback: %w", err)
	}
	defer rows.Close()

	weights := make(map[int64]float64)
	for rows.Next() {
		var titleID int64
		var weight float64
		if err := rows.Scan(&titleID, &weight); err != nil {
			return nil, fmt.Errorf("failed to scan feedback weight: %w", err)
		}
		weights[titleID] = weight
	}
	return weights, rows.Err()
}

// SeenTitleIDs returns the set of titles the user has marked as watched.
// The set is independent of net weight: later events never un-watch a title.
func (r *FeedbackRepository) SeenTitleIDs(ctx context.Context, userID int64) (map[int64]bool, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, r.db.Rebind(`
		SELECT DISTINCT title_id FROM feedback_events
		WHERE user_id = ? AND kind = ?`), userID, models.FeedbackWatched)
	if err != nil {
		return nil, fmt.Errorf("failed to load seen titles: %w", err)
	}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	return seen, nil
}

// NetWeight returns the summed feedback weight for a single (user, title).
func (r *FeedbackRepository) NetWeight(ctx context.Context, userID, titleID int64) (float64, error) {
	var weight float64
	err := r.db.GetContext(ctx, &weight, r.db.Rebind(`
		SELECT COALESCE(SUM(weight), 0) FROM feedback_events
		WHERE user_id = ? AND title_id = ?`), userID, titleID)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate feedback: %w", err)
	}
	return weight, nil
}
