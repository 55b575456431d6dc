package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/havtorin/moviebot/pkg/models"
)

// SubscriptionRepository handles database operations for followed series
type SubscriptionRepository struct {
	db *sqlx.DB
}

// NewSubscriptionRepository creates a new repository instance
func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Upsert follows a series. Re-following is a no-op; an already stored marker
// is never overwritten here so it stays monotonic under the watcher.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub models.Subscription) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO subscriptions (user_id, title_id, title, last_marker)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, title_id) DO UPDATE SET
			title = excluded.title,
			last_marker = CASE
				WHEN subscriptions.last_marker = '' THEN excluded.last_marker
				ELSE subscriptions.last_marker
			END`),
		sub.UserID, sub.TitleID, sub.Title, sub.LastMarker)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// ListAll returns every subscription of every user with the owning chat ID
// joined in, for the watcher's batch scan.
func (r *SubscriptionRepository) ListAll(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.SelectContext(ctx, &subs, `
		SELECT s.id, s.user_id, s.title_id, s.title, s.last_marker, s.last_notified,
		       s.created_at, u.chat_id
		FROM subscriptions s
		JOIN users u ON s.user_id = u.id
		ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// ListByUser returns one user's subscriptions.
func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID int64) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.SelectContext(ctx, &subs, r.db.Rebind(`
		SELECT s.id, s.user_id, s.title_id, s.title, s.last_marker, s.last_notified,
		       s.created_at, u.chat_id
		FROM subscriptions s
		JOIN users u ON s.user_id = u.id
		WHERE s.user_id = ? ORDER BY s.id`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// UpdateMarker stores a newly observed release marker.
func (r *SubscriptionRepository) UpdateMarker(ctx context.Context, subID int64, marker string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE subscriptions SET last_marker = ? WHERE id = ?`),
		marker, subID)
	if err != nil {
		return fmt.Errorf("failed to update subscription marker: %w", err)
	}
	return nil
}

// MarkNotified remembers the marker the user was last notified about.
func (r *SubscriptionRepository) MarkNotified(ctx context.Context, subID int64, marker string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE subscriptions SET last_notified = ? WHERE id = ?`),
		marker, subID)
	if err != nil {
		return fmt.Errorf("failed to mark subscription notified: %w", err)
	}
	return nil
}

// Delete unfollows a series.
func (r *SubscriptionRepository) Delete(ctx context.Context, userID, titleID int64) error {
	_, err := r.db.ExecContext(ctx,
		r.db.Rebind(`DELETE FROM subscriptions WHERE user_id = ? AND title_id = ?`),
		userID, titleID)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}
