package models

import "time"

// ExposureRecord counts how often a title has been surfaced to a user as a
// recommendation. LastAction holds the feedback kind of the user's latest
// reaction to an exposure, empty if they never reacted.
type ExposureRecord struct {
	UserID      int64        `json:"user_id" db:"user_id"`
	TitleID     int64        `json:"title_id" db:"title_id"`
	TimesShown  int          `json:"times_shown" db:"times_shown"`
	LastShownAt time.Time    `json:"last_shown_at" db:"last_shown_at"`
	LastAction  FeedbackKind `json:"last_action" db:"last_action"`
}
