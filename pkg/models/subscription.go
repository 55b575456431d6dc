package models

import "time"

// Subscription follows one series for new-release detection. LastMarker is
// the last known release marker (latest episode air date); it only moves
// forward under normal operation. ChatID is joined in from the owning user
// for the watcher's batch scan.
type Subscription struct {
	ID           int64     `json:"id" db:"id"`
	UserID       int64     `json:"user_id" db:"user_id"`
	TitleID      int64     `json:"title_id" db:"title_id"`
	Title        string    `json:"title" db:"title"`
	LastMarker   string    `json:"last_marker" db:"last_marker"`
	LastNotified string    `json:"last_notified" db:"last_notified"`
	ChatID       int64     `json:"chat_id" db:"chat_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
