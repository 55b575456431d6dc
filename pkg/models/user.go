package models

import "time"

// User represents a Telegram user of the bot. The chat ID doubles as the
// notification target for private chats.
type User struct {
	ID        int64            `json:"id" db:"id"`
	ChatID    int64            `json:"chat_id" db:"chat_id"`
	State     CalibrationState `json:"state" db:"state"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}
