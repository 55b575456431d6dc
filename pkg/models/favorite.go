package models

import "time"

// FavoriteTitle is a title the user has explicitly endorsed. Unique per
// (user, title); adding it again is a no-op.
type FavoriteTitle struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	TitleID   int64     `json:"title_id" db:"title_id"`
	Title     string    `json:"title" db:"title"`
	Kind      TitleKind `json:"kind" db:"kind"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// GenrePreference marks one genre as preferred by a user. The set semantics
// (no duplicates, toggle on/off) live in the repository.
type GenrePreference struct {
	UserID  int64 `json:"user_id" db:"user_id"`
	GenreID int64 `json:"genre_id" db:"genre_id"`
}
