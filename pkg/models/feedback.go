package models

import (
	"fmt"
	"time"
)

// FeedbackKind classifies a single piece of user feedback about a title.
type FeedbackKind string

const (
	// FeedbackFavorited - the user marked the title as a favorite.
	FeedbackFavorited FeedbackKind = "favorited"
	// FeedbackEngaged - the user reacted positively short of favoriting.
	FeedbackEngaged FeedbackKind = "engaged"
	// FeedbackWatched - the user has already seen the title.
	FeedbackWatched FeedbackKind = "watched"
	// FeedbackNeutral - no signal either way.
	FeedbackNeutral FeedbackKind = "neutral"
	// FeedbackIgnored - the title was shown and the user did nothing.
	FeedbackIgnored FeedbackKind = "ignored"
	// FeedbackDisliked - the user rejected the title.
	FeedbackDisliked FeedbackKind = "disliked"
	// FeedbackBlocked - the user never wants to see the title again.
	FeedbackBlocked FeedbackKind = "blocked"
)

// Weight returns the signed contribution of this feedback kind to a title's
// net feedback weight. The table is fixed; it is never inferred per call site.
func (k FeedbackKind) Weight() float64 {
	switch k {
	case FeedbackFavorited:
		return 3
	case FeedbackEngaged:
		return 2
	case FeedbackWatched:
		return 1
	case FeedbackNeutral:
		return 0
	case FeedbackIgnored:
		return -0.5
	case FeedbackDisliked:
		return -2
	case FeedbackBlocked:
		return -5
	default:
		return 0
	}
}

func (k FeedbackKind) String() string {
	return string(k)
}

// Positive reports whether this kind counts as a positive action on an
// exposure (used to stop the exposure penalty from growing).
func (k FeedbackKind) Positive() bool {
	switch k {
	case FeedbackFavorited, FeedbackEngaged, FeedbackWatched:
		return true
	}
	return false
}

// ParseFeedbackKind validates a raw feedback kind string.
func ParseFeedbackKind(s string) (FeedbackKind, error) {
	switch FeedbackKind(s) {
	case FeedbackFavorited, FeedbackEngaged, FeedbackWatched, FeedbackNeutral,
		FeedbackIgnored, FeedbackDisliked, FeedbackBlocked:
		return FeedbackKind(s), nil
	}
	return "", fmt.Errorf("unknown feedback kind: %q", s)
}

// FeedbackEvent is one append-only entry in a user's feedback log. The weight
// is recorded at append time so later table changes do not rewrite history.
type FeedbackEvent struct {
	ID        int64        `json:"id" db:"id"`
	UserID    int64        `json:"user_id" db:"user_id"`
	TitleID   int64        `json:"title_id" db:"title_id"`
	Kind      FeedbackKind `json:"kind" db:"kind"`
	Weight    float64      `json:"weight" db:"weight"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}
