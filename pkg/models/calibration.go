package models

import (
	"fmt"
	"time"
)

// CalibrationState is the onboarding stage a user is currently in.
// Transitions are strictly forward; abandoning the flow parks the user in
// the current state until they resume.
type CalibrationState string

const (
	StateNew                 CalibrationState = "new"
	StateCollectingFavorites CalibrationState = "collecting_favorites"
	StateSelectingGenres     CalibrationState = "selecting_genres"
	StateCalibrating         CalibrationState = "calibrating"
	StateReady               CalibrationState = "ready"
)

// order maps each state to its position in the flow.
var stateOrder = map[CalibrationState]int{
	StateNew:                 0,
	StateCollectingFavorites: 1,
	StateSelectingGenres:     2,
	StateCalibrating:         3,
	StateReady:               4,
}

// CanAdvanceTo reports whether moving from s to next is a legal forward
// transition. Staying in place is allowed; moving backwards never is.
func (s CalibrationState) CanAdvanceTo(next CalibrationState) bool {
	from, ok := stateOrder[s]
	if !ok {
		return false
	}
	to, ok := stateOrder[next]
	if !ok {
		return false
	}
	return to >= from
}

// ParseCalibrationState validates a raw state string.
func ParseCalibrationState(s string) (CalibrationState, error) {
	if _, ok := stateOrder[CalibrationState(s)]; !ok {
		return "", fmt.Errorf("unknown calibration state: %q", s)
	}
	return CalibrationState(s), nil
}

// CalibrationStatus is the user's single response to a calibration candidate.
type CalibrationStatus string

const (
	StatusUnset     CalibrationStatus = "unset"
	StatusWatched   CalibrationStatus = "watched"
	StatusUnseen    CalibrationStatus = "unseen"
	StatusFavorited CalibrationStatus = "favorited"
)

// ParseCalibrationStatus validates a raw status string. StatusUnset is not a
// valid user response.
func ParseCalibrationStatus(s string) (CalibrationStatus, error) {
	switch CalibrationStatus(s) {
	case StatusWatched, StatusUnseen, StatusFavorited:
		return CalibrationStatus(s), nil
	}
	return "", fmt.Errorf("unknown calibration status: %q", s)
}

// Feedback maps a calibration response to the feedback kind it records.
func (s CalibrationStatus) Feedback() FeedbackKind {
	switch s {
	case StatusFavorited:
		return FeedbackFavorited
	case StatusWatched:
		return FeedbackWatched
	default:
		return FeedbackNeutral
	}
}

// CalibrationCandidate is one title from a user's calibration pool. Once
// shown it is never re-selected for presentation; its status is set at most
// once.
type CalibrationCandidate struct {
	ID        int64             `json:"id" db:"id"`
	UserID    int64             `json:"user_id" db:"user_id"`
	TitleID   int64             `json:"title_id" db:"title_id"`
	Title     string            `json:"title" db:"title"`
	Kind      TitleKind         `json:"kind" db:"kind"`
	Status    CalibrationStatus `json:"status" db:"status"`
	Shown     bool              `json:"shown" db:"shown"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}
