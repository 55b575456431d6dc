package bot

import (
	"encoding/json"
	"fmt"

	"github.com/havtorin/moviebot/pkg/models"
)

// Verb identifies what a button press means. Kept short: Telegram callback
// data is limited to 64 bytes.
type Verb string

const (
	// Calibration responses.
	VerbCalWatched  Verb = "cw"
	VerbCalUnseen   Verb = "cu"
	VerbCalFavorite Verb = "cf"

	// Recommendation actions.
	VerbRecFavorite Verb = "rf"
	VerbRecSeen     Verb = "rs"
	VerbRecFollow   Verb = "rw"
	VerbRecBlock    Verb = "rb"

	// Genre selection.
	VerbGenreToggle Verb = "g"
	VerbGenresDone  Verb = "gd"

	// Subscription management.
	VerbUnfollow Verb = "uf"
)

// Action is a structured callback message: verb, title (or genre) ID, and
// title kind. It is validated at the boundary before anything reaches the
// core.
type Action struct {
	Verb    Verb             `json:"v"`
	TitleID int64            `json:"t,omitempty"`
	Kind    models.TitleKind `json:"k,omitempty"`
}

// Encode serializes the action into callback data.
func (a Action) Encode() string {
	data, err := json.Marshal(a)
	if err != nil {
		return ""
	}
	return string(data)
}

// ParseAction decodes and validates callback data.
func ParseAction(data string) (Action, error) {
	var a Action
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return Action{}, fmt.Errorf("malformed action payload: %w", err)
	}

	switch a.Verb {
	case VerbGenresDone:
		return a, nil
	case VerbGenreToggle:
		if a.TitleID <= 0 {
			return Action{}, fmt.Errorf("genre action without genre id")
		}
		return a, nil
	case VerbCalWatched, VerbCalUnseen, VerbCalFavorite,
		VerbRecFavorite, VerbRecSeen, VerbRecFollow, VerbRecBlock, VerbUnfollow:
		if a.TitleID <= 0 {
			return Action{}, fmt.Errorf("title action without title id")
		}
		return a, nil
	}
	return Action{}, fmt.Errorf("unknown action verb: %q", a.Verb)
}

// status maps a calibration verb to the status it records.
func (a Action) status() (models.CalibrationStatus, bool) {
	switch a.Verb {
	case VerbCalWatched:
		return models.StatusWatched, true
	case VerbCalUnseen:
		return models.StatusUnseen, true
	case VerbCalFavorite:
		return models.StatusFavorited, true
	}
	return "", false
}
