package models

import "fmt"

// TitleKind distinguishes movies from series
type TitleKind string

const (
	KindMovie  TitleKind = "movie"
	KindSeries TitleKind = "series"
)

// ParseTitleKind validates a raw kind string
func ParseTitleKind(s string) (TitleKind, error) {
	switch TitleKind(s) {
	case KindMovie, KindSeries:
		return TitleKind(s), nil
	}
	return "", fmt.Errorf("unknown title kind: %q", s)
}
