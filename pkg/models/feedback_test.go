package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackWeights(t *testing.T) {
	tests := []struct {
		kind   FeedbackKind
		weight float64
	}{
		{FeedbackFavorited, 3},
		{FeedbackEngaged, 2},
		{FeedbackWatched, 1},
		{FeedbackNeutral, 0},
		{FeedbackIgnored, -0.5},
		{FeedbackDisliked, -2},
		{FeedbackBlocked, -5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.weight, tt.kind.Weight(), "weight of %s", tt.kind)
	}

	assert.Equal(t, float64(0), FeedbackKind("bogus").Weight())
}

func TestFeedbackPositive(t *testing.T) {
	assert.True(t, FeedbackFavorited.Positive())
	assert.True(t, FeedbackEngaged.Positive())
	assert.True(t, FeedbackWatched.Positive())

	assert.False(t, FeedbackNeutral.Positive())
	assert.False(t, FeedbackIgnored.Positive())
	assert.False(t, FeedbackDisliked.Positive())
	assert.False(t, FeedbackBlocked.Positive())
}

func TestParseFeedbackKind(t *testing.T) {
	kind, err := ParseFeedbackKind("disliked")
	require.NoError(t, err)
	assert.Equal(t, FeedbackDisliked, kind)

	_, err = ParseFeedbackKind("loved")
	assert.Error(t, err)
}
