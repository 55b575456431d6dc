package calibration

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havtorin/moviebot/internal/tmdb"
	"github.com/havtorin/moviebot/pkg/models"
)

type memUsers struct {
	states map[int64]models.CalibrationState
}

func (m *memUsers) SetState(_ context.Context, userID int64, state models.CalibrationState) error {
	if m.states == nil {
		m.states = map[int64]models.CalibrationState{}
	}
	m.states[userID] = state
	return nil
}

type memFavorites struct {
	favs []models.FavoriteTitle
}

func (m *memFavorites) Add(_ context.Context, fav models.FavoriteTitle) error {
	for _, f := range m.favs {
		if f.TitleID == fav.TitleID {
			return nil
		}
	}
	m.favs = append(m.favs, fav)
	return nil
}

func (m *memFavorites) ListByUser(_ context.Context, _ int64) ([]models.FavoriteTitle, error) {
	return m.favs, nil
}

func (m *memFavorites) CountByUser(_ context.Context, _ int64) (int, error) {
	return len(m.favs), nil
}

type memGenres struct {
	set map[int64]bool
}

func (m *memGenres) Toggle(_ context.Context, _ int64, genreID int64) (bool, error) {
	if m.set == nil {
		m.set = map[int64]bool{}
	}
	if m.set[genreID] {
		delete(m.set, genreID)
		return false, nil
	}
	m.set[genreID] = true
	return true, nil
}

type memCandidates struct {
	order []int64
	cands map[int64]*models.CalibrationCandidate
}

func (m *memCandidates) CreateBatch(_ context.Context, cands []models.CalibrationCandidate) error {
	if m.cands == nil {
		m.cands = map[int64]*models.CalibrationCandidate{}
	}
	for _, c := range cands {
		if _, ok := m.cands[c.TitleID]; ok {
			continue
		}
		c.Status = models.StatusUnset
		stored := c
		m.cands[c.TitleID] = &stored
		m.order = append(m.order, c.TitleID)
	}
	return nil
}

func (m *memCandidates) NextUnshown(_ context.Context, _ int64, limit int) ([]models.CalibrationCandidate, error) {
	var out []models.CalibrationCandidate
	for _, id := range m.order {
		if len(out) == limit {
			break
		}
		if c := m.cands[id]; !c.Shown {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memCandidates) MarkShown(_ context.Context, _ int64, titleID int64) error {
	if c, ok := m.cands[titleID]; ok {
		c.Shown = true
	}
	return nil
}

func (m *memCandidates) SetStatusOnce(_ context.Context, _ int64, titleID int64, status models.CalibrationStatus) (bool, error) {
	c, ok := m.cands[titleID]
	if !ok || !c.Shown || c.Status != models.StatusUnset {
		return false, nil
	}
	c.Status = status
	return true, nil
}

func (m *memCandidates) Get(_ context.Context, _ int64, titleID int64) (models.CalibrationCandidate, error) {
	c, ok := m.cands[titleID]
	if !ok {
		return models.CalibrationCandidate{}, errors.New("not found")
	}
	return *c, nil
}

func (m *memCandidates) CountShownUnanswered(_ context.Context, _ int64) (int, error) {
	n := 0
	for _, c := range m.cands {
		if c.Shown && c.Status == models.StatusUnset {
			n++
		}
	}
	return n, nil
}

func (m *memCandidates) CountUnshown(_ context.Context, _ int64) (int, error) {
	n := 0
	for _, c := range m.cands {
		if !c.Shown {
			n++
		}
	}
	return n, nil
}

func (m *memCandidates) CountAll(_ context.Context, _ int64) (int, error) {
	return len(m.cands), nil
}

type memFeedback struct {
	kinds map[int64][]models.FeedbackKind
	err   error
}

func (m *memFeedback) Append(_ context.Context, _ int64, titleID int64, kind models.FeedbackKind) error {
	if m.err != nil {
		return m.err
	}
	if m.kinds == nil {
		m.kinds = map[int64][]models.FeedbackKind{}
	}
	m.kinds[titleID] = append(m.kinds[titleID], kind)
	return nil
}

type memSubs struct {
	subs map[int64]models.Subscription
}

func (m *memSubs) Upsert(_ context.Context, sub models.Subscription) error {
	if m.subs == nil {
		m.subs = map[int64]models.Subscription{}
	}
	if _, ok := m.subs[sub.TitleID]; !ok {
		m.subs[sub.TitleID] = sub
	}
	return nil
}

type stubGateway struct {
	matches map[string]tmdb.Match
	related map[int64][]tmdb.Summary
	markers map[int64]string
}

func (g *stubGateway) SearchBestMatch(_ context.Context, query string) (tmdb.Match, error) {
	if m, ok := g.matches[query]; ok {
		return m, nil
	}
	return tmdb.Match{}, tmdb.ErrNotFound
}

func (g *stubGateway) GetRelated(_ context.Context, id int64, _ models.TitleKind) ([]tmdb.Summary, error) {
	return g.related[id], nil
}

func (g *stubGateway) LatestMarker(_ context.Context, id int64) (string, error) {
	if marker, ok := g.markers[id]; ok {
		return marker, nil
	}
	return "", errors.New("catalog unavailable")
}

type fixture struct {
	machine    *Machine
	users      *memUsers
	favorites  *memFavorites
	genres     *memGenres
	candidates *memCandidates
	feedback   *memFeedback
	subs       *memSubs
	gateway    *stubGateway
}

func newFixture(gateway *stubGateway) *fixture {
	f := &fixture{
		users:      &memUsers{},
		favorites:  &memFavorites{},
		genres:     &memGenres{},
		candidates: &memCandidates{},
		feedback:   &memFeedback{},
		subs:       &memSubs{},
		gateway:    gateway,
	}
	f.machine = New(Config{MinFavorites: 3, PoolSize: 4, BatchSize: 2},
		f.users, f.favorites, f.genres, f.candidates, f.feedback, f.subs,
		gateway, zerolog.Nop())
	return f
}

func movieMatch(id int64, title string) tmdb.Match {
	return tmdb.Match{ID: id, Kind: models.KindMovie, Title: title}
}

func TestAddFavoritesBelowThreshold(t *testing.T) {
	f := newFixture(&stubGateway{matches: map[string]tmdb.Match{
		"inception": movieMatch(1, "Inception"),
		"heat":      movieMatch(2, "Heat"),
	}})
	user := &models.User{ID: 1, State: models.StateNew}

	result, err := f.machine.AddFavorites(context.Background(), user, []string{"inception", "heat"})
	require.NoError(t, err)
	assert.Len(t, result.Added, 2)
	assert.Equal(t, models.StateCollectingFavorites, result.State)
	assert.Equal(t, models.StateCollectingFavorites, user.State)
}

func TestAddFavoritesReachesThreshold(t *testing.T) {
	f := newFixture(&stubGateway{
		matches: map[string]tmdb.Match{
			"inception":    movieMatch(1, "Inception"),
			"heat":         movieMatch(2, "Heat"),
			"breaking bad": {ID: 3, Kind: models.KindSeries, Title: "Breaking Bad"},
		},
		markers: map[int64]string{3: "2013-09-29"},
	})
	user := &models.User{ID: 1, State: models.StateNew}

	result, err := f.machine.AddFavorites(context.Background(), user,
		[]string{"inception", "heat", "breaking bad", "???"})
	require.NoError(t, err)
	assert.Len(t, result.Added, 3)
	assert.Equal(t, []string{"???"}, result.Unresolved)
	assert.Equal(t, models.StateSelectingGenres, user.State)

	// The series is auto-followed, seeded with its current marker.
	require.Contains(t, f.subs.subs, int64(3))
	assert.Equal(t, "2013-09-29", f.subs.subs[3].LastMarker)
	assert.NotContains(t, f.subs.subs, int64(1), "movies are never followed")

	assert.Equal(t, []models.FeedbackKind{models.FeedbackFavorited}, f.feedback.kinds[1])
}

func TestAddFavoritesKeepsReadyState(t *testing.T) {
	f := newFixture(&stubGateway{matches: map[string]tmdb.Match{
		"inception": movieMatch(1, "Inception"),
	}})
	user := &models.User{ID: 1, State: models.StateReady}

	result, err := f.machine.AddFavorites(context.Background(), user, []string{"inception"})
	require.NoError(t, err)
	assert.Equal(t, models.StateReady, result.State)
	assert.Empty(t, f.users.states, "no state write for a settled user")
}

func TestAddFavoritesMarkerFailureStillFollows(t *testing.T) {
	f := newFixture(&stubGateway{matches: map[string]tmdb.Match{
		"brassic": {ID: 7, Kind: models.KindSeries, Title: "Brassic"},
	}})
	user := &models.User{ID: 1, State: models.StateNew}

	_, err := f.machine.AddFavorites(context.Background(), user, []string{"brassic"})
	require.NoError(t, err)
	require.Contains(t, f.subs.subs, int64(7))
	assert.Empty(t, f.subs.subs[7].LastMarker, "a failed marker fetch degrades to an empty seed")
}

func TestToggleGenreRequiresSelectingState(t *testing.T) {
	f := newFixture(&stubGateway{})

	_, err := f.machine.ToggleGenre(context.Background(), &models.User{ID: 1, State: models.StateNew}, 18)
	assert.ErrorIs(t, err, ErrWrongState)

	on, err := f.machine.ToggleGenre(context.Background(),
		&models.User{ID: 1, State: models.StateSelectingGenres}, 18)
	require.NoError(t, err)
	assert.True(t, on)
}

func TestFinishGenresBuildsPool(t *testing.T) {
	f := newFixture(&stubGateway{related: map[int64][]tmdb.Summary{
		1: {
			{ID: 10, Kind: models.KindMovie, Title: "A"},
			{ID: 11, Kind: models.KindMovie, Title: "B"},
			{ID: 2, Kind: models.KindMovie, Title: "AlsoFavorite"},
		},
		2: {
			{ID: 10, Kind: models.KindMovie, Title: "A"},
			{ID: 12, Kind: models.KindMovie, Title: "C"},
			{ID: 13, Kind: models.KindMovie, Title: "D"},
			{ID: 14, Kind: models.KindMovie, Title: "E"},
		},
	}})
	f.favorites.favs = []models.FavoriteTitle{
		{UserID: 1, TitleID: 1, Kind: models.KindMovie},
		{UserID: 1, TitleID: 2, Kind: models.KindMovie},
	}
	user := &models.User{ID: 1, State: models.StateSelectingGenres}

	require.NoError(t, f.machine.FinishGenres(context.Background(), user))
	assert.Equal(t, models.StateCalibrating, user.State)

	// Deduplicated, favorites excluded, capped at the pool size.
	assert.Equal(t, []int64{10, 11, 12, 13}, f.candidates.order)

	// Rebuilding is a no-op once a pool exists.
	require.NoError(t, f.machine.EnsurePool(context.Background(), user.ID))
	assert.Equal(t, []int64{10, 11, 12, 13}, f.candidates.order)
}

func TestFinishGenresWrongState(t *testing.T) {
	f := newFixture(&stubGateway{})
	err := f.machine.FinishGenres(context.Background(), &models.User{ID: 1, State: models.StateNew})
	assert.ErrorIs(t, err, ErrWrongState)
}

func calibratingFixture(t *testing.T) (*fixture, *models.User) {
	t.Helper()
	f := newFixture(&stubGateway{})
	require.NoError(t, f.candidates.CreateBatch(context.Background(), []models.CalibrationCandidate{
		{UserID: 1, TitleID: 10, Title: "A", Kind: models.KindMovie},
		{UserID: 1, TitleID: 11, Title: "B", Kind: models.KindSeries},
		{UserID: 1, TitleID: 12, Title: "C", Kind: models.KindMovie},
	}))
	return f, &models.User{ID: 1, State: models.StateCalibrating}
}

func TestNextBatchGatesOnPendingAnswers(t *testing.T) {
	f, user := calibratingFixture(t)
	ctx := context.Background()

	batch, done, err := f.machine.NextBatch(ctx, user)
	require.NoError(t, err)
	assert.False(t, done)
	require.Len(t, batch, 2)
	assert.True(t, batch[0].Shown)

	// Same call again: the presented candidates are still unanswered, so
	// nothing new is handed out and nothing is re-shown.
	batch, done, err = f.machine.NextBatch(ctx, user)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Empty(t, batch)
}

func TestNextBatchWrongState(t *testing.T) {
	f, _ := calibratingFixture(t)

	_, _, err := f.machine.NextBatch(context.Background(), &models.User{ID: 1, State: models.StateNew})
	assert.ErrorIs(t, err, ErrWrongState)

	_, done, err := f.machine.NextBatch(context.Background(), &models.User{ID: 1, State: models.StateReady})
	require.NoError(t, err)
	assert.True(t, done)
}

func TestNextBatchEmptyPoolFinishes(t *testing.T) {
	f := newFixture(&stubGateway{})
	user := &models.User{ID: 1, State: models.StateCalibrating}

	batch, done, err := f.machine.NextBatch(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Empty(t, batch)
	assert.Equal(t, models.StateReady, user.State)
}

func TestRespondFullFlow(t *testing.T) {
	f, user := calibratingFixture(t)
	ctx := context.Background()
	f.gateway.markers = map[int64]string{11: "2024-10-17"}

	batch, _, err := f.machine.NextBatch(ctx, user)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	out, err := f.machine.Respond(ctx, user, 10, models.StatusWatched)
	require.NoError(t, err)
	assert.False(t, out.BatchComplete)

	out, err = f.machine.Respond(ctx, user, 11, models.StatusFavorited)
	require.NoError(t, err)
	assert.True(t, out.BatchComplete)
	assert.False(t, out.Done, "one candidate is still unshown")

	// The favorited series became a favorite and a followed subscription.
	require.Len(t, f.favorites.favs, 1)
	assert.Equal(t, int64(11), f.favorites.favs[0].TitleID)
	require.Contains(t, f.subs.subs, int64(11))
	assert.Equal(t, "2024-10-17", f.subs.subs[11].LastMarker)

	assert.Equal(t, []models.FeedbackKind{models.FeedbackWatched}, f.feedback.kinds[10])
	assert.Equal(t, []models.FeedbackKind{models.FeedbackFavorited}, f.feedback.kinds[11])

	batch, done, err := f.machine.NextBatch(ctx, user)
	require.NoError(t, err)
	assert.False(t, done)
	require.Len(t, batch, 1)

	out, err = f.machine.Respond(ctx, user, 12, models.StatusUnseen)
	require.NoError(t, err)
	assert.True(t, out.BatchComplete)
	assert.True(t, out.Done)
	assert.Equal(t, models.StateReady, user.State)
	assert.Equal(t, []models.FeedbackKind{models.FeedbackNeutral}, f.feedback.kinds[12])
}

func TestRespondRejectsUnshown(t *testing.T) {
	f, user := calibratingFixture(t)

	_, err := f.machine.Respond(context.Background(), user, 10, models.StatusWatched)
	assert.ErrorIs(t, err, ErrNotShown)
}

func TestRespondIsIdempotent(t *testing.T) {
	f, user := calibratingFixture(t)
	ctx := context.Background()

	_, _, err := f.machine.NextBatch(ctx, user)
	require.NoError(t, err)

	_, err = f.machine.Respond(ctx, user, 10, models.StatusWatched)
	require.NoError(t, err)

	_, err = f.machine.Respond(ctx, user, 10, models.StatusFavorited)
	assert.ErrorIs(t, err, ErrAlreadyAnswered)
	assert.Len(t, f.feedback.kinds[10], 1, "the repeated response records nothing")
	assert.Empty(t, f.favorites.favs, "the first response wins")
}

func TestRespondSurvivesFeedbackFailure(t *testing.T) {
	f, user := calibratingFixture(t)
	ctx := context.Background()

	_, _, err := f.machine.NextBatch(ctx, user)
	require.NoError(t, err)

	// The status is consumed before the log append, so an append failure
	// must not fail the response or strand the candidate.
	f.feedback.err = errors.New("log unavailable")

	_, err = f.machine.Respond(ctx, user, 10, models.StatusFavorited)
	require.NoError(t, err)
	require.Len(t, f.favorites.favs, 1, "the favorite is still recorded")

	_, err = f.machine.Respond(ctx, user, 10, models.StatusWatched)
	assert.ErrorIs(t, err, ErrAlreadyAnswered)
}
