package calibration

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/havtorin/moviebot/internal/tmdb"
	"github.com/havtorin/moviebot/pkg/models"
)

var (
	// ErrWrongState rejects an operation not defined for the user's current
	// calibration state.
	ErrWrongState = errors.New("calibration: operation not allowed in current state")
	// ErrAlreadyAnswered rejects a repeated response to the same candidate.
	// Callers treat it as a no-op, never as corruption.
	ErrAlreadyAnswered = errors.New("calibration: candidate already answered")
	// ErrNotShown rejects a response to a candidate that was never presented.
	ErrNotShown = errors.New("calibration: candidate was not shown")
)

// UserStore persists the user's calibration state.
type UserStore interface {
	SetState(ctx context.Context, userID int64, state models.CalibrationState) error
}

// FavoriteStore manages the user's favorites.
type FavoriteStore interface {
	Add(ctx context.Context, fav models.FavoriteTitle) error
	ListByUser(ctx context.Context, userID int64) ([]models.FavoriteTitle, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
}

// GenreStore toggles genre preferences.
type GenreStore interface {
	Toggle(ctx context.Context, userID, genreID int64) (bool, error)
}

// CandidateStore manages the calibration pool.
type CandidateStore interface {
	CreateBatch(ctx context.Context, cands []models.CalibrationCandidate) error
	NextUnshown(ctx context.Context, userID int64, limit int) ([]models.CalibrationCandidate, error)
	MarkShown(ctx context.Context, userID, titleID int64) error
	SetStatusOnce(ctx context.Context, userID, titleID int64, status models.CalibrationStatus) (bool, error)
	Get(ctx context.Context, userID, titleID int64) (models.CalibrationCandidate, error)
	CountShownUnanswered(ctx context.Context, userID int64) (int, error)
	CountUnshown(ctx context.Context, userID int64) (int, error)
	CountAll(ctx context.Context, userID int64) (int, error)
}

// FeedbackStore appends to the feedback log.
type FeedbackStore interface {
	Append(ctx context.Context, userID, titleID int64, kind models.FeedbackKind) error
}

// SubscriptionStore follows series.
type SubscriptionStore interface {
	Upsert(ctx context.Context, sub models.Subscription) error
}

// Gateway resolves titles and fetches related candidates.
type Gateway interface {
	SearchBestMatch(ctx context.Context, query string) (tmdb.Match, error)
	GetRelated(ctx context.Context, id int64, kind models.TitleKind) ([]tmdb.Summary, error)
	LatestMarker(ctx context.Context, id int64) (string, error)
}

// Config bounds the calibration flow.
type Config struct {
	// MinFavorites gates the transition out of favorite collection.
	MinFavorites int
	// PoolSize caps the calibration candidate pool.
	PoolSize int
	// BatchSize is how many candidates are presented at a time.
	BatchSize int
}

// DefaultConfig returns the default calibration configuration.
func DefaultConfig() Config {
	return Config{
		MinFavorites: 3,
		PoolSize:     9,
		BatchSize:    3,
	}
}

// Machine drives a new user from zero data to a usable taste profile. State
// is persisted on the user row, so an interrupted flow resumes where it
// stopped.
type Machine struct {
	cfg        Config
	users      UserStore
	favorites  FavoriteStore
	genres     GenreStore
	candidates CandidateStore
	feedback   FeedbackStore
	subs       SubscriptionStore
	gateway    Gateway
	log        zerolog.Logger
}

// New creates a calibration machine.
func New(cfg Config, users UserStore, favorites FavoriteStore, genres GenreStore,
	candidates CandidateStore, feedback FeedbackStore, subs SubscriptionStore,
	gateway Gateway, logger zerolog.Logger) *Machine {
	if cfg.MinFavorites <= 0 {
		cfg.MinFavorites = DefaultConfig().MinFavorites
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultConfig().PoolSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Machine{
		cfg:        cfg,
		users:      users,
		favorites:  favorites,
		genres:     genres,
		candidates: candidates,
		feedback:   feedback,
		subs:       subs,
		gateway:    gateway,
		log:        logger.With().Str("component", "calibration").Logger(),
	}
}

// AddResult reports the outcome of a favorite-list submission.
type AddResult struct {
	Added      []models.FavoriteTitle
	Unresolved []string
	State      models.CalibrationState
}

// AddFavorites resolves free-text title names via the catalog and records
// the matches as favorites. Unresolved names are reported back, resolved
// series are auto-followed. Reaching the favorite threshold advances the
// user from favorite collection to genre selection.
func (m *Machine) AddFavorites(ctx context.Context, user *models.User, names []string) (AddResult, error) {
	result := AddResult{State: user.State}

	for _, name := range names {
		match, err := m.gateway.SearchBestMatch(ctx, name)
		if err != nil {
			if !errors.Is(err, tmdb.ErrNotFound) {
				m.log.Warn().Err(err).Str("query", name).Msg("title search failed")
			}
			result.Unresolved = append(result.Unresolved, name)
			continue
		}

		fav := models.FavoriteTitle{
			UserID:  user.ID,
			TitleID: match.ID,
			Title:   match.Title,
			Kind:    match.Kind,
		}
		if err := m.favorites.Add(ctx, fav); err != nil {
			return result, fmt.Errorf("failed to add favorite: %w", err)
		}
		result.Added = append(result.Added, fav)

		m.followSeries(ctx, user.ID, match.ID, match.Title, match.Kind)

		if err := m.feedback.Append(ctx, user.ID, match.ID, models.FeedbackFavorited); err != nil {
			return result, fmt.Errorf("failed to record feedback: %w", err)
		}
	}

	// Only the onboarding stages care about the favorite count; a Ready user
	// adding favorites stays Ready.
	if user.State == models.StateNew || user.State == models.StateCollectingFavorites {
		count, err := m.favorites.CountByUser(ctx, user.ID)
		if err != nil {
			return result, fmt.Errorf("failed to count favorites: %w", err)
		}
		next := models.StateCollectingFavorites
		if count >= m.cfg.MinFavorites {
			next = models.StateSelectingGenres
		}
		if err := m.advance(ctx, user, next); err != nil {
			return result, err
		}
	}

	result.State = user.State
	return result, nil
}

// ToggleGenre flips a genre preference during genre selection.
func (m *Machine) ToggleGenre(ctx context.Context, user *models.User, genreID int64) (bool, error) {
	if user.State != models.StateSelectingGenres {
		return false, ErrWrongState
	}
	return m.genres.Toggle(ctx, user.ID, genreID)
}

// FinishGenres ends genre selection, builds the calibration pool, and moves
// the user into calibration.
func (m *Machine) FinishGenres(ctx context.Context, user *models.User) error {
	if user.State != models.StateSelectingGenres {
		return ErrWrongState
	}
	if err := m.advance(ctx, user, models.StateCalibrating); err != nil {
		return err
	}
	return m.EnsurePool(ctx, user.ID)
}

// EnsurePool builds the candidate pool once: related titles of every
// favorite, deduplicated, minus existing favorites, capped at the pool size.
// It is idempotent; an existing pool is never rebuilt or grown.
func (m *Machine) EnsurePool(ctx context.Context, userID int64) error {
	existing, err := m.candidates.CountAll(ctx, userID)
	if err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	favorites, err := m.favorites.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list favorites: %w", err)
	}

	favoriteIDs := make(map[int64]bool, len(favorites))
	for _, f := range favorites {
		favoriteIDs[f.TitleID] = true
	}

	var pool []models.CalibrationCandidate
	seen := make(map[int64]bool)
	for _, fav := range favorites {
		if len(pool) >= m.cfg.PoolSize {
			break
		}
		related, err := m.gateway.GetRelated(ctx, fav.TitleID, fav.Kind)
		if err != nil {
			m.log.Warn().Err(err).Int64("title_id", fav.TitleID).
				Msg("related-titles fetch failed while building pool")
			continue
		}
		for _, s := range related {
			if len(pool) >= m.cfg.PoolSize {
				break
			}
			if seen[s.ID] || favoriteIDs[s.ID] {
				continue
			}
			seen[s.ID] = true
			pool = append(pool, models.CalibrationCandidate{
				UserID:  userID,
				TitleID: s.ID,
				Title:   s.Title,
				Kind:    s.Kind,
				Status:  models.StatusUnset,
			})
		}
	}

	if len(pool) == 0 {
		return nil
	}
	return m.candidates.CreateBatch(ctx, pool)
}

// NextBatch returns the next unshown candidates, marking them shown. The
// batch is empty while previously shown candidates still await a response.
// done reports that calibration has finished.
func (m *Machine) NextBatch(ctx context.Context, user *models.User) (batch []models.CalibrationCandidate, done bool, err error) {
	if user.State == models.StateReady {
		return nil, true, nil
	}
	if user.State != models.StateCalibrating {
		return nil, false, ErrWrongState
	}

	pending, err := m.candidates.CountShownUnanswered(ctx, user.ID)
	if err != nil {
		return nil, false, err
	}
	if pending > 0 {
		return nil, false, nil
	}

	batch, err = m.candidates.NextUnshown(ctx, user.ID, m.cfg.BatchSize)
	if err != nil {
		return nil, false, err
	}
	if len(batch) == 0 {
		if err := m.advance(ctx, user, models.StateReady); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}

	for i := range batch {
		if err := m.candidates.MarkShown(ctx, user.ID, batch[i].TitleID); err != nil {
			return nil, false, err
		}
		batch[i].Shown = true
	}
	return batch, false, nil
}

// Outcome reports what a calibration response changed.
type Outcome struct {
	// BatchComplete means every shown candidate now has a status.
	BatchComplete bool
	// Done means the whole pool is processed and the user is Ready.
	Done bool
}

// Respond records the user's single response to a shown candidate. The
// status is set exactly once: a repeated or out-of-order response returns
// ErrAlreadyAnswered / ErrNotShown and changes nothing.
func (m *Machine) Respond(ctx context.Context, user *models.User, titleID int64, status models.CalibrationStatus) (Outcome, error) {
	cand, err := m.candidates.Get(ctx, user.ID, titleID)
	if err != nil {
		return Outcome{}, err
	}
	if !cand.Shown {
		return Outcome{}, ErrNotShown
	}

	changed, err := m.candidates.SetStatusOnce(ctx, user.ID, titleID, status)
	if err != nil {
		return Outcome{}, err
	}
	if !changed {
		return Outcome{}, ErrAlreadyAnswered
	}

	// The status is consumed at this point; a retry would get
	// ErrAlreadyAnswered, so a failed append must not fail the response.
	if err := m.feedback.Append(ctx, user.ID, titleID, status.Feedback()); err != nil {
		m.log.Error().Err(err).Int64("user_id", user.ID).Int64("title_id", titleID).
			Msg("failed to record calibration feedback")
	}

	if status == models.StatusFavorited {
		fav := models.FavoriteTitle{
			UserID:  user.ID,
			TitleID: titleID,
			Title:   cand.Title,
			Kind:    cand.Kind,
		}
		if err := m.favorites.Add(ctx, fav); err != nil {
			return Outcome{}, fmt.Errorf("failed to add favorite: %w", err)
		}
		m.followSeries(ctx, user.ID, titleID, cand.Title, cand.Kind)
	}

	// Mutations above are applied before these derived reads.
	var out Outcome
	pending, err := m.candidates.CountShownUnanswered(ctx, user.ID)
	if err != nil {
		return out, err
	}
	if pending > 0 {
		return out, nil
	}
	out.BatchComplete = true

	unshown, err := m.candidates.CountUnshown(ctx, user.ID)
	if err != nil {
		return out, err
	}
	if unshown == 0 {
		if err := m.advance(ctx, user, models.StateReady); err != nil {
			return out, err
		}
		out.Done = true
	}
	return out, nil
}

// followSeries subscribes a user to a series, seeded with its current
// release marker so the first watcher observation stays silent. Marker fetch
// failures degrade to an empty seed.
func (m *Machine) followSeries(ctx context.Context, userID, titleID int64, title string, kind models.TitleKind) {
	if kind != models.KindSeries {
		return
	}
	marker, err := m.gateway.LatestMarker(ctx, titleID)
	if err != nil {
		m.log.Warn().Err(err).Int64("title_id", titleID).Msg("failed to seed release marker")
		marker = ""
	}
	if err := m.subs.Upsert(ctx, models.Subscription{
		UserID:     userID,
		TitleID:    titleID,
		Title:      title,
		LastMarker: marker,
	}); err != nil {
		m.log.Error().Err(err).Int64("title_id", titleID).Msg("failed to follow series")
	}
}

// advance moves the user forward. Backward transitions are rejected; staying
// in place is a no-op.
func (m *Machine) advance(ctx context.Context, user *models.User, next models.CalibrationState) error {
	if user.State == next {
		return nil
	}
	if !user.State.CanAdvanceTo(next) {
		return ErrWrongState
	}
	if err := m.users.SetState(ctx, user.ID, next); err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	user.State = next
	return nil
}
