package recommend

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/havtorin/moviebot/internal/tmdb"
	"github.com/havtorin/moviebot/pkg/models"
)

// FavoriteStore provides the user's favorites.
type FavoriteStore interface {
	ListByUser(ctx context.Context, userID int64) ([]models.FavoriteTitle, error)
}

// GenreStore provides the user's preferred genre IDs.
type GenreStore interface {
	ListByUser(ctx context.Context, userID int64) ([]int64, error)
}

// FeedbackStore aggregates the user's net feedback weight per title and
// reports which titles the user has marked as watched.
type FeedbackStore interface {
	NetWeightByTitle(ctx context.Context, userID int64) (map[int64]float64, error)
	SeenTitleIDs(ctx context.Context, userID int64) (map[int64]bool, error)
}

// ExposureStore tracks how often titles were surfaced to the user.
type ExposureStore interface {
	MapByUser(ctx context.Context, userID int64) (map[int64]models.ExposureRecord, error)
	Increment(ctx context.Context, userID, titleID int64) error
}

// Gateway fetches related-title candidates from the catalog.
type Gateway interface {
	GetRelated(ctx context.Context, id int64, kind models.TitleKind) ([]tmdb.Summary, error)
}

// Recommendation is one ranked entry returned to the caller.
type Recommendation struct {
	TitleID     int64            `json:"title_id"`
	Kind        models.TitleKind `json:"kind"`
	Title       string           `json:"title"`
	Overview    string           `json:"overview"`
	Rating      float64          `json:"rating"`
	ReleaseYear int              `json:"release_year"`
	Freq        int              `json:"freq"`
	Score       float64          `json:"score"`
}

// Engine aggregates related-title candidates across a user's favorites,
// scores them, and returns a bounded ranked list. It is safe for concurrent
// use.
type Engine struct {
	config    *Config
	favorites FavoriteStore
	genres    GenreStore
	feedback  FeedbackStore
	exposures ExposureStore
	gateway   Gateway
	log       zerolog.Logger

	// rng breaks score ties; guarded for concurrent requests.
	rng   *rand.Rand
	rngMu sync.Mutex

	now func() time.Time
}

// NewEngine creates a recommendation engine.
func NewEngine(cfg *Config, favorites FavoriteStore, genres GenreStore, feedback FeedbackStore,
	exposures ExposureStore, gateway Gateway, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = 42
	}

	return &Engine{
		config:    cfg,
		favorites: favorites,
		genres:    genres,
		feedback:  feedback,
		exposures: exposures,
		gateway:   gateway,
		log:       logger.With().Str("component", "recommend").Logger(),
		rng:       rand.New(rand.NewSource(seed)),
		now:       time.Now,
	}, nil
}

// candidate is one merged entry of the aggregation pool.
type candidate struct {
	tmdb.Summary
	freq int
}

// Recommend returns the top ranked unseen, non-favorite titles for a user.
// A user with no favorites gets an empty list, not an error. Every returned
// title has its exposure record incremented.
func (e *Engine) Recommend(ctx context.Context, userID int64, limit int) ([]Recommendation, error) {
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}

	favorites, err := e.favorites.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}
	if len(favorites) == 0 {
		return nil, nil
	}

	genreSet, err := e.genreSet(ctx, userID)
	if err != nil {
		return nil, err
	}
	weights, err := e.feedback.NetWeightByTitle(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate feedback: %w", err)
	}
	seen, err := e.feedback.SeenTitleIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load seen titles: %w", err)
	}
	exposures, err := e.exposures.MapByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exposures: %w", err)
	}

	pool := e.aggregate(ctx, favorites)

	favoriteIDs := make(map[int64]bool, len(favorites))
	for _, f := range favorites {
		favoriteIDs[f.TitleID] = true
	}

	scored := make([]Recommendation, 0, len(pool))
	for _, c := range pool {
		// Exclusion: never recommend a favorite, a watched title, or a
		// blocked one.
		if favoriteIDs[c.ID] || seen[c.ID] {
			continue
		}
		if w, ok := weights[c.ID]; ok && w <= e.config.HardBlockThreshold {
			continue
		}
		scored = append(scored, Recommendation{
			TitleID:     c.ID,
			Kind:        c.Kind,
			Title:       c.Title,
			Overview:    c.Overview,
			Rating:      c.Rating,
			ReleaseYear: releaseYear(c.ReleaseDate),
			Freq:        c.freq,
			Score:       e.score(c, genreSet, weights[c.ID], exposures[c.ID]),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].TitleID < scored[j].TitleID
	})

	result := e.applyDiversityCap(scored, limit)

	for _, rec := range result {
		if err := e.exposures.Increment(ctx, userID, rec.TitleID); err != nil {
			e.log.Warn().Err(err).Int64("user_id", userID).Int64("title_id", rec.TitleID).
				Msg("failed to record exposure")
		}
	}
	return result, nil
}

// aggregate merges the related-title lists of every favorite keyed by title
// ID, keeping the highest-fidelity attributes seen and counting how many
// distinct favorites surfaced each candidate. A failed fetch for one
// favorite contributes nothing and never aborts the whole aggregation.
func (e *Engine) aggregate(ctx context.Context, favorites []models.FavoriteTitle) map[int64]*candidate {
	pool := make(map[int64]*candidate)
	for _, fav := range favorites {
		related, err := e.gateway.GetRelated(ctx, fav.TitleID, fav.Kind)
		if err != nil {
			e.log.Warn().Err(err).Int64("title_id", fav.TitleID).Str("title", fav.Title).
				Msg("related-titles fetch failed, skipping favorite")
			continue
		}

		seen := make(map[int64]bool, len(related))
		for _, s := range related {
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true

			existing, ok := pool[s.ID]
			if !ok {
				pool[s.ID] = &candidate{Summary: s, freq: 1}
				continue
			}
			existing.freq++
			mergeAttributes(&existing.Summary, s)
		}
	}
	return pool
}

// mergeAttributes fills attribute gaps in dst from src.
func mergeAttributes(dst *tmdb.Summary, src tmdb.Summary) {
	if dst.Rating == 0 {
		dst.Rating = src.Rating
	}
	if dst.Popularity == 0 {
		dst.Popularity = src.Popularity
	}
	if len(dst.GenreIDs) == 0 {
		dst.GenreIDs = src.GenreIDs
	}
	if dst.ReleaseDate == "" {
		dst.ReleaseDate = src.ReleaseDate
	}
	if dst.Overview == "" {
		dst.Overview = src.Overview
	}
}

func (e *Engine) score(c *candidate, genres map[int64]bool, netWeight float64, exposure models.ExposureRecord) float64 {
	cfg := e.config

	overlap := 0
	for _, g := range c.GenreIDs {
		if genres[g] {
			overlap++
		}
	}

	score := cfg.FreqWeight*float64(c.freq) +
		cfg.GenreWeight*float64(overlap) +
		cfg.RatingWeight*c.Rating +
		cfg.PopularityWeight*(c.Popularity/cfg.PopularityNorm) +
		cfg.FeedbackWeight*netWeight

	score += e.recencyTerm(releaseYear(c.ReleaseDate))
	score -= e.exposurePenalty(exposure)
	score += e.jitter()
	return score
}

// recencyTerm is tiered, not linear: a strong bonus for recent titles, a
// small one for moderately recent ones, a penalty below the cutoff year.
func (e *Engine) recencyTerm(year int) float64 {
	if year == 0 {
		return 0
	}
	current := e.now().Year()
	switch {
	case year >= current-e.config.RecentYears:
		return e.config.RecentBonus
	case year >= current-e.config.MidYears:
		return e.config.MidBonus
	case year < e.config.OldYearCutoff:
		return -e.config.OldPenalty
	}
	return 0
}

// exposurePenalty grows with repeated exposures that drew no positive action
// and caps out so it never dominates the score.
func (e *Engine) exposurePenalty(exposure models.ExposureRecord) float64 {
	if exposure.TimesShown == 0 || exposure.LastAction.Positive() {
		return 0
	}
	penalty := float64(exposure.TimesShown) * e.config.ExposurePenaltyStep
	if penalty > e.config.ExposurePenaltyCap {
		penalty = e.config.ExposurePenaltyCap
	}
	return penalty
}

// jitter draws a bounded symmetric random value to break ties and vary
// repeated calls.
func (e *Engine) jitter() float64 {
	if e.config.JitterRange == 0 {
		return 0
	}
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return (e.rng.Float64()*2 - 1) * e.config.JitterRange
}

// applyDiversityCap walks the ranked list and skips pre-cutoff titles once
// their share of the result is exhausted, preserving order otherwise.
func (e *Engine) applyDiversityCap(ranked []Recommendation, limit int) []Recommendation {
	oldCap := int(math.Ceil(e.config.OldShare * float64(limit)))

	result := make([]Recommendation, 0, limit)
	oldUsed := 0
	for _, rec := range ranked {
		if len(result) == limit {
			break
		}
		if rec.ReleaseYear != 0 && rec.ReleaseYear < e.config.OldYearCutoff {
			if oldUsed >= oldCap {
				continue
			}
			oldUsed++
		}
		result = append(result, rec)
	}
	return result
}

func (e *Engine) genreSet(ctx context.Context, userID int64) (map[int64]bool, error) {
	ids, err := e.genres.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load genre preferences: %w", err)
	}
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// releaseYear parses the leading year of a catalog date ("2006-01-02");
// zero means unknown.
func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
