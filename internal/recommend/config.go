package recommend

import "fmt"

// Config holds the scoring coefficients and thresholds. None of these are
// contractual; they are tunable knobs with defaults that behaved well in
// practice.
type Config struct {
	// FreqWeight multiplies how many distinct favorites surfaced a candidate.
	FreqWeight float64
	// GenreWeight multiplies the overlap between candidate genres and the
	// user's preferred genres.
	GenreWeight float64
	// RatingWeight multiplies the catalog rating (0-10).
	RatingWeight float64
	// PopularityWeight multiplies popularity divided by PopularityNorm.
	PopularityWeight float64
	// PopularityNorm scales raw catalog popularity into a comparable range.
	PopularityNorm float64
	// FeedbackWeight multiplies the user's net feedback weight for the title.
	FeedbackWeight float64

	// RecentYears / RecentBonus: titles released within RecentYears get the
	// strong bonus.
	RecentYears int
	RecentBonus float64
	// MidYears / MidBonus: titles within MidYears get the small bonus.
	MidYears int
	MidBonus float64
	// OldYearCutoff / OldPenalty: titles released before the cutoff year are
	// penalized and count against the diversity cap.
	OldYearCutoff int
	OldPenalty    float64

	// ExposurePenaltyStep is subtracted per prior exposure without a positive
	// action; the total penalty caps at ExposurePenaltyCap.
	ExposurePenaltyStep float64
	ExposurePenaltyCap  float64

	// JitterRange bounds the symmetric random tie-breaker. It must stay small
	// relative to the deterministic terms.
	JitterRange float64

	// OldShare caps the fraction of pre-cutoff titles in the final list.
	OldShare float64

	// HardBlockThreshold excludes candidates whose net feedback weight is at
	// or below it.
	HardBlockThreshold float64

	// DefaultLimit is used when the caller passes a non-positive limit.
	DefaultLimit int

	// Seed makes the jitter reproducible; 0 selects the fixed default seed.
	Seed int64
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		FreqWeight:          2.0,
		GenreWeight:         1.0,
		RatingWeight:        0.5,
		PopularityWeight:    0.5,
		PopularityNorm:      100,
		FeedbackWeight:      1.0,
		RecentYears:         10,
		RecentBonus:         1.5,
		MidYears:            20,
		MidBonus:            0.5,
		OldYearCutoff:       1990,
		OldPenalty:          1.0,
		ExposurePenaltyStep: 0.3,
		ExposurePenaltyCap:  1.5,
		JitterRange:         0.25,
		OldShare:            0.2,
		HardBlockThreshold:  -2,
		DefaultLimit:        10,
	}
}

// Validate checks the configuration for values that would corrupt scoring.
func (c *Config) Validate() error {
	if c.PopularityNorm <= 0 {
		return fmt.Errorf("popularity norm must be positive, got %v", c.PopularityNorm)
	}
	if c.JitterRange < 0 {
		return fmt.Errorf("jitter range must be non-negative, got %v", c.JitterRange)
	}
	if c.OldShare < 0 || c.OldShare > 1 {
		return fmt.Errorf("old-title share must be in [0, 1], got %v", c.OldShare)
	}
	if c.ExposurePenaltyStep < 0 || c.ExposurePenaltyCap < 0 {
		return fmt.Errorf("exposure penalty must be non-negative")
	}
	if c.RecentYears <= 0 || c.MidYears < c.RecentYears {
		return fmt.Errorf("recency tiers must satisfy 0 < recent <= mid, got %d/%d",
			c.RecentYears, c.MidYears)
	}
	if c.DefaultLimit <= 0 {
		return fmt.Errorf("default limit must be positive, got %d", c.DefaultLimit)
	}
	return nil
}
