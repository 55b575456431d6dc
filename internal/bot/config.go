package bot

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Number of recommendations to return per request
	RecommendLimit int
	// Minimum favorites before recommendations are offered
	MinFavorites int
	// Long-poll timeout for the updates channel, in seconds
	UpdateTimeout int
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		RecommendLimit: 10,
		MinFavorites:   3,
		UpdateTimeout:  60,
	}
}
