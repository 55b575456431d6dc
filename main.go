package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/havtorin/moviebot/internal/bot"
	"github.com/havtorin/moviebot/internal/calibration"
	"github.com/havtorin/moviebot/internal/config"
	"github.com/havtorin/moviebot/internal/database"
	"github.com/havtorin/moviebot/internal/excel"
	"github.com/havtorin/moviebot/internal/recommend"
	"github.com/havtorin/moviebot/internal/tmdb"
	"github.com/havtorin/moviebot/internal/watcher"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	users := database.NewUserRepository(db)
	favorites := database.NewFavoriteRepository(db)
	genres := database.NewGenreRepository(db)
	feedback := database.NewFeedbackRepository(db)
	candidates := database.NewCalibrationRepository(db)
	subs := database.NewSubscriptionRepository(db)
	exposures := database.NewExposureRepository(db)

	aliases := excel.DefaultAliases()
	if cfg.AliasFile != "" {
		imported, result, err := excel.ImportAliases(excel.DefaultImportConfig(cfg.AliasFile))
		if err != nil {
			logger.Fatal().Err(err).Str("file", cfg.AliasFile).Msg("failed to import title aliases")
		}
		logger.Info().Int("imported", result.Imported).Int("skipped", result.Skipped).
			Str("file", cfg.AliasFile).Msg("loaded title aliases")
		for alias, canonical := range imported {
			aliases[alias] = canonical
		}
	}

	gateway := tmdb.NewClient(cfg.TMDBAPIKey, cfg.TMDBBaseURL, cfg.GatewayTimeout, aliases, logger)

	engine, err := recommend.NewEngine(nil, favorites, genres, feedback, exposures, gateway, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create recommendation engine")
	}

	machine := calibration.New(calibration.DefaultConfig(), users, favorites, genres,
		candidates, feedback, subs, gateway, logger)

	b, err := bot.New(cfg.TelegramToken, bot.DefaultConfig(), machine, engine, gateway,
		users, favorites, feedback, subs, exposures, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create bot")
	}

	w := watcher.New(watcher.Config{
		Interval:    cfg.WatchInterval,
		CallTimeout: cfg.GatewayTimeout,
		Concurrency: cfg.WatcherConcurrency,
		RPS:         cfg.WatcherRPS,
	}, subs, gateway, b, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Start(ctx)

	botDone := make(chan error, 1)
	go func() {
		botDone <- b.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-botDone:
		if err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("bot stopped unexpectedly")
		}
	}

	cancel()
	w.Stop()
	b.Stop()
	logger.Info().Msg("stopped")
}
