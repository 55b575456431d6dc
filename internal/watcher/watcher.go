package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/havtorin/moviebot/pkg/models"
)

// SubscriptionStore provides the watcher's view of followed series.
type SubscriptionStore interface {
	ListAll(ctx context.Context) ([]models.Subscription, error)
	UpdateMarker(ctx context.Context, subID int64, marker string) error
	MarkNotified(ctx context.Context, subID int64, marker string) error
}

// Gateway fetches the current release marker of a series.
type Gateway interface {
	LatestMarker(ctx context.Context, titleID int64) (string, error)
}

// Notifier delivers new-release notifications to the chat surface.
type Notifier interface {
	NotifyNewRelease(n models.Notification) error
}

// Config bounds the watcher's cadence and its load on the catalog.
type Config struct {
	// Interval is the polling cadence.
	Interval time.Duration
	// CallTimeout bounds each catalog call; a timeout fails that row only.
	CallTimeout time.Duration
	// Concurrency bounds parallel catalog calls per cycle.
	Concurrency int64
	// RPS rate-limits catalog calls.
	RPS float64
}

// DefaultConfig returns the default watcher configuration.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Hour,
		CallTimeout: 10 * time.Second,
		Concurrency: 4,
		RPS:         5,
	}
}

// Watcher periodically polls the catalog for every followed series of every
// user and raises at most one notification per distinct release-marker
// change. It runs independently of the request path.
type Watcher struct {
	cfg       Config
	scheduler *gocron.Scheduler
	store     SubscriptionStore
	gateway   Gateway
	notifier  Notifier
	limiter   *rate.Limiter
	log       zerolog.Logger
}

// New creates a watcher instance.
func New(cfg Config, store SubscriptionStore, gateway Gateway, notifier Notifier, logger zerolog.Logger) *Watcher {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.RPS <= 0 {
		cfg.RPS = def.RPS
	}
	return &Watcher{
		cfg:       cfg,
		scheduler: gocron.NewScheduler(time.UTC),
		store:     store,
		gateway:   gateway,
		notifier:  notifier,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RPS), 1),
		log:       logger.With().Str("component", "watcher").Logger(),
	}
}

// Start begins running cycles on the configured interval. It does not block.
func (w *Watcher) Start(ctx context.Context) {
	w.scheduler.Every(w.cfg.Interval).Do(func() {
		if err := w.RunCycle(ctx); err != nil {
			w.log.Error().Err(err).Msg("watcher cycle failed")
		}
	})
	w.scheduler.StartAsync()
}

// Stop terminates the schedule. An in-flight cycle is bounded by the cycle
// context and the per-call timeouts.
func (w *Watcher) Stop() {
	w.scheduler.Stop()
}

// RunCycle scans all subscriptions once. Rows are checked concurrently up to
// the configured bound; one row's failure or notification never blocks
// another's processing.
func (w *Watcher) RunCycle(ctx context.Context) error {
	subs, err := w.store.ListAll(ctx)
	if err != nil {
		return err
	}

	sem := semaphore.NewWeighted(w.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, sub := range subs {
		if err := sem.Acquire(ctx, 1); err != nil {
			break // shutdown
		}
		wg.Add(1)
		go func(sub models.Subscription) {
			defer wg.Done()
			defer sem.Release(1)
			w.checkSubscription(ctx, sub)
		}(sub)
	}
	wg.Wait()
	return nil
}

// checkSubscription compares the stored marker with the catalog's current
// one. A first observation updates silently; a change updates the row and
// emits exactly one notification.
func (w *Watcher) checkSubscription(ctx context.Context, sub models.Subscription) {
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
	defer cancel()

	marker, err := w.gateway.LatestMarker(callCtx, sub.TitleID)
	if err != nil {
		w.log.Warn().Err(err).Int64("title_id", sub.TitleID).Str("title", sub.Title).
			Msg("failed to fetch release marker, skipping until next cycle")
		return
	}
	if marker == "" || marker == sub.LastMarker {
		return
	}

	if err := w.store.UpdateMarker(ctx, sub.ID, marker); err != nil {
		w.log.Error().Err(err).Int64("sub_id", sub.ID).Msg("failed to store release marker")
		return
	}

	// Silent baseline: the first real marker must not trigger a false
	// "new episode" alert.
	if sub.LastMarker == "" {
		return
	}

	n := models.Notification{
		ID:      uuid.NewString(),
		ChatID:  sub.ChatID,
		TitleID: sub.TitleID,
		Title:   sub.Title,
		Marker:  marker,
	}
	if err := w.notifier.NotifyNewRelease(n); err != nil {
		w.log.Error().Err(err).Int64("chat_id", sub.ChatID).Msg("failed to deliver notification")
		return
	}
	if err := w.store.MarkNotified(ctx, sub.ID, marker); err != nil {
		w.log.Warn().Err(err).Int64("sub_id", sub.ID).Msg("failed to record notified marker")
	}
}
