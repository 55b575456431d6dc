package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havtorin/moviebot/pkg/models"
)

type memStore struct {
	mu       sync.Mutex
	subs     []models.Subscription
	markers  map[int64]string
	notified map[int64]string
}

func (s *memStore) ListAll(_ context.Context) ([]models.Subscription, error) {
	return s.subs, nil
}

func (s *memStore) UpdateMarker(_ context.Context, subID int64, marker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markers == nil {
		s.markers = map[int64]string{}
	}
	s.markers[subID] = marker
	return nil
}

func (s *memStore) MarkNotified(_ context.Context, subID int64, marker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notified == nil {
		s.notified = map[int64]string{}
	}
	s.notified[subID] = marker
	return nil
}

type stubGateway struct {
	mu      sync.Mutex
	markers map[int64]string
	fail    map[int64]bool
	calls   int
}

func (g *stubGateway) LatestMarker(_ context.Context, titleID int64) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.fail[titleID] {
		return "", errors.New("catalog unavailable")
	}
	return g.markers[titleID], nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []models.Notification
	errOn int64
}

func (n *recordingNotifier) NotifyNewRelease(notification models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.errOn != 0 && notification.TitleID == n.errOn {
		return errors.New("delivery failed")
	}
	n.sent = append(n.sent, notification)
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RPS = 10000 // tests must not wait on the limiter
	return cfg
}

func TestFirstObservationIsSilent(t *testing.T) {
	store := &memStore{subs: []models.Subscription{
		{ID: 1, UserID: 1, TitleID: 100, Title: "Brassic", ChatID: 500, LastMarker: ""},
	}}
	gateway := &stubGateway{markers: map[int64]string{100: "2024-10-17"}}
	notifier := &recordingNotifier{}

	w := New(testConfig(), store, gateway, notifier, zerolog.Nop())
	require.NoError(t, w.RunCycle(context.Background()))

	assert.Empty(t, notifier.sent, "the baseline observation must not alert")
	assert.Equal(t, "2024-10-17", store.markers[1], "but the marker is recorded")
	assert.Empty(t, store.notified)
}

func TestMarkerChangeNotifiesOnce(t *testing.T) {
	store := &memStore{subs: []models.Subscription{
		{ID: 1, UserID: 1, TitleID: 100, Title: "Brassic", ChatID: 500, LastMarker: "2024-10-10"},
	}}
	gateway := &stubGateway{markers: map[int64]string{100: "2024-10-17"}}
	notifier := &recordingNotifier{}

	w := New(testConfig(), store, gateway, notifier, zerolog.Nop())
	require.NoError(t, w.RunCycle(context.Background()))

	require.Len(t, notifier.sent, 1)
	n := notifier.sent[0]
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, int64(500), n.ChatID)
	assert.Equal(t, "Brassic", n.Title)
	assert.Equal(t, "2024-10-17", n.Marker)
	assert.Equal(t, "2024-10-17", store.markers[1])
	assert.Equal(t, "2024-10-17", store.notified[1])

	// The next cycle sees the updated marker and stays quiet.
	store.subs[0].LastMarker = store.markers[1]
	require.NoError(t, w.RunCycle(context.Background()))
	assert.Len(t, notifier.sent, 1)
}

func TestUnchangedMarkerIsQuiet(t *testing.T) {
	store := &memStore{subs: []models.Subscription{
		{ID: 1, TitleID: 100, Title: "Brassic", LastMarker: "2024-10-17"},
	}}
	gateway := &stubGateway{markers: map[int64]string{100: "2024-10-17"}}
	notifier := &recordingNotifier{}

	w := New(testConfig(), store, gateway, notifier, zerolog.Nop())
	require.NoError(t, w.RunCycle(context.Background()))

	assert.Empty(t, notifier.sent)
	assert.Empty(t, store.markers, "no write for an unchanged marker")
}

func TestEmptyMarkerIsIgnored(t *testing.T) {
	store := &memStore{subs: []models.Subscription{
		{ID: 1, TitleID: 100, Title: "Announced", LastMarker: ""},
	}}
	gateway := &stubGateway{markers: map[int64]string{100: ""}}
	notifier := &recordingNotifier{}

	w := New(testConfig(), store, gateway, notifier, zerolog.Nop())
	require.NoError(t, w.RunCycle(context.Background()))

	assert.Empty(t, notifier.sent)
	assert.Empty(t, store.markers, "a series with no aired episodes records nothing")
}

func TestRowFailureIsIsolated(t *testing.T) {
	store := &memStore{subs: []models.Subscription{
		{ID: 1, TitleID: 100, Title: "Broken", LastMarker: "2024-01-01"},
		{ID: 2, TitleID: 200, Title: "Fine", ChatID: 500, LastMarker: "2024-01-01"},
	}}
	gateway := &stubGateway{
		markers: map[int64]string{200: "2024-10-17"},
		fail:    map[int64]bool{100: true},
	}
	notifier := &recordingNotifier{}

	w := New(testConfig(), store, gateway, notifier, zerolog.Nop())
	require.NoError(t, w.RunCycle(context.Background()), "one bad row never fails the cycle")

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "Fine", notifier.sent[0].Title)
	assert.NotContains(t, store.markers, int64(1), "the failed row is retried next cycle from its old marker")
}

func TestDeliveryFailureKeepsNotifiedMarker(t *testing.T) {
	store := &memStore{subs: []models.Subscription{
		{ID: 1, TitleID: 100, Title: "Brassic", LastMarker: "2024-01-01"},
	}}
	gateway := &stubGateway{markers: map[int64]string{100: "2024-10-17"}}
	notifier := &recordingNotifier{errOn: 100}

	w := New(testConfig(), store, gateway, notifier, zerolog.Nop())
	require.NoError(t, w.RunCycle(context.Background()))

	assert.Equal(t, "2024-10-17", store.markers[1], "the observation itself still lands")
	assert.Empty(t, store.notified)
}

func TestCycleChecksEverySubscription(t *testing.T) {
	var subs []models.Subscription
	markers := map[int64]string{}
	for i := int64(1); i <= 20; i++ {
		subs = append(subs, models.Subscription{ID: i, TitleID: i * 100, LastMarker: "2024-01-01"})
		markers[i*100] = "2024-01-01"
	}
	store := &memStore{subs: subs}
	gateway := &stubGateway{markers: markers}
	notifier := &recordingNotifier{}

	w := New(testConfig(), store, gateway, notifier, zerolog.Nop())
	require.NoError(t, w.RunCycle(context.Background()))

	assert.Equal(t, 20, gateway.calls)
	assert.Empty(t, notifier.sent)
}
