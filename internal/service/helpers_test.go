package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/lyra/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/lyra/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/lyra/internal/domain"
	"github.com/tejashwikalptaru/lyra/internal/logger"
	"github.com/tejashwikalptaru/lyra/internal/testutil"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// Helper to create a test track
func createTestTrack(id, title, artist string, duration time.Duration) domain.Track {
	return domain.Track{
		ID:       id,
		Title:    title,
		Artist:   artist,
		Album:    "Test Album",
		Duration: duration,
		Locator:  "/music/" + id + ".mp3",
		Path:     "/music/" + id + ".mp3",
	}
}

// eventRecorder collects every event published on a bus.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func newEventRecorder(bus *eventbus.SyncEventBus) *eventRecorder {
	r := &eventRecorder{}
	bus.SubscribeAll(func(e domain.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	})
	return r
}

func (r *eventRecorder) ofType(eventType domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) count(eventType domain.EventType) int {
	return len(r.ofType(eventType))
}

// waitCount blocks until at least n events of eventType were recorded.
func (r *eventRecorder) waitCount(t *testing.T, eventType domain.EventType, n int) []domain.Event {
	t.Helper()
	require.Eventually(t, func() bool { return r.count(eventType) >= n }, waitFor, tick,
		"waiting for %d %s events", n, eventType)
	return r.ofType(eventType)
}

// playingFlags returns the Playing values of every PlayingStateChangedEvent.
func (r *eventRecorder) playingFlags() []bool {
	var out []bool
	for _, e := range r.ofType(domain.EventPlayingStateChanged) {
		out = append(out, e.(domain.PlayingStateChangedEvent).Playing)
	}
	return out
}

type controllerFixture struct {
	ctrl     *PlaybackController
	bus      *eventbus.SyncEventBus
	primary  *mock.Factory
	fallback *mock.Factory
	events   *eventRecorder
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	// registered first so it runs after the release below
	t.Cleanup(func() { testutil.VerifyNoLeaks(t) })

	bus := eventbus.NewSyncEventBus()
	f := &controllerFixture{
		bus:      bus,
		primary:  mock.NewFactory(domain.BackendPrimary),
		fallback: mock.NewFactory(domain.BackendFallback),
		events:   newEventRecorder(bus),
	}
	f.ctrl = NewPlaybackController(logger.NewTestLogger(), bus, f.primary.New, f.fallback.New)

	t.Cleanup(func() {
		_ = f.ctrl.Release()
		_ = bus.Close()
	})
	return f
}

func (f *controllerFixture) primaryBackend(t *testing.T) *mock.Backend {
	t.Helper()
	b := f.primary.Last()
	require.NotNil(t, b, "primary backend not constructed")
	return b
}

func (f *controllerFixture) fallbackBackend(t *testing.T) *mock.Backend {
	t.Helper()
	b := f.fallback.Last()
	require.NotNil(t, b, "fallback backend not constructed")
	return b
}

func (f *controllerFixture) waitBackend(t *testing.T, kind domain.BackendKind, playing bool) domain.PlaybackState {
	t.Helper()
	var state domain.PlaybackState
	require.Eventually(t, func() bool {
		state = f.ctrl.State()
		return state.Backend == kind && state.Playing == playing
	}, waitFor, tick)
	return state
}
