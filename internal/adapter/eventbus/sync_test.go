package eventbus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/lyra/internal/domain"
	"github.com/tejashwikalptaru/lyra/internal/logger"
)

func testTrack(id string) domain.Track {
	return domain.Track{ID: id, Title: "Test Track", Locator: "/music/" + id + ".mp3"}
}

func TestNewSyncEventBus(t *testing.T) {
	bus := NewSyncEventBus()
	require.NotNil(t, bus)
	assert.Equal(t, 0, bus.SubscriberCount())
	assert.False(t, bus.closed)
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	var received []domain.Event
	subID := bus.Subscribe(domain.EventTrackStarted, func(e domain.Event) {
		received = append(received, e)
	})
	require.NotEmpty(t, subID)

	bus.Publish(domain.NewTrackStartedEvent(testTrack("t1")))
	bus.Publish(domain.NewPlayingStateChangedEvent(true)) // different type, not delivered

	require.Len(t, received, 1)
	started, ok := received[0].(domain.TrackStartedEvent)
	require.True(t, ok)
	assert.Equal(t, "t1", started.Track.ID)
}

func TestPublishNilEvent(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	called := false
	bus.SubscribeAll(func(domain.Event) { called = true })

	bus.Publish(nil)
	assert.False(t, called)
}

func TestDeliveryOrderSurvivesUnsubscribe(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	var order []string
	bus.Subscribe(domain.EventProgress, func(domain.Event) { order = append(order, "a") })
	middle := bus.Subscribe(domain.EventProgress, func(domain.Event) { order = append(order, "b") })
	bus.Subscribe(domain.EventProgress, func(domain.Event) { order = append(order, "c") })
	bus.Subscribe(domain.EventProgress, func(domain.Event) { order = append(order, "d") })

	bus.Unsubscribe(middle)
	bus.Publish(domain.NewProgressEvent(time.Second, time.Minute))

	assert.Equal(t, []string{"a", "c", "d"}, order)
}

func TestUnsubscribeInvalidID(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	assert.NotPanics(t, func() {
		bus.Unsubscribe("invalid-id")
		bus.Unsubscribe("")
	})
}

func TestSubscribeAll(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	var count int
	id := bus.SubscribeAll(func(domain.Event) { count++ })

	bus.Publish(domain.NewTrackStartedEvent(testTrack("t1")))
	bus.Publish(domain.NewProgressEvent(0, 0))
	bus.Publish(domain.NewLyricIndexChangedEvent(2, domain.LyricLine{Text: "x"}))
	assert.Equal(t, 3, count)

	bus.Unsubscribe(id)
	bus.Publish(domain.NewProgressEvent(0, 0))
	assert.Equal(t, 3, count)
}

func TestSubscribeFiltered(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	var got []string
	bus.SubscribeFiltered(domain.EventTrackCompleted,
		func(e domain.Event) bool {
			return e.(domain.TrackCompletedEvent).Track.ID == "wanted"
		},
		func(e domain.Event) {
			got = append(got, e.(domain.TrackCompletedEvent).Track.ID)
		})

	bus.Publish(domain.NewTrackCompletedEvent(testTrack("other"), domain.BackendPrimary))
	bus.Publish(domain.NewTrackCompletedEvent(testTrack("wanted"), domain.BackendFallback))

	assert.Equal(t, []string{"wanted"}, got)
}

func TestHasSubscribers(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	assert.False(t, bus.HasSubscribers(domain.EventProgress))

	bus.Subscribe(domain.EventProgress, func(domain.Event) {})
	assert.True(t, bus.HasSubscribers(domain.EventProgress))
	assert.False(t, bus.HasSubscribers(domain.EventTrackStarted))

	bus.SubscribeAll(func(domain.Event) {})
	assert.True(t, bus.HasSubscribers(domain.EventTrackStarted))
}

func TestHandlerPanic(t *testing.T) {
	bus := NewSyncEventBus()
	bus.SetLogger(logger.NewTestLogger())
	defer bus.Close()

	var calls int32
	bus.Subscribe(domain.EventTrackStarted, func(domain.Event) { panic("boom") })
	bus.Subscribe(domain.EventTrackStarted, func(domain.Event) { atomic.AddInt32(&calls, 1) })

	assert.NotPanics(t, func() {
		bus.Publish(domain.NewTrackStartedEvent(testTrack("t1")))
	})
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHandlerMayPublish(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	var lyricEvents int
	bus.Subscribe(domain.EventProgress, func(domain.Event) {
		bus.Publish(domain.NewLyricIndexChangedEvent(1, domain.LyricLine{}))
	})
	bus.Subscribe(domain.EventLyricIndexChanged, func(domain.Event) { lyricEvents++ })

	bus.Publish(domain.NewProgressEvent(time.Second, time.Minute))
	assert.Equal(t, 1, lyricEvents)
}

func TestClose(t *testing.T) {
	bus := NewSyncEventBus()
	bus.Subscribe(domain.EventTrackStarted, func(domain.Event) {})
	bus.SubscribeAll(func(domain.Event) {})
	require.Equal(t, 2, bus.SubscriberCount())

	require.NoError(t, bus.Close())
	assert.Equal(t, 0, bus.SubscriberCount())

	assert.NotPanics(t, func() {
		bus.Publish(domain.NewTrackStartedEvent(testTrack("t1")))
	})
	assert.Error(t, bus.Close())
	assert.Panics(t, func() {
		bus.Subscribe(domain.EventTrackStarted, func(domain.Event) {})
	})
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	var delivered int64
	bus.Subscribe(domain.EventProgress, func(domain.Event) {
		atomic.AddInt64(&delivered, 1)
	})

	const publishers = 8
	const perPublisher = 100

	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				bus.Publish(domain.NewProgressEvent(time.Duration(j)*time.Millisecond, time.Minute))
			}
		}()
		go func() {
			defer wg.Done()
			id := bus.Subscribe(domain.EventLyricIndexChanged, func(domain.Event) {})
			bus.Unsubscribe(id)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(publishers*perPublisher), atomic.LoadInt64(&delivered))
}
