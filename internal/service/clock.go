package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/lyra/internal/domain"
	"github.com/tejashwikalptaru/lyra/internal/ports"
)

// DefaultClockInterval is how often the position clock samples playback.
const DefaultClockInterval = 500 * time.Millisecond

// PositionSource is what the clock samples. PlaybackController implements it.
type PositionSource interface {
	CurrentPosition() time.Duration
	Duration() time.Duration
}

// ProgressSink receives every sample taken by the clock.
type ProgressSink func(position, duration time.Duration)

// PositionClock periodically samples a PositionSource and publishes ProgressEvents.
// It samples regardless of whether playback is paused. Samples never overlap.
type PositionClock struct {
	logger   *slog.Logger
	source   PositionSource
	bus      ports.EventBus
	interval time.Duration

	mu   sync.Mutex
	sink ProgressSink
	run  *clockRun

	sampleMu sync.Mutex
}

type clockRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPositionClock creates a stopped clock. A non-positive interval selects DefaultClockInterval.
func NewPositionClock(logger *slog.Logger, source PositionSource, bus ports.EventBus, interval time.Duration) *PositionClock {
	if interval <= 0 {
		interval = DefaultClockInterval
	}
	return &PositionClock{
		logger:   logger,
		source:   source,
		bus:      bus,
		interval: interval,
	}
}

// SetSink registers fn to receive each sample after it is published.
func (c *PositionClock) SetSink(fn ProgressSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = fn
}

// Interval returns the sampling period.
func (c *PositionClock) Interval() time.Duration {
	return c.interval
}

// Start begins sampling until Stop is called or ctx is cancelled.
// Starting a running clock does nothing.
func (c *PositionClock) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run != nil && !isClosed(c.run.done) {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &clockRun{cancel: cancel, done: make(chan struct{})}
	c.run = r

	go c.tick(ctx, r)
	c.logger.Debug("position clock started", slog.Duration("interval", c.interval))
}

func (c *PositionClock) tick(ctx context.Context, r *clockRun) {
	defer close(r.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sample()
		}
	}
}

// Stop cancels sampling and waits for the sampling goroutine to exit.
func (c *PositionClock) Stop() {
	c.mu.Lock()
	r := c.run
	c.run = nil
	c.mu.Unlock()

	if r == nil {
		return
	}
	r.cancel()
	<-r.done
	c.logger.Debug("position clock stopped")
}

// Running reports whether the sampling goroutine is alive.
func (c *PositionClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run != nil && !isClosed(c.run.done)
}

// Sample reads the source once, publishes a ProgressEvent when anyone listens
// and feeds the sink.
func (c *PositionClock) Sample() (position, duration time.Duration) {
	c.sampleMu.Lock()
	defer c.sampleMu.Unlock()

	position = c.source.CurrentPosition()
	duration = c.source.Duration()

	if c.bus != nil && c.bus.HasSubscribers(domain.EventProgress) {
		c.bus.Publish(domain.NewProgressEvent(position, duration))
	}

	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	if sink != nil {
		sink(position, duration)
	}
	return position, duration
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
