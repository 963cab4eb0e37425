// Package service provides the playback core of the Lyra player.
package service

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/lyra/internal/domain"
	"github.com/tejashwikalptaru/lyra/internal/ports"
)

// activeBackend is the backend currently rendering, tagged with its kind.
type activeBackend struct {
	kind domain.BackendKind
	impl ports.PlaybackBackend
}

// command is a unit of work executed on the controller loop.
type command struct {
	fn    func() error
	reply chan error
}

// backendMsg is an asynchronous outcome reported by a backend listener.
// gen and kind identify the load it belongs to.
type backendMsg struct {
	gen       uint64
	kind      domain.BackendKind
	err       error
	completed bool
}

// PlaybackController drives the primary backend and fails over to a fallback
// backend when the primary cannot decode the active track.
//
// All state is owned by a single goroutine. Public methods submit a command
// and wait for its reply; backend callbacks are queued and handled by the
// same goroutine, so commands and callbacks never interleave.
// Events are published from a separate goroutine, in order.
type PlaybackController struct {
	// Dependencies (injected)
	logger      *slog.Logger
	newPrimary  ports.BackendFactory
	newFallback ports.BackendFactory
	notify      *notifier

	cmds chan command
	done chan struct{}

	inboxMu     sync.Mutex
	inbox       []backendMsg
	inboxClosed bool
	inboxWake   chan struct{}

	releaseOnce sync.Once

	// State (loop goroutine only)
	primary    ports.PlaybackBackend
	active     activeBackend
	gen        uint64
	state      domain.PlaybackState
	onComplete func(domain.Track)
	released   bool
}

// NewPlaybackController creates a controller and starts its loop.
// The primary backend is constructed on the first Play and reused afterwards;
// a fresh fallback backend is constructed for every failover.
func NewPlaybackController(
	logger *slog.Logger,
	bus ports.EventBus,
	newPrimary ports.BackendFactory,
	newFallback ports.BackendFactory,
) *PlaybackController {
	c := &PlaybackController{
		logger:      logger,
		newPrimary:  newPrimary,
		newFallback: newFallback,
		notify:      newNotifier(bus),
		cmds:        make(chan command),
		done:        make(chan struct{}),
		inboxWake:   make(chan struct{}, 1),
		state:       domain.PlaybackState{Status: domain.StatusIdle},
	}

	go c.loop()

	logger.Debug("playback controller initialized")
	return c
}

func (c *PlaybackController) loop() {
	defer close(c.done)

	for {
		select {
		case cmd := <-c.cmds:
			cmd.reply <- cmd.fn()
			if c.released {
				c.closeInbox()
				return
			}

		case <-c.inboxWake:
			for _, msg := range c.drainInbox() {
				c.handleBackendMsg(msg)
			}
		}
	}
}

// do runs fn on the loop and returns its result.
func (c *PlaybackController) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.cmds <- command{fn: fn, reply: reply}:
		return <-reply
	case <-c.done:
		return domain.ErrReleased
	}
}

// post queues a backend outcome. It never blocks; outcomes after release are dropped.
func (c *PlaybackController) post(msg backendMsg) {
	c.inboxMu.Lock()
	if c.inboxClosed {
		c.inboxMu.Unlock()
		return
	}
	c.inbox = append(c.inbox, msg)
	c.inboxMu.Unlock()

	select {
	case c.inboxWake <- struct{}{}:
	default:
	}
}

func (c *PlaybackController) drainInbox() []backendMsg {
	c.inboxMu.Lock()
	defer c.inboxMu.Unlock()
	msgs := c.inbox
	c.inbox = nil
	return msgs
}

func (c *PlaybackController) closeInbox() {
	c.inboxMu.Lock()
	defer c.inboxMu.Unlock()
	c.inboxClosed = true
	c.inbox = nil
}

// listenerFor stamps callbacks with the load they belong to.
func (c *PlaybackController) listenerFor(gen uint64, kind domain.BackendKind) ports.BackendListener {
	return ports.ListenerFuncs{
		Error: func(err error) {
			c.post(backendMsg{gen: gen, kind: kind, err: err})
		},
		Completion: func() {
			c.post(backendMsg{gen: gen, kind: kind, completed: true})
		},
	}
}

// SetCompletionHook registers fn to run after a track plays to its end.
// fn runs on the event goroutine, after TrackCompletedEvent was published.
func (c *PlaybackController) SetCompletionHook(fn func(domain.Track)) error {
	return c.do(func() error {
		c.onComplete = fn
		return nil
	})
}

// Play starts track on the primary backend, abandoning whatever was playing.
// Primary failures, synchronous or not, are handled by failing over.
func (c *PlaybackController) Play(track domain.Track) error {
	return c.do(func() error {
		c.play(track)
		return nil
	})
}

func (c *PlaybackController) play(track domain.Track) {
	c.releaseFallback()

	c.gen++
	c.state.ActiveTrack = &track
	c.state.Backend = domain.BackendPrimary
	c.state.Status = domain.StatusPlaying

	c.logger.Debug("playing track",
		slog.String("track_id", track.ID),
		slog.String("locator", track.Locator),
		slog.Uint64("generation", c.gen))

	if c.primary == nil {
		p, err := c.newPrimary()
		if err != nil {
			c.active = activeBackend{kind: domain.BackendPrimary}
			c.notify.publish(domain.NewTrackStartedEvent(track))
			c.failover(err)
			return
		}
		c.primary = p
	}
	c.active = activeBackend{kind: domain.BackendPrimary, impl: c.primary}
	c.notify.publish(domain.NewTrackStartedEvent(track))

	if err := c.primary.Load(track.Locator, c.listenerFor(c.gen, domain.BackendPrimary)); err != nil {
		c.failover(err)
		return
	}
	if err := c.primary.Play(); err != nil {
		c.failover(err)
		return
	}
	c.setPlaying(true)
}

// failover moves the active track onto a fresh fallback backend.
func (c *PlaybackController) failover(cause error) {
	track := *c.state.ActiveTrack
	c.logger.Info("primary backend failed, switching to fallback",
		slog.String("track_id", track.ID),
		slog.String("locator", track.Locator),
		slog.Any("error", cause))

	fb, err := c.newFallback()
	if err == nil {
		err = fb.Load(track.Locator, c.listenerFor(c.gen, domain.BackendFallback))
		if err == nil {
			err = fb.Play()
		}
		if err != nil {
			if relErr := fb.Release(); relErr != nil {
				c.logger.Debug("failed to release fallback", slog.Any("error", relErr))
			}
		}
	}
	if err != nil {
		c.active = activeBackend{kind: domain.BackendFallback}
		c.state.Backend = domain.BackendFallback
		c.fail(track, err)
		return
	}

	c.active = activeBackend{kind: domain.BackendFallback, impl: fb}
	c.state.Backend = domain.BackendFallback
	c.state.Status = domain.StatusPlaying
	c.setPlaying(true)
	c.notify.publish(domain.NewBackendSwitchedEvent(track, domain.BackendPrimary, domain.BackendFallback, cause))
}

// fail stops playback after no backend could render track. No retry until the next Play.
func (c *PlaybackController) fail(track domain.Track, err error) {
	var be *domain.BackendError
	if !errors.As(err, &be) {
		be = domain.NewBackendError(domain.BackendFallback, "load", track.Locator, err)
	}

	c.state.Status = domain.StatusStopped
	c.setPlaying(false)

	c.logger.Warn("playback failed on every backend",
		slog.String("track_id", track.ID),
		slog.String("locator", track.Locator),
		slog.Any("error", be))
	c.notify.publish(domain.NewPlaybackFailedEvent(track, be))
}

func (c *PlaybackController) handleBackendMsg(msg backendMsg) {
	if msg.gen != c.gen || c.active.impl == nil || msg.kind != c.active.kind {
		c.logger.Debug("dropping stale backend report",
			slog.String("backend", msg.kind.String()),
			slog.Uint64("generation", msg.gen),
			slog.Uint64("current_generation", c.gen),
			slog.Bool("completed", msg.completed),
			slog.Any("error", msg.err))
		return
	}

	if msg.completed {
		c.complete()
		return
	}

	switch msg.kind {
	case domain.BackendPrimary:
		c.failover(msg.err)
	default:
		c.fail(*c.state.ActiveTrack, msg.err)
	}
}

// complete handles a natural end of the active track. Backends stay loaded.
func (c *PlaybackController) complete() {
	track := *c.state.ActiveTrack
	c.state.Status = domain.StatusStopped
	c.setPlaying(false)

	c.logger.Debug("track completed", slog.String("track_id", track.ID), slog.String("backend", c.active.kind.String()))
	c.notify.publish(domain.NewTrackCompletedEvent(track, c.active.kind))
	if hook := c.onComplete; hook != nil {
		c.notify.enqueue(func() { hook(track) })
	}
}

func (c *PlaybackController) setPlaying(playing bool) {
	if c.state.Playing == playing {
		return
	}
	c.state.Playing = playing
	c.notify.publish(domain.NewPlayingStateChangedEvent(playing))
}

// releaseFallback drops a fallback instance left from the previous track.
func (c *PlaybackController) releaseFallback() {
	if c.active.kind != domain.BackendFallback || c.active.impl == nil {
		return
	}
	if err := c.active.impl.Release(); err != nil {
		c.logger.Debug("failed to release fallback", slog.Any("error", err))
	}
	c.active = activeBackend{}
}

// Pause pauses the active backend. Nothing happens unless playing.
func (c *PlaybackController) Pause() error {
	return c.do(c.pause)
}

func (c *PlaybackController) pause() error {
	if c.active.impl == nil || c.state.Status != domain.StatusPlaying {
		return nil
	}
	if err := c.active.impl.Pause(); err != nil {
		return err
	}
	c.state.Status = domain.StatusPaused
	c.setPlaying(false)
	return nil
}

// Resume continues a paused track. Nothing happens unless paused.
func (c *PlaybackController) Resume() error {
	return c.do(c.resume)
}

func (c *PlaybackController) resume() error {
	if c.active.impl == nil || c.state.Status != domain.StatusPaused {
		return nil
	}
	if err := c.active.impl.Resume(); err != nil {
		return err
	}
	c.state.Status = domain.StatusPlaying
	c.setPlaying(true)
	return nil
}

// TogglePlayPause pauses when playing and resumes when paused.
// A stopped track (completed or failed) is played again from the start.
func (c *PlaybackController) TogglePlayPause() error {
	return c.do(func() error {
		switch {
		case c.state.Status == domain.StatusPlaying:
			return c.pause()
		case c.state.Status == domain.StatusPaused:
			return c.resume()
		case c.state.Status == domain.StatusStopped && c.state.ActiveTrack != nil:
			c.play(*c.state.ActiveTrack)
			return nil
		default:
			return domain.ErrNoTrackLoaded
		}
	})
}

// SeekTo forwards position to the active backend, which clamps it.
func (c *PlaybackController) SeekTo(position time.Duration) error {
	return c.do(func() error {
		if c.active.impl == nil {
			return domain.ErrNoTrackLoaded
		}
		return c.active.impl.SeekTo(position)
	})
}

// query runs fn on the loop; after release it does nothing.
func (c *PlaybackController) query(fn func()) {
	_ = c.do(func() error {
		fn()
		return nil
	})
}

// CurrentPosition returns the active backend's position, or 0.
func (c *PlaybackController) CurrentPosition() time.Duration {
	var pos time.Duration
	c.query(func() { pos = c.position() })
	return pos
}

// Duration returns the active backend's duration, or 0. Never negative.
func (c *PlaybackController) Duration() time.Duration {
	var d time.Duration
	c.query(func() { d = c.duration() })
	return d
}

func (c *PlaybackController) position() time.Duration {
	if c.active.impl == nil {
		return 0
	}
	return c.active.impl.CurrentPosition()
}

func (c *PlaybackController) duration() time.Duration {
	if c.active.impl == nil {
		return 0
	}
	return max(c.active.impl.Duration(), 0)
}

// State returns a snapshot of the controller. After release it reports StatusReleased.
func (c *PlaybackController) State() domain.PlaybackState {
	state := domain.PlaybackState{Status: domain.StatusReleased}
	c.query(func() {
		state = c.state
		if c.state.ActiveTrack != nil {
			track := *c.state.ActiveTrack
			state.ActiveTrack = &track
		}
		state.Position = c.position()
		state.Duration = c.duration()
	})
	return state
}

// Release tears down both backends and stops the loop. Every later command
// returns domain.ErrReleased. Calling Release again is a no-op returning nil.
//
// Release must not be called from an event handler.
func (c *PlaybackController) Release() error {
	var err error
	c.releaseOnce.Do(func() {
		err = c.do(func() error {
			var errs []error
			if c.active.kind == domain.BackendFallback && c.active.impl != nil {
				errs = append(errs, c.active.impl.Release())
			}
			if c.primary != nil {
				errs = append(errs, c.primary.Release())
			}
			c.active = activeBackend{}
			c.gen++
			c.setPlaying(false)
			c.state.Status = domain.StatusReleased
			c.released = true
			c.logger.Debug("playback controller released")
			return errors.Join(errs...)
		})
		<-c.done
		c.notify.close()
	})
	return err
}
