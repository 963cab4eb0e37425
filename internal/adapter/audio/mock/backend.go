// Package mock provides a mock implementation of the PlaybackBackend interface.
// This is used for testing services without decoding or rendering real audio.
package mock

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/lyra/internal/domain"
	"github.com/tejashwikalptaru/lyra/internal/ports"
)

// DefaultDuration is the simulated length of every loaded resource.
const DefaultDuration = 3 * time.Minute

// Errors returned when failure knobs are set.
var (
	ErrMockLoad    = errors.New("mock load failed")
	ErrMockPlay    = errors.New("mock play failed")
	ErrMockRelease = errors.New("mock release failed")
)

// Backend is a mock implementation of ports.PlaybackBackend.
// It simulates playback in memory; tests drive decoder outcomes with the Simulate* methods.
//
// Thread-safety: This implementation is thread-safe.
type Backend struct {
	logger *slog.Logger
	kind   domain.BackendKind

	mu       sync.RWMutex
	locator  string
	listener ports.BackendListener
	loaded   bool
	playing  bool
	position time.Duration
	duration time.Duration
	released bool

	// Behavior configuration (for testing error scenarios)
	failLoad    bool
	failPlay    bool
	failRelease bool

	calls Calls
}

// Calls counts the commands a Backend received.
type Calls struct {
	Load     int
	Play     int
	Pause    int
	Resume   int
	Seek     int
	Release  int
	Locators []string
}

// NewBackend creates a new mock backend reporting itself as kind in errors.
func NewBackend(kind domain.BackendKind) *Backend {
	return &Backend{
		kind:     kind,
		duration: DefaultDuration,
	}
}

// SetLogger sets the logger for this backend.
func (m *Backend) SetLogger(logger *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// SetFailLoad configures Load to fail synchronously (for testing).
func (m *Backend) SetFailLoad(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLoad = fail
}

// SetFailPlay configures Play to fail synchronously (for testing).
func (m *Backend) SetFailPlay(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPlay = fail
}

// SetFailRelease makes Release report an error after releasing (for testing).
func (m *Backend) SetFailRelease(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRelease = fail
}

// SetDuration changes the simulated length of loaded resources.
func (m *Backend) SetDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.duration = d
}

// Load implements ports.PlaybackBackend.
func (m *Backend) Load(locator string, listener ports.BackendListener) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls.Load++
	m.calls.Locators = append(m.calls.Locators, locator)

	if m.released {
		return domain.ErrBackendReleased
	}
	if locator == "" {
		return domain.NewBackendError(m.kind, "load", locator, domain.ErrInvalidLocator)
	}
	if m.failLoad {
		return domain.NewBackendError(m.kind, "load", locator, ErrMockLoad)
	}

	m.locator = locator
	m.listener = listener
	m.loaded = true
	m.playing = false
	m.position = 0

	if m.logger != nil {
		m.logger.Debug("mock backend loaded", slog.String("backend", m.kind.String()), slog.String("locator", locator))
	}
	return nil
}

// Play implements ports.PlaybackBackend.
func (m *Backend) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls.Play++
	if m.released {
		return domain.ErrBackendReleased
	}
	if !m.loaded {
		return domain.ErrNoTrackLoaded
	}
	if m.failPlay {
		return domain.NewBackendError(m.kind, "play", m.locator, ErrMockPlay)
	}

	m.playing = true
	return nil
}

// Pause implements ports.PlaybackBackend.
func (m *Backend) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls.Pause++
	if m.released {
		return domain.ErrBackendReleased
	}
	m.playing = false
	return nil
}

// Resume implements ports.PlaybackBackend.
func (m *Backend) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls.Resume++
	if m.released {
		return domain.ErrBackendReleased
	}
	if !m.loaded {
		return domain.ErrNoTrackLoaded
	}
	m.playing = true
	return nil
}

// SeekTo implements ports.PlaybackBackend. The target is clamped to [0, duration].
func (m *Backend) SeekTo(position time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls.Seek++
	if m.released {
		return domain.ErrBackendReleased
	}
	if !m.loaded {
		return domain.ErrNoTrackLoaded
	}
	m.position = min(max(position, 0), m.duration)
	return nil
}

// CurrentPosition implements ports.PlaybackBackend.
func (m *Backend) CurrentPosition() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded {
		return 0
	}
	return m.position
}

// Duration implements ports.PlaybackBackend.
func (m *Backend) Duration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded {
		return 0
	}
	return m.duration
}

// Release implements ports.PlaybackBackend. It is idempotent.
func (m *Backend) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls.Release++
	m.released = true
	m.loaded = false
	m.playing = false
	m.listener = nil
	m.position = 0
	if m.failRelease {
		return domain.NewBackendError(m.kind, "release", m.locator, ErrMockRelease)
	}
	return nil
}

// IsPlaying reports whether the mock is rendering (for testing).
func (m *Backend) IsPlaying() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.playing
}

// IsReleased reports whether Release was called (for testing).
func (m *Backend) IsReleased() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.released
}

// Locator returns the currently loaded locator.
func (m *Backend) Locator() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locator
}

// Calls returns a copy of the call counters.
func (m *Backend) Calls() Calls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.calls
	c.Locators = append([]string(nil), m.calls.Locators...)
	return c
}

// Listener returns the listener of the latest Load. Tests keep it around to
// deliver callbacks for a superseded load.
func (m *Backend) Listener() ports.BackendListener {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listener
}

// SimulateError reports an asynchronous decode failure for the current load.
// Returns false if nothing is loaded.
func (m *Backend) SimulateError(err error) bool {
	m.mu.Lock()
	listener := m.listener
	if listener == nil {
		m.mu.Unlock()
		return false
	}
	m.playing = false
	if err == nil {
		err = domain.ErrUnsupportedFormat
	}
	err = domain.NewBackendError(m.kind, "decode", m.locator, err)
	m.mu.Unlock()

	listener.OnError(err)
	return true
}

// SimulateCompletion moves the position to the end and reports completion.
// Returns false if nothing is loaded.
func (m *Backend) SimulateCompletion() bool {
	m.mu.Lock()
	listener := m.listener
	if listener == nil {
		m.mu.Unlock()
		return false
	}
	m.playing = false
	m.position = m.duration
	m.mu.Unlock()

	listener.OnCompletion()
	return true
}

// SimulateProgress advances the position while playing.
// Reaching the end triggers completion.
func (m *Backend) SimulateProgress(delta time.Duration) {
	m.mu.Lock()
	if !m.playing {
		m.mu.Unlock()
		return
	}
	m.position += delta
	done := m.position >= m.duration
	m.mu.Unlock()

	if done {
		m.SimulateCompletion()
	}
}

// Verify that Backend implements the PlaybackBackend interface
var _ ports.PlaybackBackend = (*Backend)(nil)
