// Package beepaudio implements the primary playback backend on top of gopxl/beep.
//
// Load returns immediately and decodes the container header on a goroutine,
// so failures surface through the listener rather than from Load.
package beepaudio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/spf13/afero"

	"github.com/tejashwikalptaru/lyra/internal/domain"
	"github.com/tejashwikalptaru/lyra/internal/ports"
)

const resampleQuality = 4

// Config holds output settings for the primary backend.
type Config struct {
	SampleRate   int
	BufferFrames int
}

// DefaultConfig returns CD-quality output with a 1024 frame buffer.
func DefaultConfig() Config {
	return Config{SampleRate: 44100, BufferFrames: 1024}
}

// stream is one decoded resource attached to the output.
type stream struct {
	file     afero.File
	decoder  beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	listener ports.BackendListener
}

func (s *stream) close() {
	_ = s.decoder.Close()
	_ = s.file.Close()
}

// Backend plays files through a beep Output.
//
// Lock order: b.mu, then the output lock. Streamer callbacks run under the
// output lock and never take b.mu synchronously.
type Backend struct {
	logger     *slog.Logger
	fs         afero.Fs
	out        Output
	sampleRate beep.SampleRate

	mu          sync.Mutex
	gen         uint64
	locator     string
	loading     bool
	cur         *stream
	pendingPlay bool
	pendingSeek *time.Duration
	released    bool
}

// New creates a primary backend reading files from fs and mixing into out.
func New(fs afero.Fs, out Output, sampleRate int, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{
		logger:     logger,
		fs:         fs,
		out:        out,
		sampleRate: beep.SampleRate(sampleRate),
	}
}

// NewFactory returns a factory that builds backends on the shared speaker.
func NewFactory(fs afero.Fs, cfg Config, logger *slog.Logger) ports.BackendFactory {
	return func() (ports.PlaybackBackend, error) {
		out, err := NewSpeakerOutput(beep.SampleRate(cfg.SampleRate), cfg.BufferFrames)
		if err != nil {
			return nil, domain.NewBackendError(domain.BackendPrimary, "construct", "", err)
		}
		return New(fs, out, cfg.SampleRate, logger), nil
	}
}

// Load implements ports.PlaybackBackend.
func (b *Backend) Load(locator string, listener ports.BackendListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return domain.ErrBackendReleased
	}
	if locator == "" {
		return domain.NewBackendError(domain.BackendPrimary, "load", locator, domain.ErrInvalidLocator)
	}

	b.detachLocked()
	b.gen++
	b.locator = locator
	b.loading = true
	b.pendingPlay = false
	b.pendingSeek = nil

	go b.open(b.gen, locator, listener)
	return nil
}

// open decodes the header and attaches the stream to the output, paused.
func (b *Backend) open(gen uint64, locator string, listener ports.BackendListener) {
	s, err := b.decode(locator, listener)
	if err != nil {
		if !b.finishLoading(gen) {
			return
		}
		b.logger.Debug("primary decode failed", slog.String("locator", locator), slog.Any("error", err))
		if listener != nil {
			listener.OnError(domain.NewBackendError(domain.BackendPrimary, "decode", locator, err))
		}
		return
	}

	var source beep.Streamer = s.decoder
	if s.format.SampleRate != b.sampleRate {
		source = beep.Resample(resampleQuality, s.format.SampleRate, b.sampleRate, s.decoder)
	}
	s.ctrl = &beep.Ctrl{
		Paused: true,
		Streamer: beep.Seq(source, beep.Callback(func() {
			// called under the output lock
			go b.ended(gen, s)
		})),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen || b.released {
		s.close()
		return
	}
	b.loading = false
	b.cur = s

	b.out.Lock()
	if b.pendingSeek != nil {
		_ = s.decoder.Seek(clampSamples(s, *b.pendingSeek))
		b.pendingSeek = nil
	}
	s.ctrl.Paused = !b.pendingPlay
	b.out.Unlock()
	b.out.Play(s.ctrl)

	b.logger.Debug("primary loaded",
		slog.String("locator", locator),
		slog.Int("sample_rate", int(s.format.SampleRate)),
		slog.Duration("duration", s.format.SampleRate.D(s.decoder.Len())))
}

func (b *Backend) decode(locator string, listener ports.BackendListener) (*stream, error) {
	f, err := b.fs.Open(locator)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	decoder, format, err := decode(locator, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &stream{file: f, decoder: decoder, format: format, listener: listener}, nil
}

// finishLoading clears the loading flag if gen is still current.
func (b *Backend) finishLoading(gen uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen || b.released {
		return false
	}
	b.loading = false
	return true
}

// ended runs after the stream drained; a decoder error turns completion into failure.
func (b *Backend) ended(gen uint64, s *stream) {
	b.mu.Lock()
	if gen != b.gen || b.cur != s {
		b.mu.Unlock()
		return
	}
	b.out.Lock()
	err := s.decoder.Err()
	s.ctrl.Paused = true
	b.out.Unlock()
	locator := b.locator
	b.mu.Unlock()

	if s.listener == nil {
		return
	}
	if err != nil {
		s.listener.OnError(domain.NewBackendError(domain.BackendPrimary, "decode", locator, err))
		return
	}
	s.listener.OnCompletion()
}

// Play implements ports.PlaybackBackend.
func (b *Backend) Play() error {
	return b.setPaused(false)
}

// Pause implements ports.PlaybackBackend.
func (b *Backend) Pause() error {
	return b.setPaused(true)
}

// Resume implements ports.PlaybackBackend.
func (b *Backend) Resume() error {
	return b.setPaused(false)
}

func (b *Backend) setPaused(paused bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.released:
		return domain.ErrBackendReleased
	case b.loading:
		b.pendingPlay = !paused
		return nil
	case b.cur == nil:
		return domain.ErrNoTrackLoaded
	}

	b.out.Lock()
	b.cur.ctrl.Paused = paused
	b.out.Unlock()
	return nil
}

// SeekTo implements ports.PlaybackBackend.
func (b *Backend) SeekTo(position time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.released:
		return domain.ErrBackendReleased
	case b.loading:
		b.pendingSeek = &position
		return nil
	case b.cur == nil:
		return domain.ErrNoTrackLoaded
	}

	b.out.Lock()
	err := b.cur.decoder.Seek(clampSamples(b.cur, position))
	b.out.Unlock()
	if err != nil {
		return domain.NewBackendError(domain.BackendPrimary, "seek", b.locator, err)
	}
	return nil
}

func clampSamples(s *stream, position time.Duration) int {
	n := s.format.SampleRate.N(position)
	return min(max(n, 0), s.decoder.Len())
}

// CurrentPosition implements ports.PlaybackBackend.
func (b *Backend) CurrentPosition() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cur == nil {
		return 0
	}
	b.out.Lock()
	defer b.out.Unlock()
	return b.cur.format.SampleRate.D(b.cur.decoder.Position())
}

// Duration implements ports.PlaybackBackend.
func (b *Backend) Duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cur == nil {
		return 0
	}
	return max(b.cur.format.SampleRate.D(b.cur.decoder.Len()), 0)
}

// Release implements ports.PlaybackBackend. It is idempotent.
func (b *Backend) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return nil
	}
	b.released = true
	b.gen++
	b.loading = false
	b.detachLocked()
	return nil
}

// detachLocked removes the current stream from the output and closes it.
func (b *Backend) detachLocked() {
	if b.cur == nil {
		return
	}
	b.out.Lock()
	// a nil streamer makes the output drop the ctrl on its next pull
	b.cur.ctrl.Streamer = nil
	b.cur.ctrl.Paused = true
	b.out.Unlock()

	b.cur.close()
	b.cur = nil
}

var _ ports.PlaybackBackend = (*Backend)(nil)
