// Package mp3audio implements the fallback playback backend: a pure Go MP3
// decoder pumping PCM into a Sink. Unlike the primary backend it decodes the
// header inside Load, so every load failure is returned synchronously.
package mp3audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/hajimehoshi/go-mp3"
	"github.com/spf13/afero"

	"github.com/tejashwikalptaru/lyra/internal/domain"
	"github.com/tejashwikalptaru/lyra/internal/ports"
)

// bytesPerFrame is the size of one 16-bit stereo frame emitted by go-mp3.
const bytesPerFrame = 4

// Config holds output settings for the fallback backend.
type Config struct {
	FramesPerBuffer int
}

// DefaultConfig returns a 1024 frame buffer.
func DefaultConfig() Config {
	return Config{FramesPerBuffer: 1024}
}

// playback is one loaded resource and its pump goroutine.
type playback struct {
	locator  string
	file     afero.File
	decoder  *mp3.Decoder
	sink     Sink
	listener ports.BackendListener
	rate     int
	length   int64 // bytes, -1 if unknown

	mu      sync.Mutex
	cond    *sync.Cond
	offset  int64
	playing bool
	stopped bool
	done    chan struct{}
}

// Backend is the fallback ports.PlaybackBackend.
type Backend struct {
	logger     *slog.Logger
	fs         afero.Fs
	newSink    SinkFactory
	chunkBytes int
	onRelease  func()

	mu       sync.Mutex
	cur      *playback
	released bool
}

// New creates a fallback backend. onRelease, if set, runs once on the first Release.
func New(fs afero.Fs, newSink SinkFactory, framesPerBuffer int, logger *slog.Logger, onRelease func()) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultConfig().FramesPerBuffer
	}
	return &Backend{
		logger:     logger,
		fs:         fs,
		newSink:    newSink,
		chunkBytes: framesPerBuffer * bytesPerFrame,
		onRelease:  onRelease,
	}
}

// NewFactory returns a factory building PortAudio-backed fallback instances.
// Each instance holds a PortAudio reference until it is released.
func NewFactory(fs afero.Fs, cfg Config, logger *slog.Logger) ports.BackendFactory {
	return func() (ports.PlaybackBackend, error) {
		if err := portaudio.Initialize(); err != nil {
			return nil, domain.NewBackendError(domain.BackendFallback, "construct", "", err)
		}
		newSink := func() Sink { return NewPortAudioSink(cfg.FramesPerBuffer) }
		return New(fs, newSink, cfg.FramesPerBuffer, logger, func() { _ = portaudio.Terminate() }), nil
	}
}

// Load implements ports.PlaybackBackend. The decoder and sink are opened
// before returning; playback starts paused.
func (b *Backend) Load(locator string, listener ports.BackendListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return domain.ErrBackendReleased
	}
	if locator == "" {
		return domain.NewBackendError(domain.BackendFallback, "load", locator, domain.ErrInvalidLocator)
	}

	b.stopLocked()

	p, err := b.open(locator, listener)
	if err != nil {
		return domain.NewBackendError(domain.BackendFallback, "load", locator, err)
	}
	b.cur = p

	go b.pump(p)

	b.logger.Debug("fallback loaded",
		slog.String("locator", locator),
		slog.Int("sample_rate", p.rate),
		slog.Duration("duration", p.duration()))
	return nil
}

func (b *Backend) open(locator string, listener ports.BackendListener) (*playback, error) {
	f, err := b.fs.Open(locator)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrUnsupportedFormat, err)
	}

	sink := b.newSink()
	if err := sink.Open(decoder.SampleRate()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open sink: %w", err)
	}

	p := &playback{
		locator:  locator,
		file:     f,
		decoder:  decoder,
		sink:     sink,
		listener: listener,
		rate:     decoder.SampleRate(),
		length:   decoder.Length(),
		done:     make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	return p, nil
}

// pump moves decoded PCM into the sink while playing.
func (b *Backend) pump(p *playback) {
	defer close(p.done)

	buf := make([]byte, b.chunkBytes)
	for {
		p.mu.Lock()
		for !p.playing && !p.stopped {
			p.cond.Wait()
		}
		if p.stopped {
			p.mu.Unlock()
			return
		}
		n, readErr := p.decoder.Read(buf)
		p.offset += int64(n)
		p.mu.Unlock()

		if n > 0 {
			if err := p.sink.Write(buf[:n]); err != nil {
				p.report(fmt.Errorf("write sink: %w", err))
				return
			}
		}

		switch {
		case errors.Is(readErr, io.EOF):
			p.complete()
			return
		case readErr != nil:
			p.report(readErr)
			return
		}
	}
}

// report delivers a stream failure unless the playback was stopped meanwhile.
func (p *playback) report(err error) {
	p.mu.Lock()
	stopped := p.stopped
	p.playing = false
	p.mu.Unlock()

	if stopped || p.listener == nil {
		return
	}
	p.listener.OnError(domain.NewBackendError(domain.BackendFallback, "decode", p.locator, err))
}

func (p *playback) complete() {
	p.mu.Lock()
	stopped := p.stopped
	p.playing = false
	p.mu.Unlock()

	if stopped || p.listener == nil {
		return
	}
	p.listener.OnCompletion()
}

func (p *playback) setPlaying(playing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = playing
	p.cond.Broadcast()
}

// stop ends the pump and waits for it, then closes the resource.
func (p *playback) stop() {
	p.mu.Lock()
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()

	_ = p.sink.Close()
	<-p.done
	_ = p.file.Close()
}

func (p *playback) position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytesToDuration(p.offset, p.rate)
}

func (p *playback) duration() time.Duration {
	if p.length < 0 {
		return 0
	}
	return bytesToDuration(p.length, p.rate)
}

// Probe decodes the MP3 header of path and returns the stream length.
func Probe(fs afero.Fs, path string) (time.Duration, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	d, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrUnsupportedFormat, err)
	}
	return bytesToDuration(d.Length(), d.SampleRate()), nil
}

func bytesToDuration(n int64, rate int) time.Duration {
	if rate <= 0 || n <= 0 {
		return 0
	}
	frames := n / bytesPerFrame
	return time.Duration(frames) * time.Second / time.Duration(rate)
}

// Play implements ports.PlaybackBackend.
func (b *Backend) Play() error {
	return b.setPlaying(true)
}

// Pause implements ports.PlaybackBackend.
func (b *Backend) Pause() error {
	return b.setPlaying(false)
}

// Resume implements ports.PlaybackBackend.
func (b *Backend) Resume() error {
	return b.setPlaying(true)
}

func (b *Backend) setPlaying(playing bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return domain.ErrBackendReleased
	}
	if b.cur == nil {
		return domain.ErrNoTrackLoaded
	}
	b.cur.setPlaying(playing)
	return nil
}

// SeekTo implements ports.PlaybackBackend. Targets are clamped to the stream.
func (b *Backend) SeekTo(position time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return domain.ErrBackendReleased
	}
	if b.cur == nil {
		return domain.ErrNoTrackLoaded
	}

	p := b.cur
	frames := int64(max(position, 0)) * int64(p.rate) / int64(time.Second)
	offset := frames * bytesPerFrame
	if p.length > 0 {
		// the decoder cannot seek onto the end itself; stop one frame short
		offset = min(offset, p.length-bytesPerFrame)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	pos, err := p.decoder.Seek(offset, io.SeekStart)
	if err != nil {
		return domain.NewBackendError(domain.BackendFallback, "seek", p.locator, err)
	}
	p.offset = pos
	return nil
}

// CurrentPosition implements ports.PlaybackBackend.
func (b *Backend) CurrentPosition() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cur == nil {
		return 0
	}
	return b.cur.position()
}

// Duration implements ports.PlaybackBackend.
func (b *Backend) Duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cur == nil {
		return 0
	}
	return b.cur.duration()
}

// Release implements ports.PlaybackBackend. It is idempotent.
func (b *Backend) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return nil
	}
	b.released = true
	b.stopLocked()
	if b.onRelease != nil {
		b.onRelease()
	}
	return nil
}

func (b *Backend) stopLocked() {
	if b.cur == nil {
		return
	}
	b.cur.stop()
	b.cur = nil
}

var _ ports.PlaybackBackend = (*Backend)(nil)
