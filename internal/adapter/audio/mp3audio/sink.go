package mp3audio

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// ErrSinkClosed is returned by Write after Close.
var ErrSinkClosed = errors.New("sink closed")

// Sink consumes interleaved 16-bit little-endian stereo PCM.
// Close may be called while a Write is in flight and must make it return.
type Sink interface {
	Open(sampleRate int) error
	Write(pcm []byte) error
	Close() error
}

// SinkFactory creates one sink per loaded resource.
type SinkFactory func() Sink

// PortAudioSink writes PCM to the default PortAudio output device.
type PortAudioSink struct {
	frames int

	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
	closed bool
}

// NewPortAudioSink creates a sink writing framesPerBuffer frames per device write.
// portaudio.Initialize must have been called.
func NewPortAudioSink(framesPerBuffer int) *PortAudioSink {
	return &PortAudioSink{frames: framesPerBuffer}
}

// Open opens and starts a stereo output stream at sampleRate.
func (s *PortAudioSink) Open(sampleRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = make([]int16, s.frames*2)
	stream, err := portaudio.OpenDefaultStream(0, 2, float64(sampleRate), s.frames, s.buf)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return err
	}
	s.stream = stream
	return nil
}

// Write blocks until pcm has been handed to the device.
func (s *PortAudioSink) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.stream == nil {
		return ErrSinkClosed
	}

	for len(pcm) >= 2 {
		n := min(len(pcm)/2, len(s.buf))
		for i := 0; i < n; i++ {
			s.buf[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		}
		clear(s.buf[n:])

		// underflow happens after a pause and is harmless
		if err := s.stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return err
		}
		pcm = pcm[n*2:]
	}
	return nil
}

// Close stops and closes the stream. It is idempotent.
func (s *PortAudioSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.stream == nil {
		return nil
	}
	err := errors.Join(s.stream.Stop(), s.stream.Close())
	s.stream = nil
	return err
}

// MemorySink collects PCM in memory. When throttled, each Write waits for a
// permit from Allow, which lets tests step playback deterministically.
type MemorySink struct {
	throttled bool
	permits   chan struct{}
	closing   chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	sampleRate int
	data       []byte
	writes     int
	failWrite  error
}

// NewMemorySink creates an in-memory sink.
func NewMemorySink(throttled bool) *MemorySink {
	return &MemorySink{
		throttled: throttled,
		permits:   make(chan struct{}, 1024),
		closing:   make(chan struct{}),
	}
}

// Open records the sample rate.
func (s *MemorySink) Open(sampleRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleRate = sampleRate
	return nil
}

// Write appends pcm, waiting for a permit when throttled.
func (s *MemorySink) Write(pcm []byte) error {
	if s.throttled {
		select {
		case <-s.permits:
		case <-s.closing:
			return ErrSinkClosed
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return s.failWrite
	}
	s.data = append(s.data, pcm...)
	s.writes++
	return nil
}

// Close unblocks pending writes. It is idempotent.
func (s *MemorySink) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	return nil
}

// Allow lets n more writes through a throttled sink.
func (s *MemorySink) Allow(n int) {
	for i := 0; i < n; i++ {
		s.permits <- struct{}{}
	}
}

// FailWrites makes subsequent writes return err.
func (s *MemorySink) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrite = err
}

// Bytes returns the number of PCM bytes written so far.
func (s *MemorySink) Bytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Writes returns the number of successful writes.
func (s *MemorySink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// SampleRate returns the rate passed to Open.
func (s *MemorySink) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}
