package testutil

import (
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// MP3 fixture parameters. Each frame is MPEG-1 Layer III, 128 kbit/s,
// 44.1 kHz, mono, and decodes to 1152 samples of silence.
const (
	MP3SampleRate      = 44100
	MP3SamplesPerFrame = 1152
	mp3FrameSize       = 417 // 144 * 128000 / 44100, no padding
)

var mp3FrameHeader = [4]byte{0xFF, 0xFB, 0x90, 0xC4}

// SilentMP3 returns a valid MP3 stream of n silent frames.
// All side information and main data is zero, so every granule is empty.
func SilentMP3(n int) []byte {
	out := make([]byte, 0, n*mp3FrameSize)
	for i := 0; i < n; i++ {
		frame := make([]byte, mp3FrameSize)
		copy(frame, mp3FrameHeader[:])
		out = append(out, frame...)
	}
	return out
}

// WriteWav writes a 16-bit stereo WAV file of the given length to fs.
func WriteWav(t *testing.T, fs afero.Fs, path string, length time.Duration, sampleRate int) {
	t.Helper()

	f, err := fs.Create(path)
	require.NoError(t, err)

	format := beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: 2, Precision: 2}
	total := format.SampleRate.N(length)
	written := 0
	tone := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if written >= total {
			return 0, false
		}
		n := min(len(samples), total-written)
		for i := range samples[:n] {
			samples[i] = [2]float64{0.25, -0.25}
		}
		written += n
		return n, true
	})

	require.NoError(t, wav.Encode(f, tone, format))
	require.NoError(t, f.Close())
}

// ID3v23 prefixes data with an ID3v2.3 tag holding title, artist and album.
func ID3v23(title, artist, album string, data []byte) []byte {
	var frames []byte
	for _, fr := range []struct{ id, text string }{
		{"TIT2", title}, {"TPE1", artist}, {"TALB", album},
	} {
		if fr.text == "" {
			continue
		}
		body := append([]byte{0x00}, fr.text...) // ISO-8859-1
		size := len(body)
		frames = append(frames, fr.id...)
		frames = append(frames, byte(size>>24), byte(size>>16), byte(size>>8), byte(size))
		frames = append(frames, 0, 0)
		frames = append(frames, body...)
	}

	n := len(frames)
	header := []byte{'I', 'D', '3', 3, 0, 0,
		byte(n >> 21 & 0x7f), byte(n >> 14 & 0x7f), byte(n >> 7 & 0x7f), byte(n & 0x7f)}

	out := append(header, frames...)
	return append(out, data...)
}
