package beepaudio

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/tejashwikalptaru/lyra/internal/domain"
)

// SupportedExtensions lists the containers the primary backend can decode.
var SupportedExtensions = []string{".mp3", ".flac", ".ogg", ".oga", ".wav"}

// decode picks a decoder from the file extension.
// The returned streamer owns f; closing it may or may not close f, so callers close both.
func decode(locator string, f afero.File) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(locator)) {
	case ".mp3":
		return mp3.Decode(f)
	case ".flac":
		return flac.Decode(f)
	case ".ogg", ".oga":
		return vorbis.Decode(f)
	case ".wav":
		return wav.Decode(f)
	default:
		return nil, beep.Format{}, domain.ErrUnsupportedFormat
	}
}

// IsSupported reports whether the primary backend has a decoder for locator.
func IsSupported(locator string) bool {
	return lo.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(locator)))
}

// Probe decodes the header of path and returns the stream length.
func Probe(fs afero.Fs, path string) (time.Duration, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	s, format, err := decode(path, f)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	return format.SampleRate.D(s.Len()), nil
}
