package catalog

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/tejashwikalptaru/lyra/internal/domain"
	"github.com/tejashwikalptaru/lyra/internal/ports"
)

// LyricFiles finds the .lrc file stored next to a track.
type LyricFiles struct {
	fs afero.Fs
}

// NewLyricFiles creates a lyric source reading from fsys.
func NewLyricFiles(fsys afero.Fs) *LyricFiles {
	return &LyricFiles{fs: fsys}
}

// LyricPath returns the sibling lyric path for an audio file.
func LyricPath(trackPath string) string {
	return strings.TrimSuffix(trackPath, filepath.Ext(trackPath)) + ".lrc"
}

// Lyrics implements ports.LyricSource.
func (s *LyricFiles) Lyrics(ctx context.Context, track domain.Track) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := track.Path
	if path == "" {
		path = track.Locator
	}
	if path == "" {
		return nil, domain.ErrLyricsNotFound
	}

	f, err := s.fs.Open(LyricPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrLyricsNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

var _ ports.LyricSource = (*LyricFiles)(nil)
