package catalog

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/spf13/afero"

	"github.com/tejashwikalptaru/lyra/internal/adapter/audio/beepaudio"
	"github.com/tejashwikalptaru/lyra/internal/adapter/audio/mp3audio"
	"github.com/tejashwikalptaru/lyra/internal/domain"
)

// extractMetadata builds a track from the file's tags, falling back to the
// file name for the title. The ID is left empty for the caller to assign.
func extractMetadata(fs afero.Fs, path string) (domain.Track, error) {
	if path == "" {
		return domain.Track{}, domain.ErrInvalidLocator
	}

	f, err := fs.Open(path)
	if err != nil {
		return domain.Track{}, domain.ErrFileNotFound
	}
	defer f.Close()

	base := filepath.Base(path)
	track := domain.Track{
		Title:   strings.TrimSuffix(base, filepath.Ext(base)),
		Locator: path,
		Path:    path,
	}

	// Untagged files are still playable; keep the defaults.
	if m, err := tag.ReadFrom(f); err == nil {
		if title := strings.TrimSpace(m.Title()); title != "" {
			track.Title = title
		}
		track.Artist = strings.TrimSpace(m.Artist())
		if track.Artist == "" {
			track.Artist = strings.TrimSpace(m.AlbumArtist())
		}
		track.Album = strings.TrimSpace(m.Album())
	}

	track.Duration = probeDuration(fs, path)
	return track, nil
}

// probeDuration returns 0 when the length cannot be determined.
func probeDuration(fs afero.Fs, path string) time.Duration {
	probe := beepaudio.Probe
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		probe = mp3audio.Probe
	}
	d, err := probe(fs, path)
	if err != nil {
		return 0
	}
	return d
}
