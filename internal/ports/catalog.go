// Package ports define collaborator interfaces for the track catalog and lyric files.
package ports

import (
	"context"
	"io"

	"github.com/tejashwikalptaru/lyra/internal/domain"
)

// Catalog supplies the ordered collection of playable tracks.
// It is pull-based: the coordinator fetches it once per explicit refresh.
//
// Thread-safety: Implementations must be thread-safe.
type Catalog interface {
	// Tracks returns every known track. The slice is owned by the caller.
	//
	// Returns an error if the catalog cannot be enumerated.
	Tracks(ctx context.Context) ([]domain.Track, error)
}

// LyricSource resolves the lyric file belonging to a track.
type LyricSource interface {
	// Lyrics opens the raw lyric payload for track.
	// Returns domain.ErrLyricsNotFound if the track has no lyrics.
	Lyrics(ctx context.Context, track domain.Track) (io.ReadCloser, error)
}
