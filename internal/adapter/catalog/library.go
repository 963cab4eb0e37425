// Package catalog provides the filesystem-backed track catalog and lyric source.
package catalog

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/tejashwikalptaru/lyra/internal/adapter/audio/beepaudio"
	"github.com/tejashwikalptaru/lyra/internal/domain"
	"github.com/tejashwikalptaru/lyra/internal/ports"
)

// Library scans a directory tree for audio files.
// All operations are thread-safe via sync.RWMutex.
type Library struct {
	// Dependencies (injected)
	fs     afero.Fs
	root   string
	bus    ports.EventBus
	logger *slog.Logger

	// State
	ids        map[string]string // path -> track ID, stable for the session
	scanning   bool
	cancelScan context.CancelFunc

	mu sync.RWMutex
}

// NewLibrary creates a catalog rooted at root on fs. bus may be nil.
func NewLibrary(fsys afero.Fs, root string, bus ports.EventBus, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Library{
		fs:     fsys,
		root:   root,
		bus:    bus,
		logger: logger,
		ids:    make(map[string]string),
	}
}

// Tracks implements ports.Catalog by rescanning the root.
func (l *Library) Tracks(ctx context.Context) ([]domain.Track, error) {
	return l.Scan(ctx)
}

// Scan walks the root recursively and extracts metadata from every supported file.
// Files that cannot be read are skipped. Progress is published per file.
func (l *Library) Scan(ctx context.Context) ([]domain.Track, error) {
	l.mu.Lock()
	if l.scanning {
		l.mu.Unlock()
		return nil, domain.NewServiceError("Library", "Scan", "scan already in progress", nil)
	}
	ctx, cancel := context.WithCancel(ctx)
	l.scanning = true
	l.cancelScan = cancel
	l.mu.Unlock()

	defer func() {
		cancel()
		l.mu.Lock()
		l.scanning = false
		l.cancelScan = nil
		l.mu.Unlock()
	}()

	files, err := l.collectAudioFiles(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, domain.ErrScanCancelled
		}
		return nil, err
	}

	tracks := make([]domain.Track, 0, len(files))
	for i, path := range files {
		if ctx.Err() != nil {
			return tracks, domain.ErrScanCancelled
		}

		track, err := extractMetadata(l.fs, path)
		if err != nil {
			l.logger.Debug("skipping unreadable file", slog.String("path", path), slog.Any("error", err))
			continue
		}
		track.ID = l.idFor(path)
		tracks = append(tracks, track)

		if l.bus != nil {
			l.bus.Publish(domain.NewScanProgressEvent(domain.ScanProgress{
				CurrentFile:  path,
				FilesScanned: i + 1,
				TotalFiles:   len(files),
				TracksFound:  len(tracks),
			}))
		}
	}

	l.logger.Info("library scanned", slog.String("root", l.root), slog.Int("tracks", len(tracks)))
	return tracks, nil
}

// CancelScan cancels the running scan.
func (l *Library) CancelScan() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.scanning {
		return domain.NewServiceError("Library", "CancelScan", "no scan in progress", nil)
	}
	l.cancelScan()
	return nil
}

// IsScanning returns true if a scan is currently in progress.
func (l *Library) IsScanning() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.scanning
}

func (l *Library) idFor(path string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, ok := l.ids[path]
	if !ok {
		id = uuid.NewString()
		l.ids[path] = id
	}
	return id
}

// collectAudioFiles returns supported files under the root in lexical order.
func (l *Library) collectAudioFiles(ctx context.Context) ([]string, error) {
	files := make([]string, 0)

	err := afero.Walk(l.fs, l.root, func(path string, info fs.FileInfo, err error) error {
		if ctx.Err() != nil {
			return context.Canceled
		}
		if err != nil {
			// Skip files/folders we can't access, but not a missing root
			if path == l.root {
				return err
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if beepaudio.IsSupported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, context.Canceled
		}
		return nil, domain.NewServiceError("Library", "Scan", "walk "+l.root, err)
	}

	sort.Strings(files)
	return files, nil
}

var _ ports.Catalog = (*Library)(nil)
