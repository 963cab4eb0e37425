// Package domain contains core business models and logic with no external dependencies.
// This package defines the fundamental entities of the Lyra player.
package domain

import (
	"time"
)

// Track represents a single playable item supplied by the catalog.
// Tracks are values: the playback core copies them and never mutates them.
type Track struct {
	// ID is a unique identifier for the track, stable within a session (UUID)
	ID string

	// Title is the song title (from metadata or filename)
	Title string

	// Artist is the performing artist name
	Artist string

	// Album is the album name
	Album string

	// Duration is the total length of the track as reported by the catalog
	Duration time.Duration

	// Locator is the opaque resource identifier handed to playback backends
	Locator string

	// Path is the filesystem path used for grouping and art lookup
	Path string
}

// LyricLine is a single timestamped lyric entry.
type LyricLine struct {
	Time time.Duration
	Text string
}

// Timeline is a sequence of lyric lines sorted ascending by Time.
// Lines sharing a timestamp keep the order in which they were parsed.
type Timeline []LyricLine

// Len returns the number of lines in the timeline.
func (t Timeline) Len() int {
	return len(t)
}

// Line returns the line at index i, or an empty line when i is out of range.
func (t Timeline) Line(i int) LyricLine {
	if i < 0 || i >= len(t) {
		return LyricLine{}
	}
	return t[i]
}

// BackendKind identifies which decoder backend is serving playback.
type BackendKind int

const (
	// BackendPrimary is the preferred decoder backend
	BackendPrimary BackendKind = iota

	// BackendFallback is used after the primary backend fails to decode
	BackendFallback
)

// String returns a human-readable representation of the backend kind.
func (k BackendKind) String() string {
	switch k {
	case BackendPrimary:
		return "primary"
	case BackendFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// PlaybackStatus represents the controller state machine position.
type PlaybackStatus int

const (
	// StatusIdle indicates nothing has been played yet
	StatusIdle PlaybackStatus = iota

	// StatusPlaying indicates playback is active
	StatusPlaying

	// StatusPaused indicates playback is paused
	StatusPaused

	// StatusStopped indicates the track completed or playback failed terminally
	StatusStopped

	// StatusReleased indicates the controller was torn down
	StatusReleased
)

// String returns a human-readable representation of the playback status.
func (s PlaybackStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	case StatusReleased:
		return "released"
	default:
		return "unknown"
	}
}

// PlaybackState is a snapshot of the playback controller.
type PlaybackState struct {
	// ActiveTrack is the track given to the last Play call (nil if none)
	ActiveTrack *Track

	// Playing reports whether audio is currently being rendered
	Playing bool

	// Status is the state machine position
	Status PlaybackStatus

	// Position is the current playback offset
	Position time.Duration

	// Duration is the length reported by the active backend (never negative)
	Duration time.Duration

	// Backend is the backend currently in use
	Backend BackendKind
}

// SortKey selects the ordering of the visible catalog.
type SortKey int

const (
	SortTitle SortKey = iota
	SortArtist
	SortDuration
)

// String returns the configuration name of the sort key.
func (k SortKey) String() string {
	switch k {
	case SortTitle:
		return "title"
	case SortArtist:
		return "artist"
	case SortDuration:
		return "duration"
	default:
		return "unknown"
	}
}

// ParseSortKey converts a configuration value into a SortKey.
func ParseSortKey(s string) (SortKey, error) {
	switch s {
	case "title", "":
		return SortTitle, nil
	case "artist":
		return SortArtist, nil
	case "duration":
		return SortDuration, nil
	default:
		return SortTitle, NewValidationError("sort", s, "must be one of title, artist, duration")
	}
}

// SearchMode selects how search text is matched against tracks.
type SearchMode int

const (
	// SearchSubstring matches case-insensitive substrings of title or artist
	SearchSubstring SearchMode = iota

	// SearchFuzzy matches fold-insensitive subsequences, ranked by edit distance
	SearchFuzzy
)

// String returns the configuration name of the search mode.
func (m SearchMode) String() string {
	switch m {
	case SearchSubstring:
		return "substring"
	case SearchFuzzy:
		return "fuzzy"
	default:
		return "unknown"
	}
}

// ParseSearchMode converts a configuration value into a SearchMode.
func ParseSearchMode(s string) (SearchMode, error) {
	switch s {
	case "substring", "":
		return SearchSubstring, nil
	case "fuzzy":
		return SearchFuzzy, nil
	default:
		return SearchSubstring, NewValidationError("search", s, "must be one of substring, fuzzy")
	}
}

// RepeatMode is the policy applied when a track completes.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatOne
	RepeatAll
)

// String returns the configuration name of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "unknown"
	}
}

// ParseRepeatMode converts a configuration value into a RepeatMode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch s {
	case "off", "":
		return RepeatOff, nil
	case "one":
		return RepeatOne, nil
	case "all":
		return RepeatAll, nil
	default:
		return RepeatOff, NewValidationError("repeat", s, "must be one of off, one, all")
	}
}

// ScanProgress represents the progress of a catalog scan.
type ScanProgress struct {
	// CurrentFile is the file currently being scanned
	CurrentFile string

	// FilesScanned is the number of files processed so far
	FilesScanned int

	// TotalFiles is the total number of files to scan
	TotalFiles int

	// TracksFound is the number of valid tracks found
	TracksFound int
}

// Percentage returns the completion percentage (0-100), or -1 if total is unknown.
func (p ScanProgress) Percentage() float64 {
	if p.TotalFiles <= 0 {
		return -1
	}
	return float64(p.FilesScanned) / float64(p.TotalFiles) * 100.0
}
