// Package domain defines events for the event-driven architecture.
// Events are the outbound notifications of the playback core: simple values, never commands.
package domain

import (
	"time"
)

// Event is the base interface for all events in the system.
// All events must implement this interface to be published via the event bus.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the system.
const (
	// Playback events
	EventTrackStarted        EventType = "track.started"
	EventTrackCompleted      EventType = "track.completed"
	EventPlayingStateChanged EventType = "playback.playing_changed"
	EventProgress            EventType = "playback.progress"
	EventBackendSwitched     EventType = "playback.backend_switched"
	EventPlaybackFailed      EventType = "playback.failed"
	EventLyricIndexChanged   EventType = "lyrics.index_changed"
	EventLyricsLoaded        EventType = "lyrics.loaded"
	EventCatalogUpdated      EventType = "catalog.updated"
	EventScanProgress        EventType = "catalog.scan_progress"
	EventRepeatModeChanged   EventType = "playback.repeat_changed"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
// All concrete events should embed this struct.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// TrackStartedEvent is published when Play(track) starts a new track on the primary backend.
type TrackStartedEvent struct {
	baseEvent
	Track Track
}

// Type returns the event type.
func (e TrackStartedEvent) Type() EventType {
	return EventTrackStarted
}

// NewTrackStartedEvent creates a new TrackStartedEvent.
func NewTrackStartedEvent(track Track) TrackStartedEvent {
	return TrackStartedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
	}
}

// TrackCompletedEvent is published when a track reaches its natural end.
type TrackCompletedEvent struct {
	baseEvent
	Track   Track
	Backend BackendKind
}

// Type returns the event type.
func (e TrackCompletedEvent) Type() EventType {
	return EventTrackCompleted
}

// NewTrackCompletedEvent creates a new TrackCompletedEvent.
func NewTrackCompletedEvent(track Track, backend BackendKind) TrackCompletedEvent {
	return TrackCompletedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
		Backend:   backend,
	}
}

// PlayingStateChangedEvent is published whenever the playing flag flips.
type PlayingStateChangedEvent struct {
	baseEvent
	Playing bool
}

// Type returns the event type.
func (e PlayingStateChangedEvent) Type() EventType {
	return EventPlayingStateChanged
}

// NewPlayingStateChangedEvent creates a new PlayingStateChangedEvent.
func NewPlayingStateChangedEvent(playing bool) PlayingStateChangedEvent {
	return PlayingStateChangedEvent{
		baseEvent: newBaseEvent(),
		Playing:   playing,
	}
}

// ProgressEvent is published by the position clock on every sample.
type ProgressEvent struct {
	baseEvent
	Position time.Duration
	Duration time.Duration
}

// Type returns the event type.
func (e ProgressEvent) Type() EventType {
	return EventProgress
}

// NewProgressEvent creates a new ProgressEvent.
func NewProgressEvent(position, duration time.Duration) ProgressEvent {
	return ProgressEvent{
		baseEvent: newBaseEvent(),
		Position:  position,
		Duration:  duration,
	}
}

// BackendSwitchedEvent is published when playback fails over to another backend.
type BackendSwitchedEvent struct {
	baseEvent
	Track Track
	From  BackendKind
	To    BackendKind
	Cause error
}

// Type returns the event type.
func (e BackendSwitchedEvent) Type() EventType {
	return EventBackendSwitched
}

// NewBackendSwitchedEvent creates a new BackendSwitchedEvent.
func NewBackendSwitchedEvent(track Track, from, to BackendKind, cause error) BackendSwitchedEvent {
	return BackendSwitchedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
		From:      from,
		To:        to,
		Cause:     cause,
	}
}

// PlaybackFailedEvent is published when no backend can render the active track.
// Playback stays stopped until the next explicit Play.
type PlaybackFailedEvent struct {
	baseEvent
	Track Track
	Error error
}

// Type returns the event type.
func (e PlaybackFailedEvent) Type() EventType {
	return EventPlaybackFailed
}

// NewPlaybackFailedEvent creates a new PlaybackFailedEvent.
func NewPlaybackFailedEvent(track Track, err error) PlaybackFailedEvent {
	return PlaybackFailedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
		Error:     err,
	}
}

// LyricIndexChangedEvent is published when the active lyric line changes.
type LyricIndexChangedEvent struct {
	baseEvent
	Index int
	Line  LyricLine
}

// Type returns the event type.
func (e LyricIndexChangedEvent) Type() EventType {
	return EventLyricIndexChanged
}

// NewLyricIndexChangedEvent creates a new LyricIndexChangedEvent.
func NewLyricIndexChangedEvent(index int, line LyricLine) LyricIndexChangedEvent {
	return LyricIndexChangedEvent{
		baseEvent: newBaseEvent(),
		Index:     index,
		Line:      line,
	}
}

// LyricsLoadedEvent is published when the lyric timeline is replaced.
type LyricsLoadedEvent struct {
	baseEvent
	Timeline Timeline
}

// Type returns the event type.
func (e LyricsLoadedEvent) Type() EventType {
	return EventLyricsLoaded
}

// NewLyricsLoadedEvent creates a new LyricsLoadedEvent.
func NewLyricsLoadedEvent(timeline Timeline) LyricsLoadedEvent {
	return LyricsLoadedEvent{
		baseEvent: newBaseEvent(),
		Timeline:  timeline,
	}
}

// CatalogUpdatedEvent is published when the visible (filtered and sorted) track list changes.
type CatalogUpdatedEvent struct {
	baseEvent
	Tracks []Track
}

// Type returns the event type.
func (e CatalogUpdatedEvent) Type() EventType {
	return EventCatalogUpdated
}

// NewCatalogUpdatedEvent creates a new CatalogUpdatedEvent.
func NewCatalogUpdatedEvent(tracks []Track) CatalogUpdatedEvent {
	return CatalogUpdatedEvent{
		baseEvent: newBaseEvent(),
		Tracks:    tracks,
	}
}

// ScanProgressEvent is published periodically during a catalog scan.
type ScanProgressEvent struct {
	baseEvent
	Progress ScanProgress
}

// Type returns the event type.
func (e ScanProgressEvent) Type() EventType {
	return EventScanProgress
}

// NewScanProgressEvent creates a new ScanProgressEvent.
func NewScanProgressEvent(progress ScanProgress) ScanProgressEvent {
	return ScanProgressEvent{
		baseEvent: newBaseEvent(),
		Progress:  progress,
	}
}

// RepeatModeChangedEvent is published when the completion policy changes.
type RepeatModeChangedEvent struct {
	baseEvent
	Mode RepeatMode
}

// Type returns the event type.
func (e RepeatModeChangedEvent) Type() EventType {
	return EventRepeatModeChanged
}

// NewRepeatModeChangedEvent creates a new RepeatModeChangedEvent.
func NewRepeatModeChangedEvent(mode RepeatMode) RepeatModeChangedEvent {
	return RepeatModeChangedEvent{
		baseEvent: newBaseEvent(),
		Mode:      mode,
	}
}
