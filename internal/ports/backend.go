// Package ports define interfaces for dependency inversion.
// These interfaces allow the core playback logic to remain independent of decoder libraries.
package ports

import (
	"time"
)

// PlaybackBackend is the capability contract every decoder backend implements.
// The playback controller drives exactly one backend at a time through this interface,
// so callers never special-case which decoder is rendering audio.
//
// Implementations must be safe for use from the controller goroutine while their
// decoder goroutines deliver listener callbacks concurrently.
type PlaybackBackend interface {
	// Load prepares the resource identified by locator for playback.
	// Any resource loaded earlier on the same instance is discarded.
	//
	// listener receives the asynchronous outcomes (failure, completion) of this load only;
	// callbacks belonging to a superseded load must never reach a newer listener.
	//
	// Backends that decode asynchronously report failures through listener.OnError and
	// return nil here. Backends that decode synchronously return the error directly.
	Load(locator string, listener BackendListener) error

	// Play starts playback of the loaded resource. If the resource is still being
	// prepared, playback starts as soon as it is ready.
	Play() error

	// Pause pauses playback, keeping the position.
	Pause() error

	// Resume continues playback from the paused position.
	Resume() error

	// SeekTo repositions playback. Out-of-range targets are clamped by the backend.
	SeekTo(position time.Duration) error

	// CurrentPosition returns the playback offset, or 0 if nothing is loaded.
	CurrentPosition() time.Duration

	// Duration returns the resource length, or 0 if unknown. Never negative.
	Duration() time.Duration

	// Release tears down the backend. It is idempotent and safe on a never-loaded instance.
	Release() error
}

// BackendListener receives asynchronous outcomes of a single Load.
// Implementations must not block for long: backends may call them from decoder goroutines.
type BackendListener interface {
	// OnError reports that decoding cannot proceed for the loaded resource.
	OnError(err error)

	// OnCompletion reports that the loaded resource played to its natural end.
	OnCompletion()
}

// BackendFactory constructs a backend instance.
// Construction failures are reported synchronously.
type BackendFactory func() (PlaybackBackend, error)

// ListenerFuncs adapts plain functions to the BackendListener interface.
// Nil fields are ignored.
type ListenerFuncs struct {
	Error      func(err error)
	Completion func()
}

// OnError implements BackendListener.
func (l ListenerFuncs) OnError(err error) {
	if l.Error != nil {
		l.Error(err)
	}
}

// OnCompletion implements BackendListener.
func (l ListenerFuncs) OnCompletion() {
	if l.Completion != nil {
		l.Completion()
	}
}
