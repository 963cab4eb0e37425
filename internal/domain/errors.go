// Package domain defines domain-specific errors.
// These errors represent business logic failures and are independent of infrastructure.
package domain

import (
	"errors"
	"fmt"
)

// Common errors that services can return.
var (
	// ErrReleased is returned by any command issued after the controller was released.
	ErrReleased = errors.New("playback controller released")

	// ErrNoTrackLoaded is returned when an operation requires an active track.
	ErrNoTrackLoaded = errors.New("no track loaded")

	// ErrInvalidLocator is returned when a backend is asked to load an empty locator.
	ErrInvalidLocator = errors.New("invalid resource locator")

	// ErrUnsupportedFormat is returned when a backend cannot decode a container.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrFileNotFound is returned when a file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrLyricsNotFound is returned when a track has no lyric file.
	ErrLyricsNotFound = errors.New("lyrics not found")

	// ErrTrackNotFound is returned when a requested track is not in the catalog.
	ErrTrackNotFound = errors.New("track not found")

	// ErrCatalogEmpty is returned when navigation is attempted on an empty catalog.
	ErrCatalogEmpty = errors.New("catalog is empty")

	// ErrEndOfCatalog is returned by Next on the last visible track.
	ErrEndOfCatalog = errors.New("end of catalog")

	// ErrStartOfCatalog is returned by Previous on the first visible track.
	ErrStartOfCatalog = errors.New("start of catalog")

	// ErrScanCancelled is returned when a catalog scan is canceled.
	ErrScanCancelled = errors.New("scan cancelled")

	// ErrBackendReleased is returned by a backend after Release.
	ErrBackendReleased = errors.New("backend released")
)

// BackendError represents a failure reported by a decoder backend.
// This wraps low-level decoder errors with the backend and locator involved.
type BackendError struct {
	Backend BackendKind // Backend that failed
	Op      string      // Operation that failed (e.g., "load", "decode", "play")
	Locator string      // Resource being played
	Err     error       // Underlying error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Locator != "" {
		return fmt.Sprintf("%s backend %s failed for '%s': %v", e.Backend, e.Op, e.Locator, e.Err)
	}
	return fmt.Sprintf("%s backend %s failed: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError creates a new BackendError.
func NewBackendError(backend BackendKind, op, locator string, err error) *BackendError {
	return &BackendError{
		Backend: backend,
		Op:      op,
		Locator: locator,
		Err:     err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   any    // Value that failed validation
	Message string // Error message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ServiceError represents an error from a service layer operation.
type ServiceError struct {
	Service string // Service name (e.g., "PlaybackCoordinator")
	Op      string // Operation that failed
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service %s.%s failed: %s: %v", e.Service, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("service %s.%s failed: %s", e.Service, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(service, op, message string, err error) *ServiceError {
	return &ServiceError{
		Service: service,
		Op:      op,
		Message: message,
		Err:     err,
	}
}
