// Package domain defines the error kinds of the ingest feature.
package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by ingest runs. Upper layers match them with errors.Is.
var (
	// ErrInvalidArgument indicates trigger parameters out of range; the run does not start.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrExternalUnavailable indicates a per-symbol upstream call failed after all retries.
	ErrExternalUnavailable = errors.New("external source unavailable")

	// ErrExternalSnapshotFailed indicates the quarter snapshot call failed.
	ErrExternalSnapshotFailed = errors.New("external snapshot failed")

	// ErrStoreConflict indicates a unique-constraint violation inside a chunk.
	ErrStoreConflict = errors.New("store conflict")

	// ErrStoreFailure indicates a transactional failure of the store.
	ErrStoreFailure = errors.New("store failure")

	// ErrCancelled indicates the caller cancelled the run.
	ErrCancelled = errors.New("cancelled")

	// ErrRunConflict indicates a run with the same lock key is already in flight.
	ErrRunConflict = errors.New("run already in progress")

	// ErrRunNotFound indicates no run with the given id exists.
	ErrRunNotFound = errors.New("run not found")
)

// NotAvailableError is returned when every attempt to fetch one symbol failed.
type NotAvailableError struct {
	Symbol string
	Err    error
}

func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("symbol %s not available: %v", e.Symbol, e.Err)
}

// Unwrap exposes both the kind and the last upstream error.
func (e *NotAvailableError) Unwrap() []error {
	return []error{ErrExternalUnavailable, e.Err}
}

// KindName returns the error kind name used in run reports.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return "Cancelled"
	case errors.Is(err, ErrInvalidArgument):
		return "InvalidArgument"
	case errors.Is(err, ErrExternalUnavailable):
		return "ExternalUnavailable"
	case errors.Is(err, ErrExternalSnapshotFailed):
		return "ExternalSnapshotFailed"
	case errors.Is(err, ErrStoreConflict):
		return "StoreConflict"
	case errors.Is(err, ErrStoreFailure):
		return "StoreFailure"
	case errors.Is(err, ErrRunConflict):
		return "Conflict"
	}
	return "Unknown"
}
