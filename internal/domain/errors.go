package domain

import "errors"

// Domain errors
var (
	// Zone errors
	ErrZoneNotFound = errors.New("zone not found")

	// Ingest errors. Stale and duplicate events are expected under
	// out-of-order delivery; the aggregator drops them silently and
	// ErrStaleUpdate never escapes past it.
	ErrStaleUpdate = errors.New("event older than last accepted update")
	ErrValidation  = errors.New("invalid event")

	// Violation errors
	ErrViolationNotFound = errors.New("violation not found")
	ErrViolationTerminal = errors.New("violation already resolved or cancelled")
)
