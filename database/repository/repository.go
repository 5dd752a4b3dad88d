package repository

import "errors"

var (
	// ErrNotFound is returned when no document matches the lookup.
	ErrNotFound = errors.New("document not found")

	// ErrVersionConflict is returned when a save was based on a stale version
	// or would rewrite already persisted history.
	ErrVersionConflict = errors.New("document version conflict")
)
