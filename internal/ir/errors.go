package ir

import "errors"

// Errors shared by every persistence backend.
var (
	// ErrAlreadyInitialized is returned when seeding a backend twice.
	ErrAlreadyInitialized = errors.New("library already initialized")

	// ErrNotInitialized is returned when reading a backend that was never seeded.
	ErrNotInitialized = errors.New("library not initialized")

	// ErrNotFound is returned when a journaled record does not exist.
	ErrNotFound = errors.New("not found")
)
