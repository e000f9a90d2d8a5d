package state

import "errors"

// Sentinel errors for state handling.
var (
	// ErrNotFound is returned by a Store when no snapshot exists for a locale.
	ErrNotFound = errors.New("state snapshot not found")

	// ErrCorruptState is returned when a persisted snapshot cannot be decoded
	// or fails its integrity check.
	ErrCorruptState = errors.New("corrupt state snapshot")

	// ErrLocaleMismatch is returned when combining state of different locales.
	ErrLocaleMismatch = errors.New("state locale mismatch")
)
