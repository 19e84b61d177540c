package database

import "errors"

var (
	// ErrSlotConflict is returned when a commit loses the race for its
	// interval or would exceed resource capacity. Expected under normal
	// concurrent load; safe for the caller to re-list and retry.
	ErrSlotConflict = errors.New("slot is no longer available")

	// ErrNotFound marks an unknown provider, service, resource or booking.
	ErrNotFound = errors.New("not found")

	// ErrConcurrentModification is returned when an optimistic version
	// check fails on a status transition.
	ErrConcurrentModification = errors.New("booking was modified concurrently")

	// ErrInvalidTransition is returned for an illegal lifecycle change,
	// including any attempt to resurrect a cancelled booking.
	ErrInvalidTransition = errors.New("invalid booking status transition")
)
