package schedule

import "errors"

var (
	// ErrInvalidRule marks a malformed availability rule: unknown
	// timezone, inverted or zero-length interval, bad exception date.
	ErrInvalidRule = errors.New("invalid availability rule")

	// ErrInvalidConfiguration marks a bad generator setup (zero or
	// negative step, step larger than duration).
	ErrInvalidConfiguration = errors.New("invalid slot configuration")
)
