package service

import "errors"

var (
	// ErrInvalidInput marks a malformed request: bad dates, unknown
	// status, missing idempotency key.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIneligible is returned before any storage work when the pet
	// does not match the service's category or the provider is closed
	// over the requested interval.
	ErrIneligible = errors.New("booking request is not eligible")
)
