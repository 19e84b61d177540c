package models

import "time"

// SlotQuery asks for the bookable slots of one service over a date
// range. From/To are dates in the provider's timezone; Step overrides
// the default candidate spacing when positive.
type SlotQuery struct {
	ProviderID  string
	ServiceID   string
	From        time.Time
	To          time.Time
	StepMinutes int
	PetCategory string
	PetSize     string
}

// BookingRequest carries everything needed to commit one booking. The
// idempotency key is chosen by the caller and scopes retry replay.
type BookingRequest struct {
	ProviderID     string
	ServiceID      string
	PetID          string
	PetCategory    string
	PetSize        string
	Start          time.Time
	IdempotencyKey string
	Notes          string
}
