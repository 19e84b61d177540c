package models

import "time"

type Booking struct {
	ID             string       `json:"id"`
	ProviderID     string       `json:"provider_id"`
	ServiceID      string       `json:"service_id"`
	PetID          string       `json:"pet_id"`
	ResourceType   string       `json:"resource_type,omitempty"`
	ResourceQty    int          `json:"resource_qty,omitempty"`
	Interval       TimeInterval `json:"interval"`
	Status         string       `json:"status"` // confirmed, cancelled, completed, no_show
	IdempotencyKey string       `json:"idempotency_key"`
	PriceCents     int64        `json:"price_cents"`
	Notes          string       `json:"notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	Version        int64        `json:"version"`
}

// Occupies reports whether the booking counts against the interval index.
// Cancelled and no-show bookings free their interval.
func (b Booking) Occupies() bool {
	return b.Status == StatusConfirmed || b.Status == StatusCompleted
}
