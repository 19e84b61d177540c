package domain

import (
	"context"
	"time"

	"pawbook/internal/models"
)

type Store interface {
	CommitBooking(ctx context.Context, booking *models.Booking, capacity int) (bool, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetBookingByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error)
	GetOccupying(ctx context.Context, providerID, resourceType string, window models.TimeInterval) ([]models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id string, version int64, status string) error
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]models.Booking, error)
	GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]models.Booking, error)
	GetProvider(id string) (models.Provider, error)
	GetService(providerID, serviceID string) (models.Service, error)
	GetResource(providerID, resourceType string) (models.Resource, error)
	GetRules(providerID string) ([]models.AvailabilityRule, error)
	ListServices() []models.Service
}

// SlotCache holds computed slot listings keyed per provider and query.
// Implementations may lose entries at any time; callers always fall back
// to recomputing.
type SlotCache interface {
	GetSlots(ctx context.Context, key string) ([]models.Slot, bool, error)
	SetSlots(ctx context.Context, key string, slots []models.Slot, ttl time.Duration) error
	InvalidateProvider(ctx context.Context, providerID string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type ExportEnqueuer interface {
	EnqueueTask(ctx context.Context, taskType string, booking *models.Booking) error
	EnqueueExportRange(ctx context.Context, startDate, endDate time.Time) error
}

type SlotService interface {
	ListSlots(ctx context.Context, query models.SlotQuery) ([]models.Slot, error)
}

type BookingService interface {
	CreateBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, bool, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	CancelBooking(ctx context.Context, id string, version int64) error
	CompleteBooking(ctx context.Context, id string, version int64) error
	MarkNoShow(ctx context.Context, id string, version int64) error
}
