package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pawbook/internal/database"
	"pawbook/internal/domain"
	"pawbook/internal/events"
	"pawbook/internal/metrics"
	"pawbook/internal/models"
	"pawbook/internal/schedule"
)

// BookingSvc drives the booking lifecycle: eligibility checks, the
// atomic commit, and the cancel/complete/no-show transitions, with the
// event and export side effects each of those carries.
type BookingSvc struct {
	store    domain.Store
	cache    domain.SlotCache
	eventBus domain.EventPublisher
	exporter domain.ExportEnqueuer
	logger   *zerolog.Logger
}

func NewBookingService(store domain.Store, cache domain.SlotCache, eventBus domain.EventPublisher, exporter domain.ExportEnqueuer, logger *zerolog.Logger) *BookingSvc {
	return &BookingSvc{
		store:    store,
		cache:    cache,
		eventBus: eventBus,
		exporter: exporter,
		logger:   logger,
	}
}

// CreateBooking validates and commits one booking. The cheap checks run
// before any storage work; only a request that passes them reaches the
// commit path. The returned bool reports an idempotent replay, which
// carries no side effects.
func (s *BookingSvc) CreateBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, bool, error) {
	if err := validateRequest(req); err != nil {
		return nil, false, err
	}

	provider, err := s.store.GetProvider(req.ProviderID)
	if err != nil {
		return nil, false, err
	}
	svc, err := s.store.GetService(provider.ID, req.ServiceID)
	if err != nil {
		return nil, false, err
	}

	if !svc.AcceptsCategory(req.PetCategory) {
		return nil, false, fmt.Errorf("%w: service %s does not take %s pets", ErrIneligible, svc.ID, req.PetCategory)
	}

	duration := time.Duration(svc.EffectiveDuration(req.PetSize)) * time.Minute
	interval := models.TimeInterval{Start: req.Start, End: req.Start.Add(duration)}

	within, err := s.withinOpenHours(provider.ID, interval)
	if err != nil {
		return nil, false, err
	}
	if !within {
		return nil, false, fmt.Errorf("%w: interval %s is outside working hours", ErrIneligible, interval)
	}

	capacity := 1
	resourceQty := 1
	if svc.ResourceType != "" {
		resource, err := s.store.GetResource(provider.ID, svc.ResourceType)
		if err != nil {
			return nil, false, err
		}
		capacity = resource.Capacity
		resourceQty = svc.RequiredResourceQty()
	}

	booking := &models.Booking{
		ID:             uuid.NewString(),
		ProviderID:     provider.ID,
		ServiceID:      svc.ID,
		PetID:          req.PetID,
		ResourceType:   svc.ResourceType,
		ResourceQty:    resourceQty,
		Interval:       interval,
		IdempotencyKey: req.IdempotencyKey,
		PriceCents:     svc.EffectivePrice(req.PetSize),
		Notes:          req.Notes,
	}

	replayed, err := s.store.CommitBooking(ctx, booking, capacity)
	if err != nil {
		if errors.Is(err, database.ErrSlotConflict) {
			metrics.IncCommit("conflict")
		}
		return nil, false, err
	}
	if replayed {
		metrics.IncCommit("replayed")
		return booking, true, nil
	}

	metrics.IncCommit("confirmed")
	s.publishEvent(events.EventBookingConfirmed, booking, false)
	s.enqueueExport(ctx, "upsert_booking", booking)
	s.invalidateSlots(ctx, provider.ID)

	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("provider_id", booking.ProviderID).
		Str("service_id", booking.ServiceID).
		Time("start", booking.Interval.Start).
		Msg("booking confirmed")

	return booking, false, nil
}

func (s *BookingSvc) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

func (s *BookingSvc) CancelBooking(ctx context.Context, id string, version int64) error {
	return s.transition(ctx, id, version, models.StatusCancelled, events.EventBookingCancelled)
}

func (s *BookingSvc) CompleteBooking(ctx context.Context, id string, version int64) error {
	return s.transition(ctx, id, version, models.StatusCompleted, events.EventBookingCompleted)
}

func (s *BookingSvc) MarkNoShow(ctx context.Context, id string, version int64) error {
	return s.transition(ctx, id, version, models.StatusNoShow, events.EventBookingNoShow)
}

func (s *BookingSvc) transition(ctx context.Context, id string, version int64, status, eventType string) error {
	if err := s.store.UpdateBookingStatusWithVersion(ctx, id, version, status); err != nil {
		return err
	}
	metrics.IncTransition(status)

	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return err
	}

	s.publishEvent(eventType, booking, false)
	s.enqueueExport(ctx, "update_status", booking)

	// Cancelled and no-show free the interval; completed keeps it.
	if !booking.Occupies() {
		s.invalidateSlots(ctx, booking.ProviderID)
	}
	return nil
}

// withinOpenHours checks that the candidate lies fully inside the
// provider's resolved availability, including cross-midnight spans.
func (s *BookingSvc) withinOpenHours(providerID string, interval models.TimeInterval) (bool, error) {
	rules, err := s.store.GetRules(providerID)
	if err != nil {
		return false, err
	}

	// A cross-midnight rule resolves onto neighboring dates, so widen
	// the resolution window by a day each way.
	byDate, err := schedule.ResolveRange(rules,
		interval.Start.AddDate(0, 0, -1),
		interval.End.AddDate(0, 0, 2))
	if err != nil {
		return false, err
	}

	for _, iv := range schedule.Flatten(byDate) {
		if iv.Contains(interval) {
			return true, nil
		}
	}
	return false, nil
}

func (s *BookingSvc) publishEvent(eventType string, booking *models.Booking, replayed bool) {
	err := s.eventBus.PublishJSON(eventType, events.BookingEventPayload{
		BookingID:  booking.ID,
		ProviderID: booking.ProviderID,
		ServiceID:  booking.ServiceID,
		PetID:      booking.PetID,
		Status:     booking.Status,
		Start:      booking.Interval.Start,
		End:        booking.Interval.End,
		PriceCents: booking.PriceCents,
		Replayed:   replayed,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("event publish failed")
	}
}

func (s *BookingSvc) enqueueExport(ctx context.Context, taskType string, booking *models.Booking) {
	if s.exporter == nil {
		return
	}
	if err := s.exporter.EnqueueTask(ctx, taskType, booking); err != nil {
		s.logger.Warn().Err(err).Str("booking_id", booking.ID).Msg("export enqueue failed")
	}
}

func (s *BookingSvc) invalidateSlots(ctx context.Context, providerID string) {
	if err := s.cache.InvalidateProvider(ctx, providerID); err != nil {
		s.logger.Warn().Err(err).Str("provider_id", providerID).Msg("slot cache invalidation failed")
	}
}

func validateRequest(req models.BookingRequest) error {
	switch {
	case req.ProviderID == "":
		return fmt.Errorf("%w: provider is required", ErrInvalidInput)
	case req.ServiceID == "":
		return fmt.Errorf("%w: service is required", ErrInvalidInput)
	case req.PetID == "":
		return fmt.Errorf("%w: pet is required", ErrInvalidInput)
	case req.IdempotencyKey == "":
		return fmt.Errorf("%w: idempotency key is required", ErrInvalidInput)
	case req.Start.IsZero():
		return fmt.Errorf("%w: start is required", ErrInvalidInput)
	}
	return nil
}
