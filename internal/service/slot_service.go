package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pawbook/internal/config"
	"pawbook/internal/domain"
	"pawbook/internal/metrics"
	"pawbook/internal/models"
	"pawbook/internal/schedule"
)

// SlotService lists the bookable starts for one service over a date
// range. Listings are advisory: a slot shown here can still lose the
// commit race, and the cache trades a little staleness for not
// recomputing the resolution on every request.
type SlotService struct {
	store  domain.Store
	cache  domain.SlotCache
	engine config.EngineConfig
	logger *zerolog.Logger
}

func NewSlotService(store domain.Store, cache domain.SlotCache, engine config.EngineConfig, logger *zerolog.Logger) *SlotService {
	return &SlotService{
		store:  store,
		cache:  cache,
		engine: engine,
		logger: logger,
	}
}

func (s *SlotService) ListSlots(ctx context.Context, query models.SlotQuery) ([]models.Slot, error) {
	provider, err := s.store.GetProvider(query.ProviderID)
	if err != nil {
		return nil, err
	}
	svc, err := s.store.GetService(provider.ID, query.ServiceID)
	if err != nil {
		return nil, err
	}

	if query.PetCategory != "" && !svc.AcceptsCategory(query.PetCategory) {
		return nil, fmt.Errorf("%w: service %s does not accept category %s", ErrIneligible, svc.ID, query.PetCategory)
	}

	if !query.From.Before(query.To) {
		return nil, fmt.Errorf("%w: range start must precede end", ErrInvalidInput)
	}
	if query.To.Sub(query.From) > time.Duration(s.engine.MaxRangeDays)*24*time.Hour {
		return nil, fmt.Errorf("%w: range exceeds %d days", ErrInvalidInput, s.engine.MaxRangeDays)
	}

	stepMinutes := query.StepMinutes
	if stepMinutes <= 0 {
		stepMinutes = s.engine.StepMinutes
	}
	duration := time.Duration(svc.EffectiveDuration(query.PetSize)) * time.Minute
	step := time.Duration(stepMinutes) * time.Minute

	key := cacheKey(provider.ID, svc.ID, query, stepMinutes)
	if cached, ok, err := s.cache.GetSlots(ctx, key); err != nil {
		s.logger.Warn().Err(err).Msg("slot cache read failed")
	} else if ok {
		metrics.IncSlotQuery(provider.ID, "hit")
		return cached, nil
	}

	rules, err := s.store.GetRules(provider.ID)
	if err != nil {
		return nil, err
	}
	byDate, err := schedule.ResolveRange(rules, query.From, query.To)
	if err != nil {
		return nil, err
	}
	open := schedule.Flatten(byDate)

	slots := []models.Slot{}
	if len(open) > 0 {
		filter, err := s.conflictFilter(ctx, provider.ID, svc, models.TimeInterval{
			Start: open[0].Start,
			End:   open[len(open)-1].End,
		})
		if err != nil {
			return nil, err
		}

		it, err := schedule.NewSlotIterator(open, duration, step)
		if err != nil {
			return nil, err
		}
		slots = filter.Filter(it)
	}

	metrics.IncSlotQuery(provider.ID, "miss")
	ttl := time.Duration(s.engine.SlotCacheTTLSeconds) * time.Second
	if err := s.cache.SetSlots(ctx, key, slots, ttl); err != nil {
		s.logger.Warn().Err(err).Msg("slot cache write failed")
	}

	return slots, nil
}

// conflictFilter builds the occupancy filter for one service over a
// window, resolving the capacity of the key it books against.
func (s *SlotService) conflictFilter(ctx context.Context, providerID string, svc models.Service, window models.TimeInterval) (*schedule.ConflictFilter, error) {
	capacity := 1
	requiredQty := 1
	if svc.ResourceType != "" {
		resource, err := s.store.GetResource(providerID, svc.ResourceType)
		if err != nil {
			return nil, err
		}
		capacity = resource.Capacity
		requiredQty = svc.RequiredResourceQty()
	}

	occupying, err := s.store.GetOccupying(ctx, providerID, svc.ResourceType, window)
	if err != nil {
		return nil, err
	}

	index := schedule.BuildIndex(occupying)
	return schedule.NewConflictFilter(index, capacity, requiredQty), nil
}

func cacheKey(providerID, serviceID string, query models.SlotQuery, stepMinutes int) string {
	return fmt.Sprintf("%s:%s:%d:%d:%d:%s:%s",
		providerID, serviceID,
		query.From.Unix(), query.To.Unix(),
		stepMinutes, query.PetCategory, query.PetSize)
}
