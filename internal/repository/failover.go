package repository

import (
	"context"
	"sync/atomic"
	"time"

	"pawbook/internal/domain"
	"pawbook/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSlotCache serves from the primary cache (Redis) and falls back
// to the in-memory cache when the primary errors. The primary is retried
// once per recovery interval.
type FailoverSlotCache struct {
	primary   domain.SlotCache
	fallback  domain.SlotCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSlotCache(primary, fallback domain.SlotCache, logger *zerolog.Logger) *FailoverSlotCache {
	return &FailoverSlotCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (f *FailoverSlotCache) markDown(err error, op string) {
	f.logger.Error().Err(err).Str("op", op).Msg("primary slot cache failed, falling back to memory")
	f.isDown.Store(true)
	f.lastCheck.Store(time.Now().UnixNano())
}

func (f *FailoverSlotCache) shouldRetryPrimary() bool {
	return time.Since(time.Unix(0, f.lastCheck.Load())) > recoveryInterval
}

func (f *FailoverSlotCache) GetSlots(ctx context.Context, key string) ([]models.Slot, bool, error) {
	if !f.isDown.Load() {
		slots, ok, err := f.primary.GetSlots(ctx, key)
		if err == nil {
			return slots, ok, nil
		}
		f.markDown(err, "get")
	} else if f.shouldRetryPrimary() {
		slots, ok, err := f.primary.GetSlots(ctx, key)
		if err == nil {
			f.isDown.Store(false)
			return slots, ok, nil
		}
		f.lastCheck.Store(time.Now().UnixNano())
	}

	return f.fallback.GetSlots(ctx, key)
}

func (f *FailoverSlotCache) SetSlots(ctx context.Context, key string, slots []models.Slot, ttl time.Duration) error {
	if !f.isDown.Load() {
		err := f.primary.SetSlots(ctx, key, slots, ttl)
		if err == nil {
			return nil
		}
		f.markDown(err, "set")
	}

	return f.fallback.SetSlots(ctx, key, slots, ttl)
}

// InvalidateProvider drops both layers: a failed primary may come back
// with stale entries otherwise.
func (f *FailoverSlotCache) InvalidateProvider(ctx context.Context, providerID string) error {
	var primaryErr error
	if !f.isDown.Load() {
		primaryErr = f.primary.InvalidateProvider(ctx, providerID)
		if primaryErr != nil {
			f.markDown(primaryErr, "invalidate")
		}
	}

	if err := f.fallback.InvalidateProvider(ctx, providerID); err != nil {
		return err
	}
	return primaryErr
}
