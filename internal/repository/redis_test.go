package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pawbook/internal/models"
)

func setupRedisCache(t *testing.T) (*RedisSlotCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSlotCache(client), mr
}

func sampleSlots(n int) []models.Slot {
	base := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	slots := make([]models.Slot, 0, n)
	for i := 0; i < n; i++ {
		start := base.Add(time.Duration(i) * 30 * time.Minute)
		slots = append(slots, models.Slot{
			Start:    start,
			Interval: models.TimeInterval{Start: start, End: start.Add(time.Hour)},
		})
	}
	return slots
}

func TestRedisSlotCacheRoundTrip(t *testing.T) {
	cache, _ := setupRedisCache(t)
	ctx := context.Background()

	key := "prov-1:svc-groom:2026-09-07:2026-09-08:30:"
	want := sampleSlots(3)

	_, ok, err := cache.GetSlots(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.SetSlots(ctx, key, want, time.Minute))

	got, ok, err := cache.GetSlots(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 3)
	assert.True(t, got[0].Start.Equal(want[0].Start))
	assert.True(t, got[2].Interval.End.Equal(want[2].Interval.End))
}

func TestRedisSlotCacheExpiry(t *testing.T) {
	cache, mr := setupRedisCache(t)
	ctx := context.Background()

	key := "prov-1:svc-groom:2026-09-07:2026-09-08:30:"
	require.NoError(t, cache.SetSlots(ctx, key, sampleSlots(1), time.Minute))

	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.GetSlots(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSlotCacheInvalidateProvider(t *testing.T) {
	cache, _ := setupRedisCache(t)
	ctx := context.Background()

	keyA := "prov-1:svc-groom:2026-09-07:2026-09-08:30:"
	keyB := "prov-1:svc-daycare:2026-09-07:2026-09-08:15:"
	keyOther := "prov-2:svc-walk:2026-09-07:2026-09-08:30:"
	for _, k := range []string{keyA, keyB, keyOther} {
		require.NoError(t, cache.SetSlots(ctx, k, sampleSlots(2), time.Minute))
	}

	require.NoError(t, cache.InvalidateProvider(ctx, "prov-1"))

	for _, k := range []string{keyA, keyB} {
		_, ok, err := cache.GetSlots(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	_, ok, err := cache.GetSlots(ctx, keyOther)
	require.NoError(t, err)
	assert.True(t, ok)
}
