package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySlotCacheRoundTrip(t *testing.T) {
	cache := NewMemorySlotCache()
	ctx := context.Background()

	key := "prov-1:svc-groom:2026-09-07:2026-09-08:30:"
	want := sampleSlots(2)

	_, ok, err := cache.GetSlots(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.SetSlots(ctx, key, want, time.Minute))

	got, ok, err := cache.GetSlots(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 2)
}

func TestMemorySlotCacheTTL(t *testing.T) {
	cache := NewMemorySlotCache()
	ctx := context.Background()

	key := "prov-1:svc-groom:2026-09-07:2026-09-08:30:"
	require.NoError(t, cache.SetSlots(ctx, key, sampleSlots(1), -time.Second))

	_, ok, err := cache.GetSlots(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySlotCacheInvalidateProvider(t *testing.T) {
	cache := NewMemorySlotCache()
	ctx := context.Background()

	require.NoError(t, cache.SetSlots(ctx, "prov-1:a", sampleSlots(1), time.Minute))
	require.NoError(t, cache.SetSlots(ctx, "prov-2:b", sampleSlots(1), time.Minute))

	require.NoError(t, cache.InvalidateProvider(ctx, "prov-1"))

	_, ok, _ := cache.GetSlots(ctx, "prov-1:a")
	assert.False(t, ok)
	_, ok, _ = cache.GetSlots(ctx, "prov-2:b")
	assert.True(t, ok)
}
