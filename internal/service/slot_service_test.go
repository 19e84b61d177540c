package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pawbook/internal/database"
	"pawbook/internal/models"
	"pawbook/internal/schedule"
)

func TestListSlotsOpenDay(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	slots, err := f.slots.ListSlots(ctx, mondayQuery("svc-groom"))
	require.NoError(t, err)

	// 09:00 through 16:00 inclusive at a 30 minute step.
	require.Len(t, slots, 15)
	assert.True(t, slots[0].Start.Equal(berlin(t, 2026, 9, 7, 9, 0)))
	assert.True(t, slots[14].Start.Equal(berlin(t, 2026, 9, 7, 16, 0)))
	for _, slot := range slots {
		assert.Equal(t, time.Hour, slot.Interval.Duration())
	}
}

func TestListSlotsClosedDay(t *testing.T) {
	f := setupFixture(t)

	// Sunday has no recurring rule.
	query := mondayQuery("svc-groom")
	query.From = time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC)
	query.To = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	slots, err := f.slots.ListSlots(context.Background(), query)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestListSlotsSizeOverride(t *testing.T) {
	f := setupFixture(t)

	query := mondayQuery("svc-groom")
	query.PetSize = "large"

	slots, err := f.slots.ListSlots(context.Background(), query)
	require.NoError(t, err)

	// 90 minute duration pushes the last start back to 15:30.
	require.NotEmpty(t, slots)
	last := slots[len(slots)-1]
	assert.True(t, last.Start.Equal(berlin(t, 2026, 9, 7, 15, 30)))
	assert.Equal(t, 90*time.Minute, last.Interval.Duration())
}

func TestListSlotsExcludesBookedInterval(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, _, err := f.bookings.CreateBooking(ctx, models.BookingRequest{
		ProviderID:     "prov-1",
		ServiceID:      "svc-groom",
		PetID:          "pet-1",
		PetCategory:    "dog",
		Start:          berlin(t, 2026, 9, 7, 10, 0),
		IdempotencyKey: "key-busy",
	})
	require.NoError(t, err)

	slots, err := f.slots.ListSlots(ctx, mondayQuery("svc-groom"))
	require.NoError(t, err)

	busy := models.TimeInterval{
		Start: berlin(t, 2026, 9, 7, 10, 0),
		End:   berlin(t, 2026, 9, 7, 11, 0),
	}
	for _, slot := range slots {
		assert.False(t, slot.Interval.Overlaps(busy), "slot %s overlaps booked interval", slot.Interval)
	}
	// 09:00 and 11:00 survive; 09:30, 10:00, 10:30 do not.
	assert.Len(t, slots, 12)
}

func TestListSlotsCapacityResource(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	// Two of three daycare spots taken all day still leaves slots listed.
	for i, key := range []string{"key-d1", "key-d2"} {
		_, _, err := f.bookings.CreateBooking(ctx, models.BookingRequest{
			ProviderID:     "prov-1",
			ServiceID:      "svc-daycare",
			PetID:          "pet-" + key,
			Start:          berlin(t, 2026, 9, 7, 9+i, 0),
			IdempotencyKey: key,
		})
		require.NoError(t, err)
	}

	slots, err := f.slots.ListSlots(ctx, mondayQuery("svc-daycare"))
	require.NoError(t, err)
	assert.NotEmpty(t, slots)
}

func TestListSlotsServedFromCache(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	first, err := f.slots.ListSlots(ctx, mondayQuery("svc-groom"))
	require.NoError(t, err)

	// A direct store write bypasses invalidation, so the cached listing
	// is returned unchanged until the TTL or an invalidation hits.
	start := berlin(t, 2026, 9, 7, 10, 0)
	b := &models.Booking{
		ID: "bk-direct", ProviderID: "prov-1", ServiceID: "svc-groom", PetID: "pet-x",
		ResourceQty: 1,
		Interval:    models.TimeInterval{Start: start, End: start.Add(time.Hour)},
		IdempotencyKey: "key-direct", PriceCents: 4500,
	}
	_, err = f.store.CommitBooking(ctx, b, 1)
	require.NoError(t, err)

	second, err := f.slots.ListSlots(ctx, mondayQuery("svc-groom"))
	require.NoError(t, err)
	assert.Len(t, second, len(first))

	require.NoError(t, f.cache.InvalidateProvider(ctx, "prov-1"))

	third, err := f.slots.ListSlots(ctx, mondayQuery("svc-groom"))
	require.NoError(t, err)
	assert.Len(t, third, len(first)-3)
}

func TestListSlotsInvalidRange(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	query := mondayQuery("svc-groom")
	query.From, query.To = query.To, query.From
	_, err := f.slots.ListSlots(ctx, query)
	assert.ErrorIs(t, err, ErrInvalidInput)

	query = mondayQuery("svc-groom")
	query.To = query.From.AddDate(0, 0, 90)
	_, err = f.slots.ListSlots(ctx, query)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListSlotsIneligibleCategory(t *testing.T) {
	f := setupFixture(t)

	query := mondayQuery("svc-groom")
	query.PetCategory = "cat"
	_, err := f.slots.ListSlots(context.Background(), query)
	assert.ErrorIs(t, err, ErrIneligible)
}

func TestListSlotsStepLargerThanDuration(t *testing.T) {
	f := setupFixture(t)

	query := mondayQuery("svc-groom")
	query.StepMinutes = 120
	_, err := f.slots.ListSlots(context.Background(), query)
	assert.ErrorIs(t, err, schedule.ErrInvalidConfiguration)
}

func TestListSlotsUnknownProvider(t *testing.T) {
	f := setupFixture(t)

	query := mondayQuery("svc-groom")
	query.ProviderID = "prov-ghost"
	_, err := f.slots.ListSlots(context.Background(), query)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
