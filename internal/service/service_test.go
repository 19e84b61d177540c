package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pawbook/internal/config"
	"pawbook/internal/database"
	"pawbook/internal/domain"
	"pawbook/internal/events"
	"pawbook/internal/models"
	"pawbook/internal/repository"
)

type fakeExporter struct {
	tasks []string
}

func (f *fakeExporter) EnqueueTask(ctx context.Context, taskType string, booking *models.Booking) error {
	f.tasks = append(f.tasks, taskType+":"+booking.ID)
	return nil
}

func (f *fakeExporter) EnqueueExportRange(ctx context.Context, startDate, endDate time.Time) error {
	return nil
}

type fixture struct {
	store    *database.DB
	cache    domain.SlotCache
	bus      *events.EventBus
	exporter *fakeExporter
	slots    *SlotService
	bookings *BookingSvc
}

// Catalog under test: a Berlin groomer open 09:00-17:00 every weekday,
// a dog-only grooming service and a daycare backed by a capacity-3
// resource.
func setupFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()

	store, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rules := make([]models.AvailabilityRule, 0, 5)
	for wd := time.Monday; wd <= time.Friday; wd++ {
		rules = append(rules, models.AvailabilityRule{
			ProviderID: "prov-1",
			Kind:       models.RuleKindRecurring,
			Timezone:   "Europe/Berlin",
			Weekday:    wd,
			Start:      models.LocalClock(9 * 60),
			End:        models.LocalClock(17 * 60),
		})
	}

	err = store.SeedCatalog(context.Background(),
		[]models.Provider{
			{ID: "prov-1", Name: "Happy Paws Grooming", Timezone: "Europe/Berlin", IsActive: true},
		},
		[]models.Service{
			{
				ID: "svc-groom", ProviderID: "prov-1", Name: "Full Groom",
				DurationMinutes: 60, PriceCents: 4500,
				PetCategories: []string{"dog"},
				SizeOverrides: map[string]models.SizeOverride{
					"large": {DurationMinutes: 90, PriceCents: 6000},
				},
			},
			{
				ID: "svc-daycare", ProviderID: "prov-1", Name: "Daycare",
				DurationMinutes: 240, PriceCents: 3000,
				ResourceType: "daycare_spot",
			},
		},
		[]models.Resource{
			{ProviderID: "prov-1", Type: "daycare_spot", Capacity: 3},
		},
		rules,
	)
	require.NoError(t, err)

	cache := repository.NewMemorySlotCache()
	bus := events.NewEventBus()
	exporter := &fakeExporter{}
	engine := config.EngineConfig{StepMinutes: 30, MaxRangeDays: 31, SlotCacheTTLSeconds: 60}

	return &fixture{
		store:    store,
		cache:    cache,
		bus:      bus,
		exporter: exporter,
		slots:    NewSlotService(store, cache, engine, &logger),
		bookings: NewBookingService(store, cache, bus, exporter, &logger),
	}
}

// berlin returns a wall-clock instant at the fixture provider.
func berlin(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return time.Date(year, month, day, hour, min, 0, 0, loc)
}

// mondayQuery covers Monday 2026-09-07 as a one-day listing range.
func mondayQuery(serviceID string) models.SlotQuery {
	return models.SlotQuery{
		ProviderID: "prov-1",
		ServiceID:  serviceID,
		From:       time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC),
	}
}
