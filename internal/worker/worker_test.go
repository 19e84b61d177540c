package worker

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pawbook/internal/database"
	"pawbook/internal/models"
)

type fakeWriter struct {
	calls    int
	failures int
}

func (f *fakeWriter) WriteSchedule(ctx context.Context, start, end time.Time) (string, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return "", errors.New("writer unavailable")
	}
	return "/tmp/schedule.xlsx", nil
}

func setupWorker(t *testing.T, writer ScheduleWriter) (*ExportWorker, *database.DB, *miniredis.Miniredis) {
	t.Helper()
	logger := zerolog.Nop()

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	w := NewExportWorker(db, writer, client, RetryPolicy{MaxRetries: 3}, &logger)
	return w, db, mr
}

func sampleBooking() *models.Booking {
	start := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	return &models.Booking{
		ID:             uuid.NewString(),
		ProviderID:     "prov-1",
		ServiceID:      "svc-groom",
		PetID:          "pet-1",
		ResourceQty:    1,
		Interval:       models.TimeInterval{Start: start, End: start.Add(time.Hour)},
		Status:         models.StatusConfirmed,
		IdempotencyKey: uuid.NewString(),
		PriceCents:     4500,
	}
}

func TestEnqueueTaskPersistsAndPushes(t *testing.T) {
	writer := &fakeWriter{}
	w, db, mr := setupWorker(t, writer)
	ctx := context.Background()

	require.NoError(t, w.EnqueueTask(ctx, TaskUpsertBooking, sampleBooking()))

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskUpsertBooking, tasks[0].TaskType)

	queued, err := mr.List("exports:queue")
	require.NoError(t, err)
	assert.Len(t, queued, 1)
}

func TestProcessTaskCompletes(t *testing.T) {
	writer := &fakeWriter{}
	w, db, _ := setupWorker(t, writer)
	ctx := context.Background()

	require.NoError(t, w.EnqueueTask(ctx, TaskUpsertBooking, sampleBooking()))
	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	w.processTask(ctx, &tasks[0])

	assert.Equal(t, 1, writer.calls)

	var status string
	err = db.QueryRowContext(ctx, `SELECT status FROM sync_queue WHERE id = ?`, tasks[0].ID).Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, "completed", status)
}

func TestProcessTaskRetriesThenFails(t *testing.T) {
	writer := &fakeWriter{failures: 10}
	w, db, mr := setupWorker(t, writer)
	ctx := context.Background()

	require.NoError(t, w.EnqueueTask(ctx, TaskUpsertBooking, sampleBooking()))
	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	task := tasks[0]

	// First failure schedules a retry with backoff.
	w.processTask(ctx, &task)

	var status string
	var retryCount int
	err = db.QueryRowContext(ctx, `SELECT status, retry_count FROM sync_queue WHERE id = ?`, task.ID).Scan(&status, &retryCount)
	require.NoError(t, err)
	assert.Equal(t, "retry", status)
	assert.Equal(t, 1, retryCount)

	// Exhaust the remaining attempts.
	task.RetryCount = 1
	w.processTask(ctx, &task)
	task.RetryCount = 2
	w.processTask(ctx, &task)

	err = db.QueryRowContext(ctx, `SELECT status FROM sync_queue WHERE id = ?`, task.ID).Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, "failed", status)

	dead, err := mr.List("exports:deadletter")
	require.NoError(t, err)
	assert.Len(t, dead, 1)
}

func TestEnqueueExportRangeValidation(t *testing.T) {
	w, _, _ := setupWorker(t, &fakeWriter{})
	ctx := context.Background()

	start := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	assert.Error(t, w.EnqueueExportRange(ctx, start, start))
	assert.NoError(t, w.EnqueueExportRange(ctx, start, start.AddDate(0, 0, 7)))
}

func TestUnknownTaskTypeFails(t *testing.T) {
	w, db, _ := setupWorker(t, &fakeWriter{})
	ctx := context.Background()

	task := models.SyncTask{TaskType: "mystery", Payload: `{}`, Status: "pending"}
	require.NoError(t, db.CreateSyncTask(ctx, &task))

	// Unknown types walk the retry path like any other failure.
	w.processTask(ctx, &task)

	var status string
	err := db.QueryRowContext(ctx, `SELECT status FROM sync_queue WHERE id = ?`, task.ID).Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, "retry", status)
}

func TestRetryPolicyBackoff(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, MaxDelay: 10 * time.Second, BackoffFactor: 2}

	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
	assert.Equal(t, 4*time.Second, policy.NextDelay(3))
	assert.Equal(t, 10*time.Second, policy.NextDelay(10))
	assert.Equal(t, time.Second, policy.NextDelay(-5))
}

func TestXLSXExporterWritesWorkbook(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SeedCatalog(context.Background(),
		[]models.Provider{{ID: "prov-1", Name: "Happy Paws Grooming", Timezone: "UTC", IsActive: true}},
		[]models.Service{{ID: "svc-groom", ProviderID: "prov-1", Name: "Full Groom", DurationMinutes: 60, PriceCents: 4500}},
		nil, nil))

	b := sampleBooking()
	_, err = db.CommitBooking(context.Background(), b, 1)
	require.NoError(t, err)

	exporter := NewXLSXExporter(db, t.TempDir())
	path, err := exporter.WriteSchedule(context.Background(),
		time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
