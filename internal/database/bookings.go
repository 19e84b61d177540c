package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pawbook/internal/models"
	"pawbook/internal/schedule"
)

const bookingColumns = `id, provider_id, service_id, pet_id, resource_type, resource_qty,
                 start_at, end_at, status, idempotency_key, price_cents, notes,
                 created_at, updated_at, version`

// CommitBooking is the atomic check-and-commit. Under the per
// (provider, resource) commit lock it replays idempotent retries, then
// inside one transaction re-checks the candidate interval against the
// live committed set and inserts the booking as confirmed. Of any set of
// concurrent conflicting attempts exactly one commits; the rest get
// ErrSlotConflict.
//
// The caller validates eligibility beforehand; capacity is the resource
// capacity (1 for the provider's own exclusive time).
func (db *DB) CommitBooking(ctx context.Context, booking *models.Booking, capacity int) (replayed bool, err error) {
	lock := db.commitLock(booking.ProviderID, booking.ResourceType)
	lock.Lock()
	defer lock.Unlock()

	if existing, err := db.GetBookingByIdempotencyKey(ctx, booking.IdempotencyKey); err == nil {
		*booking = *existing
		return true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return false, fmt.Errorf("begin commit transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	occupying, err := occupyingInTx(ctx, tx, booking.ProviderID, booking.ResourceType, booking.Interval)
	if err != nil {
		return false, err
	}

	index := schedule.BuildIndex(occupying)
	filter := schedule.NewConflictFilter(index, capacity, booking.ResourceQty)
	if !filter.Allows(booking.Interval) {
		return false, ErrSlotConflict
	}

	now := time.Now().UTC()
	booking.Status = models.StatusConfirmed
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bookings (`+bookingColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ID, booking.ProviderID, booking.ServiceID, booking.PetID,
		booking.ResourceType, booking.ResourceQty,
		booking.Interval.Start.UTC(), booking.Interval.End.UTC(),
		booking.Status, booking.IdempotencyKey, booking.PriceCents, booking.Notes,
		booking.CreatedAt, booking.UpdatedAt, booking.Version,
	)
	if err != nil {
		// Same idempotency key committed under a different (provider,
		// resource) lock. Release the connection before re-reading.
		if strings.Contains(err.Error(), "UNIQUE constraint failed: bookings.idempotency_key") {
			_ = tx.Rollback()
			if existing, rerr := db.GetBookingByIdempotencyKey(ctx, booking.IdempotencyKey); rerr == nil {
				*booking = *existing
				return true, nil
			}
		}
		return false, fmt.Errorf("insert booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit booking: %w", err)
	}
	return false, nil
}

func occupyingInTx(ctx context.Context, tx *sql.Tx, providerID, resourceType string, window models.TimeInterval) ([]models.Booking, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE provider_id = ? AND resource_type = ? AND status IN (?, ?)
           AND start_at < ? AND end_at > ?`,
		providerID, resourceType, models.StatusConfirmed, models.StatusCompleted,
		window.End.UTC(), window.Start.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("load occupying bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// GetOccupying returns the committed bookings overlapping the window for
// one (provider, resource) key. This is the advisory read the listing
// path builds its index from; staleness is acceptable there.
func (db *DB) GetOccupying(ctx context.Context, providerID, resourceType string, window models.TimeInterval) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE provider_id = ? AND resource_type = ? AND status IN (?, ?)
           AND start_at < ? AND end_at > ?`,
		providerID, resourceType, models.StatusConfirmed, models.StatusCompleted,
		window.End.UTC(), window.Start.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("load occupying bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (db *DB) GetBookingByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE idempotency_key = ?`, key)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("idempotency key: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("get booking by idempotency key: %w", err)
	}
	return b, nil
}

// UpdateBookingStatusWithVersion applies a lifecycle transition with an
// optimistic version check. Illegal transitions (anything not out of
// confirmed) fail with ErrInvalidTransition; a stale version fails with
// ErrConcurrentModification.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string) error {
	current, err := db.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if !models.CanTransition(current.Status, status) {
		return fmt.Errorf("%s -> %s: %w", current.Status, status, ErrInvalidTransition)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		status, time.Now().UTC(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// GetBookingsByDateRange returns all bookings whose interval starts
// within [start, end), ordered by start. Used by the export worker.
func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE start_at >= ? AND start_at < ? ORDER BY start_at ASC`,
		start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("get bookings by date range: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// GetDailyBookings groups a range's bookings by their UTC calendar date.
func (db *DB) GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]models.Booking, error) {
	bookings, err := db.GetBookingsByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	daily := make(map[string][]models.Booking)
	for _, b := range bookings {
		key := b.Interval.Start.UTC().Format("2006-01-02")
		daily[key] = append(daily[key], b)
	}
	return daily, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var start, end time.Time
	err := row.Scan(
		&b.ID, &b.ProviderID, &b.ServiceID, &b.PetID, &b.ResourceType, &b.ResourceQty,
		&start, &end, &b.Status, &b.IdempotencyKey, &b.PriceCents, &b.Notes,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.Interval = models.TimeInterval{Start: start.UTC(), End: end.UTC()}
	return &b, nil
}

func scanBookings(rows *sql.Rows) ([]models.Booking, error) {
	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
