package models

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
)

const (
	// DefaultStepMinutes is the slot-generation granularity when the
	// config leaves it unset. Independent of service duration on purpose:
	// stepping by duration skips valid later start times.
	DefaultStepMinutes = 15

	// DefaultMaxRangeDays caps a single slot-listing date range.
	DefaultMaxRangeDays = 31

	// DefaultSlotCacheTTL is how long a cached slot listing stays fresh,
	// in seconds. Listings are advisory; commits re-check live state.
	DefaultSlotCacheTTL = 60

	// WorkerQueueSize is the export worker's in-memory queue size.
	WorkerQueueSize = 128
)

// CanTransition reports whether a booking status change is legal.
// Confirmed bookings may be cancelled, completed, or marked no-show;
// every other status is terminal.
func CanTransition(from, to string) bool {
	if from != StatusConfirmed {
		return false
	}
	switch to {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}
