package schedule

import "pawbook/internal/models"

// ConflictFilter drops slot candidates that collide with committed
// occupancy. It is a read-only snapshot check: the listing it feeds is
// advisory, and the commit coordinator re-runs the same predicate against
// live state inside its transaction.
type ConflictFilter struct {
	index       *IntervalIndex
	capacity    int
	requiredQty int
}

// NewConflictFilter builds a filter over an index. capacity <= 1 is the
// exclusive case; above that, a candidate passes only while peak
// occupancy plus the required quantity stays within capacity.
func NewConflictFilter(index *IntervalIndex, capacity, requiredQty int) *ConflictFilter {
	if capacity < 1 {
		capacity = 1
	}
	if requiredQty < 1 {
		requiredQty = 1
	}
	return &ConflictFilter{index: index, capacity: capacity, requiredQty: requiredQty}
}

// Allows reports whether the candidate interval can be committed against
// the filter's snapshot.
func (f *ConflictFilter) Allows(iv models.TimeInterval) bool {
	if f.capacity == 1 {
		return !f.index.Overlaps(iv)
	}
	return f.index.MaxOccupancy(iv)+f.requiredQty <= f.capacity
}

// Filter drains the iterator and keeps only committable candidates.
func (f *ConflictFilter) Filter(it *SlotIterator) []models.Slot {
	out := make([]models.Slot, 0)
	for {
		slot, ok := it.Next()
		if !ok {
			return out
		}
		if f.Allows(slot.Interval) {
			out = append(out, slot)
		}
	}
}
