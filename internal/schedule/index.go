package schedule

import (
	"sort"
	"time"

	"pawbook/internal/models"
)

type indexEntry struct {
	id       string
	interval models.TimeInterval
	qty      int
}

// IntervalIndex holds the occupied intervals of one (provider, resource)
// pair and answers overlap and occupancy queries without rescanning the
// whole booking history. Entries are kept sorted by start; a query binary
// searches to the first entry that could still reach the probe (bounded
// by the longest span seen) and scans only until entries start past the
// probe's end.
//
// The index is not safe for concurrent mutation; the commit coordinator
// owns writes inside its exclusive section.
type IntervalIndex struct {
	entries []indexEntry
	maxSpan time.Duration
}

func NewIntervalIndex() *IntervalIndex {
	return &IntervalIndex{}
}

func (x *IntervalIndex) Len() int { return len(x.entries) }

// Insert adds an occupied interval. qty is the number of capacity units
// the booking consumes; exclusive bookings insert with qty 1.
func (x *IntervalIndex) Insert(id string, iv models.TimeInterval, qty int) {
	if qty <= 0 {
		qty = 1
	}
	e := indexEntry{id: id, interval: iv, qty: qty}

	i := sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].interval.Start.After(iv.Start)
	})
	x.entries = append(x.entries, indexEntry{})
	copy(x.entries[i+1:], x.entries[i:])
	x.entries[i] = e

	if span := iv.Duration(); span > x.maxSpan {
		x.maxSpan = span
	}
}

// Remove deletes the entry with the given id; reports whether it existed.
// maxSpan is left as-is: it only bounds the scan window, a stale upper
// bound stays correct.
func (x *IntervalIndex) Remove(id string) bool {
	for i, e := range x.entries {
		if e.id == id {
			x.entries = append(x.entries[:i], x.entries[i+1:]...)
			return true
		}
	}
	return false
}

// scanRange returns the half-open entry range [lo, hi) that can possibly
// overlap iv. Entries are sorted by start, so anything starting at or
// after iv.End is out, and anything starting more than maxSpan before
// iv.Start has already ended.
func (x *IntervalIndex) scanRange(iv models.TimeInterval) (int, int) {
	floor := iv.Start.Add(-x.maxSpan)
	lo := sort.Search(len(x.entries), func(i int) bool {
		return !x.entries[i].interval.Start.Before(floor)
	})
	hi := sort.Search(len(x.entries), func(i int) bool {
		return !x.entries[i].interval.Start.Before(iv.End)
	})
	return lo, hi
}

// Overlaps reports whether any occupied interval overlaps iv.
// Touching intervals do not overlap; back-to-back bookings are legal.
func (x *IntervalIndex) Overlaps(iv models.TimeInterval) bool {
	lo, hi := x.scanRange(iv)
	for i := lo; i < hi; i++ {
		if x.entries[i].interval.Overlaps(iv) {
			return true
		}
	}
	return false
}

// MaxOccupancy returns the peak simultaneous occupancy over iv, counting
// entry quantities, via a boundary sweep over the overlapping entries.
func (x *IntervalIndex) MaxOccupancy(iv models.TimeInterval) int {
	lo, hi := x.scanRange(iv)

	type boundary struct {
		at    time.Time
		delta int
	}
	var bounds []boundary
	for i := lo; i < hi; i++ {
		e := x.entries[i]
		if !e.interval.Overlaps(iv) {
			continue
		}
		start := e.interval.Start
		if start.Before(iv.Start) {
			start = iv.Start
		}
		end := e.interval.End
		if end.After(iv.End) {
			end = iv.End
		}
		bounds = append(bounds, boundary{at: start, delta: e.qty}, boundary{at: end, delta: -e.qty})
	}
	if len(bounds) == 0 {
		return 0
	}

	sort.Slice(bounds, func(i, j int) bool {
		if bounds[i].at.Equal(bounds[j].at) {
			// Ends before starts at the same instant: half-open intervals
			// that touch do not stack.
			return bounds[i].delta < bounds[j].delta
		}
		return bounds[i].at.Before(bounds[j].at)
	})

	max, cur := 0, 0
	for _, b := range bounds {
		cur += b.delta
		if cur > max {
			max = cur
		}
	}
	return max
}

// BuildIndex constructs an index from committed bookings, skipping any
// that do not occupy the schedule.
func BuildIndex(bookings []models.Booking) *IntervalIndex {
	x := NewIntervalIndex()
	for _, b := range bookings {
		if !b.Occupies() {
			continue
		}
		qty := b.ResourceQty
		if qty <= 0 {
			qty = 1
		}
		x.Insert(b.ID, b.Interval, qty)
	}
	return x
}
