package schedule

import (
	"fmt"
	"time"

	"pawbook/internal/models"
)

// SlotIterator lazily walks candidate start times over a set of disjoint
// open intervals. Each candidate's occupancy [start, start+duration) fits
// fully inside one open interval. The iterator performs no conflict
// filtering; that is the ConflictFilter's job.
type SlotIterator struct {
	open     []models.TimeInterval
	duration time.Duration
	step     time.Duration

	idx  int
	next time.Time
}

// NewSlotIterator validates the configuration and positions the iterator
// at the first interval. The step must be positive and no larger than the
// duration: a step above the duration would skip start times that fit.
func NewSlotIterator(open []models.TimeInterval, duration, step time.Duration) (*SlotIterator, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration %s must be positive", ErrInvalidConfiguration, duration)
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: step %s must be positive", ErrInvalidConfiguration, step)
	}
	if step > duration {
		return nil, fmt.Errorf("%w: step %s exceeds duration %s", ErrInvalidConfiguration, step, duration)
	}

	it := &SlotIterator{open: open, duration: duration, step: step}
	it.Reset()
	return it, nil
}

// Reset rewinds the iterator to the first candidate.
func (it *SlotIterator) Reset() {
	it.idx = 0
	if len(it.open) > 0 {
		it.next = it.open[0].Start
	}
}

// Next returns the next candidate slot, or false when exhausted.
func (it *SlotIterator) Next() (models.Slot, bool) {
	for it.idx < len(it.open) {
		iv := it.open[it.idx]
		end := it.next.Add(it.duration)
		if !end.After(iv.End) {
			slot := models.Slot{
				Start:    it.next,
				Interval: models.TimeInterval{Start: it.next, End: end},
			}
			it.next = it.next.Add(it.step)
			return slot, true
		}

		// Current interval exhausted; move to the next one.
		it.idx++
		if it.idx < len(it.open) {
			it.next = it.open[it.idx].Start
		}
	}
	return models.Slot{}, false
}

// Collect drains the iterator into a slice. Mostly for tests and the
// advisory listing path, where the full day fits in memory anyway.
func (it *SlotIterator) Collect() []models.Slot {
	var out []models.Slot
	for {
		slot, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, slot)
	}
}
