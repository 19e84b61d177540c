package schedule

import (
	"fmt"
	"sort"
	"time"

	"pawbook/internal/models"
)

const dateLayout = "2006-01-02"

// maxRuleClock caps a rule end position at two days of minutes: a shift
// may run past midnight but never span a whole extra day.
const maxRuleClock = 2 * 24 * 60

// ResolveRange turns a provider's rule set into concrete open intervals
// for every date in [from, to), keyed by the date's YYYY-MM-DD string.
// A date exception replaces all recurring rules on its date; otherwise
// every recurring rule matching the weekday contributes, including the
// tail of a previous-day rule that crosses midnight. Intervals within a
// date are merged into the minimal disjoint set, sorted by start.
//
// Local wall clocks convert to absolute instants in the rule's timezone,
// so daylight-saving transitions yield shorter or longer absolute days
// rather than a naive 24-hour assumption.
func ResolveRange(rules []models.AvailabilityRule, from, to time.Time) (map[string][]models.TimeInterval, error) {
	if err := validateRules(rules); err != nil {
		return nil, err
	}

	exceptions := make(map[string][]models.AvailabilityRule)
	var recurring []models.AvailabilityRule
	for _, r := range rules {
		if r.IsException() {
			exceptions[r.Date] = append(exceptions[r.Date], r)
		} else {
			recurring = append(recurring, r)
		}
	}

	out := make(map[string][]models.TimeInterval)
	for d := dateOnly(from); d.Before(dateOnly(to)); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)

		var intervals []models.TimeInterval
		if ex, ok := exceptions[key]; ok {
			for _, rule := range ex {
				ivs, err := exceptionIntervals(rule, d)
				if err != nil {
					return nil, err
				}
				intervals = append(intervals, ivs...)
			}
		} else {
			ivs, err := recurringIntervals(recurring, d)
			if err != nil {
				return nil, err
			}
			intervals = ivs
		}

		out[key] = mergeIntervals(intervals)
	}
	return out, nil
}

func validateRules(rules []models.AvailabilityRule) error {
	for _, r := range rules {
		if _, err := time.LoadLocation(r.Timezone); err != nil {
			return fmt.Errorf("%w: rule %d: unknown timezone %q", ErrInvalidRule, r.ID, r.Timezone)
		}
		switch {
		case r.IsRecurring():
			if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
				return fmt.Errorf("%w: rule %d: weekday %d out of range", ErrInvalidRule, r.ID, r.Weekday)
			}
			if err := validateClockRange(r.ID, r.Start, r.End); err != nil {
				return err
			}
		case r.IsException():
			if _, err := time.Parse(dateLayout, r.Date); err != nil {
				return fmt.Errorf("%w: rule %d: bad exception date %q", ErrInvalidRule, r.ID, r.Date)
			}
			for _, cr := range r.Intervals {
				if err := validateClockRange(r.ID, cr.Start, cr.End); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("%w: rule %d: unknown kind %q", ErrInvalidRule, r.ID, r.Kind)
		}
	}
	return nil
}

func validateClockRange(ruleID int64, start, end models.LocalClock) error {
	if end <= start {
		return fmt.Errorf("%w: rule %d: interval %s-%s is inverted or empty", ErrInvalidRule, ruleID, start, end)
	}
	if start < 0 || int(end) > maxRuleClock {
		return fmt.Errorf("%w: rule %d: clock %s-%s out of range", ErrInvalidRule, ruleID, start, end)
	}
	return nil
}

// recurringIntervals gathers every recurring contribution to date d:
// rules matching d's weekday (clipped at midnight when they run past it)
// and the spill-over tail of rules on the previous weekday.
func recurringIntervals(recurring []models.AvailabilityRule, d time.Time) ([]models.TimeInterval, error) {
	var out []models.TimeInterval
	prev := d.AddDate(0, 0, -1)

	for _, r := range recurring {
		loc, err := time.LoadLocation(r.Timezone)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d: unknown timezone %q", ErrInvalidRule, r.ID, r.Timezone)
		}

		if r.Weekday == d.Weekday() {
			end := r.End
			if end.Minutes() > 24*60 {
				end = models.LocalClock(24 * 60)
			}
			out = append(out, localInterval(d, r.Start, end, loc))
		}

		// Tail of a cross-midnight rule from the previous day.
		if r.Weekday == prev.Weekday() && r.End.Minutes() > 24*60 {
			tailEnd := models.LocalClock(r.End.Minutes() - 24*60)
			out = append(out, localInterval(d, 0, tailEnd, loc))
		}
	}
	return out, nil
}

func exceptionIntervals(rule models.AvailabilityRule, d time.Time) ([]models.TimeInterval, error) {
	loc, err := time.LoadLocation(rule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: rule %d: unknown timezone %q", ErrInvalidRule, rule.ID, rule.Timezone)
	}

	out := make([]models.TimeInterval, 0, len(rule.Intervals))
	for _, cr := range rule.Intervals {
		end := cr.End
		if end.Minutes() > 24*60 {
			end = models.LocalClock(24 * 60)
		}
		out = append(out, localInterval(d, cr.Start, end, loc))
	}
	return out, nil
}

// localInterval converts [start, end) wall minutes on date d into absolute
// time. time.Date normalizes overflowing minutes through DST transitions,
// which is exactly the behavior we need for skipped or repeated hours.
func localInterval(d time.Time, start, end models.LocalClock, loc *time.Location) models.TimeInterval {
	y, m, day := d.Date()
	return models.TimeInterval{
		Start: time.Date(y, m, day, 0, start.Minutes(), 0, 0, loc),
		End:   time.Date(y, m, day, 0, end.Minutes(), 0, 0, loc),
	}
}

// mergeIntervals sorts by start and coalesces overlapping or adjacent
// intervals into the minimal disjoint set.
func mergeIntervals(intervals []models.TimeInterval) []models.TimeInterval {
	if len(intervals) == 0 {
		return []models.TimeInterval{}
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Start.Before(intervals[j].Start)
	})

	merged := make([]models.TimeInterval, 0, len(intervals))
	cur := intervals[0]
	for _, iv := range intervals[1:] {
		if !iv.Start.After(cur.End) {
			if iv.End.After(cur.End) {
				cur.End = iv.End
			}
			continue
		}
		merged = append(merged, cur)
		cur = iv
	}
	return append(merged, cur)
}

// Flatten collapses a per-date resolution into one chronological merged
// interval list. Intervals touching across midnight coalesce, so a
// cross-midnight window is bookable as a single span.
func Flatten(byDate map[string][]models.TimeInterval) []models.TimeInterval {
	var all []models.TimeInterval
	for _, ivs := range byDate {
		all = append(all, ivs...)
	}
	if len(all) == 0 {
		return nil
	}
	return mergeIntervals(all)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
