package chore

import (
	"time"

	"github.com/dukerupert/mindthecat/internal/model"
)

// IntervalDuration converts a stored interval to a duration. Unknown units
// yield zero, which makes the chore due as soon as it has been done.
func IntervalDuration(value int, unit model.IntervalUnit) time.Duration {
	switch unit {
	case model.UnitMinutes:
		return time.Duration(value) * time.Minute
	case model.UnitHours:
		return time.Duration(value) * time.Hour
	case model.UnitDays:
		return time.Duration(value) * 24 * time.Hour
	default:
		return 0
	}
}

// HasInterval reports whether the chore carries a recurrence contract.
func HasInterval(c model.Chore) bool {
	return c.IntervalValue != nil && *c.IntervalValue > 0 && c.IntervalUnit != ""
}

// Interval returns the chore's recurrence as a duration, or zero without one.
func Interval(c model.Chore) time.Duration {
	if !HasInterval(c) {
		return 0
	}
	return IntervalDuration(*c.IntervalValue, c.IntervalUnit)
}

// NextDueAt returns LastDone plus the interval. ok is false when either is absent.
func NextDueAt(c model.Chore) (due time.Time, ok bool) {
	if !HasInterval(c) || c.LastDone == nil {
		return time.Time{}, false
	}
	return c.LastDone.Add(Interval(c)), true
}

// IsOverdue reports whether the chore's next due time has passed at now.
// Chores without an interval are never overdue; recurring chores that were
// never done always are.
func IsOverdue(c model.Chore, now time.Time) bool {
	if !HasInterval(c) {
		return false
	}
	if c.LastDone == nil {
		return true
	}
	due, _ := NextDueAt(c)
	return now.After(due)
}
