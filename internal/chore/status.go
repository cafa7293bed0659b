package chore

import (
	"fmt"
	"time"

	"github.com/dukerupert/mindthecat/internal/model"
)

type Status string

const (
	StatusGood    Status = "good"
	StatusWarning Status = "warning"
	StatusUrgent  Status = "urgent"
)

const (
	urgentBelow  = 25.0
	warningBelow = 50.0
)

// Progress describes how much of a chore's interval is left.
type Progress struct {
	Percent   float64       `json:"percent"`
	Status    Status        `json:"status"`
	TimeText  string        `json:"time_text"`
	Remaining time.Duration `json:"remaining"`
	NextDue   time.Time     `json:"next_due"`
}

// Overdue reports whether the due time has been reached.
func (p Progress) Overdue() bool {
	return p.Remaining <= 0
}

// ComputeProgress derives the remaining-time percentage and urgency of a
// chore. ok is false when the chore has no interval or was never done, in
// which case no progress indicator should be shown.
func ComputeProgress(c model.Chore, now time.Time) (Progress, bool) {
	due, ok := NextDueAt(c)
	if !ok {
		return Progress{}, false
	}

	interval := Interval(c)
	remaining := due.Sub(now)

	var percent float64
	if interval > 0 {
		percent = float64(remaining) / float64(interval) * 100
	}
	percent = clamp(percent, 0, 100)

	return Progress{
		Percent:   percent,
		Status:    classify(percent, remaining),
		TimeText:  timeText(remaining),
		Remaining: remaining,
		NextDue:   due,
	}, true
}

func classify(percent float64, remaining time.Duration) Status {
	switch {
	case remaining <= 0 || percent < urgentBelow:
		return StatusUrgent
	case percent < warningBelow:
		return StatusWarning
	default:
		return StatusGood
	}
}

func timeText(remaining time.Duration) string {
	if remaining <= 0 {
		overdue := -remaining
		if days := int(overdue / (24 * time.Hour)); days >= 1 {
			return "Overdue by " + plural(days, "day")
		}
		if hours := int(overdue / time.Hour); hours >= 1 {
			return "Overdue by " + plural(hours, "hour")
		}
		return "Overdue by less than 1 hour"
	}

	if days := int(remaining / (24 * time.Hour)); days >= 1 {
		return plural(days, "day") + " remaining"
	}
	if hours := int(remaining / time.Hour); hours >= 1 {
		return plural(hours, "hour") + " remaining"
	}
	return "Less than 1 hour remaining"
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
