package chore

import (
	"time"

	"github.com/dukerupert/mindthecat/internal/model"
)

// Stats summarises a group's chores at a point in time.
type Stats struct {
	OverdueCount       int          `json:"overdue_count"`
	NeverDoneCount     int          `json:"never_done_count"`
	MostUrgent         *model.Chore `json:"most_urgent,omitempty"`
	MostUrgentProgress *Progress    `json:"most_urgent_progress,omitempty"`
	Total              int          `json:"total"`
}

// Aggregate scans chores once. The most urgent chore is the one with the
// lowest remaining percentage among chores that have progress; the first one
// in input order wins ties. Recurring chores that were never done have no
// percentage and are counted in NeverDoneCount instead.
func Aggregate(chores []model.Chore, now time.Time) Stats {
	stats := Stats{Total: len(chores)}

	for i := range chores {
		c := chores[i]
		if IsOverdue(c, now) {
			stats.OverdueCount++
		}
		if HasInterval(c) && c.LastDone == nil {
			stats.NeverDoneCount++
		}

		p, ok := ComputeProgress(c, now)
		if !ok {
			continue
		}
		if stats.MostUrgentProgress == nil || p.Percent < stats.MostUrgentProgress.Percent {
			stats.MostUrgent = &chores[i]
			stats.MostUrgentProgress = &p
		}
	}

	return stats
}
