// Package notify decides whether overdue chores warrant an alert and sends at
// most one summary per evaluation.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/mindthecat/internal/chore"
	"github.com/dukerupert/mindthecat/internal/model"
)

// MuteChecker is satisfied by *mute.Registry.
type MuteChecker interface {
	IsMuted(choreID string) (bool, error)
}

// Gate combines overdue state, mute flags and sink permission.
type Gate struct {
	mutes  MuteChecker
	sink   Sink
	logger *slog.Logger
}

func NewGate(mutes MuteChecker, sink Sink, logger *slog.Logger) *Gate {
	return &Gate{mutes: mutes, sink: sink, logger: logger}
}

// Pending returns the overdue chores that are not muted on this device, in
// input order.
func (g *Gate) Pending(chores []model.Chore, now time.Time) []model.Chore {
	var pending []model.Chore
	for _, c := range chores {
		if !chore.IsOverdue(c, now) {
			continue
		}
		muted, err := g.mutes.IsMuted(c.ID)
		if err != nil {
			g.logger.Warn("mute lookup failed, treating as unmuted", "chore_id", c.ID, "error", err)
			muted = false
		}
		if muted {
			continue
		}
		pending = append(pending, c)
	}
	return pending
}

// Count returns how many chores would be announced at now.
func (g *Gate) Count(chores []model.Chore, now time.Time) int {
	return len(g.Pending(chores, now))
}

// Evaluate counts announceable chores and, when there are any and the sink
// has permission, shows a single summary notification.
func (g *Gate) Evaluate(ctx context.Context, chores []model.Chore, now time.Time) (int, error) {
	pending := g.Pending(chores, now)
	if len(pending) == 0 {
		return 0, nil
	}
	if g.sink.Permission() != PermissionGranted {
		g.logger.Debug("notification suppressed, permission not granted", "count", len(pending))
		return len(pending), nil
	}

	title, body := Summary(pending)
	if err := g.sink.Show(ctx, title, body); err != nil {
		return len(pending), fmt.Errorf("show notification: %w", err)
	}
	return len(pending), nil
}

// Summary builds the title and body announcing the given overdue chores.
func Summary(overdue []model.Chore) (title, body string) {
	title = "Chore Overdue!"
	if len(overdue) == 1 {
		return title, fmt.Sprintf("The chore %q is overdue in your group.", overdue[0].Name)
	}
	return "Chores Overdue!", fmt.Sprintf("%d chores are overdue in your group.", len(overdue))
}
