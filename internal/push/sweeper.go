package push

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/mindthecat/internal/model"
	"github.com/dukerupert/mindthecat/internal/mute"
	"github.com/dukerupert/mindthecat/internal/notify"
)

// DefaultSweepSchedule is how often groups are checked for overdue chores.
const DefaultSweepSchedule = "@every 5m"

// sentRetention bounds how long dedup records are kept.
const sentRetention = 48 * time.Hour

// SweepStore is the subscription and dedup state the sweeper needs.
type SweepStore interface {
	SubscriptionStore
	ListForGroup(ctx context.Context, groupID string) ([]model.PushSubscription, error)
	WasSent(ctx context.Context, groupID, deviceID, notifType, refID string) (bool, error)
	RecordSent(ctx context.Context, groupID, deviceID, notifType, refID string) error
	CleanupSent(ctx context.Context, before time.Time) error
}

type GroupLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

type ChoreLister interface {
	List(ctx context.Context, groupID string) ([]model.Chore, error)
}

// DevicePreferences returns the local preference store of a device.
type DevicePreferences func(deviceID string) mute.Preferences

// Sweeper periodically checks every group for overdue chores and notifies
// each subscribed member device, honoring that device's mutes.
type Sweeper struct {
	mu       sync.Mutex
	cron     *cron.Cron
	schedule string
	groups   GroupLister
	chores   ChoreLister
	subs     SweepStore
	prefs    DevicePreferences
	sender   Sender
	logger   *slog.Logger
	now      func() time.Time
}

func NewSweeper(schedule string, groups GroupLister, chores ChoreLister, subs SweepStore, prefs DevicePreferences, sender Sender, logger *slog.Logger) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Sweeper{
		schedule: schedule,
		groups:   groups,
		chores:   chores,
		subs:     subs,
		prefs:    prefs,
		sender:   sender,
		logger:   logger,
		now:      time.Now,
	}
}

// Start schedules the sweep. It returns an error if the schedule cannot be
// parsed.
func (s *Sweeper) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		if _, err := s.SweepOnce(ctx); err != nil {
			s.logger.Error("overdue sweep", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.schedule, err)
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	s.logger.Info("overdue sweep scheduled", "schedule", s.schedule)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// SweepOnce evaluates every group once and returns how many device
// notifications were sent. A failing group is logged and skipped.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.groups.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list groups: %w", err)
	}

	var sent int
	for _, groupID := range ids {
		n, err := s.sweepGroup(ctx, groupID, now)
		if err != nil {
			s.logger.Error("sweep group", "group_id", groupID, "error", err)
			continue
		}
		sent += n
	}

	if err := s.subs.CleanupSent(ctx, now.Add(-sentRetention)); err != nil {
		s.logger.Warn("cleanup sent notifications", "error", err)
	}
	return sent, nil
}

func (s *Sweeper) sweepGroup(ctx context.Context, groupID string, now time.Time) (int, error) {
	subs, err := s.subs.ListForGroup(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return 0, nil
	}

	chores, err := s.chores.List(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("list chores: %w", err)
	}

	refID := now.UTC().Format("2006-01-02T15")
	var sent int
	order, byDevice := subscriptionsByDevice(subs)
	for _, deviceID := range order {
		already, err := s.subs.WasSent(ctx, groupID, deviceID, model.NotifTypeChoreOverdue, refID)
		if err != nil {
			s.logger.Error("check sent notification", "group_id", groupID, "device_id", deviceID, "error", err)
			continue
		}
		if already {
			continue
		}

		logger := s.logger.With("group_id", groupID, "device_id", deviceID)
		sink := NewSubscriptionSink(s.sender, s.subs, deviceID, byDevice[deviceID], logger)
		gate := notify.NewGate(mute.NewRegistry(s.prefs(deviceID)), sink, logger)

		count, err := gate.Evaluate(ctx, chores, now)
		if err != nil {
			logger.Warn("notify device", "error", err)
			continue
		}
		if count == 0 {
			continue
		}

		if err := s.subs.RecordSent(ctx, groupID, deviceID, model.NotifTypeChoreOverdue, refID); err != nil {
			logger.Error("record sent notification", "error", err)
		}
		sent++
	}
	return sent, nil
}

// subscriptionsByDevice groups subs by device, keeping first-seen device order.
func subscriptionsByDevice(subs []model.PushSubscription) ([]string, map[string][]model.PushSubscription) {
	byDevice := make(map[string][]model.PushSubscription)
	var order []string
	for _, sub := range subs {
		if _, ok := byDevice[sub.DeviceID]; !ok {
			order = append(order, sub.DeviceID)
		}
		byDevice[sub.DeviceID] = append(byDevice[sub.DeviceID], sub)
	}
	return order, byDevice
}
