// Package session holds the per-client view state: who is signed in, which
// group is on screen and the refresh loops that keep it current.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/mindthecat/internal/model"
	"github.com/dukerupert/mindthecat/internal/notify"
	"github.com/dukerupert/mindthecat/internal/refresh"
	"github.com/dukerupert/mindthecat/internal/tracker"
)

// Tracker is the read side of tracker.Service.
type Tracker interface {
	GroupView(ctx context.Context, groupID string, now time.Time) (*tracker.GroupView, error)
	Cards(ctx context.Context, userID string, now time.Time) ([]tracker.Card, error)
}

// Publisher receives every recomputed view.
type Publisher interface {
	PublishGroup(ctx context.Context, view *tracker.GroupView)
	PublishCards(ctx context.Context, cards []tracker.Card)
}

type Session struct {
	tracker Tracker
	gate    *notify.Gate
	sink    notify.Sink
	pub     Publisher
	sched   *refresh.Scheduler
	logger  *slog.Logger
	now     func() time.Time

	mu               sync.Mutex
	identity         *model.Identity
	userReadyHandled bool
	groupID          string
	tok              refresh.Token
}

func New(t Tracker, gate *notify.Gate, sink notify.Sink, pub Publisher, opts refresh.Options, logger *slog.Logger) *Session {
	s := &Session{
		tracker: t,
		gate:    gate,
		sink:    sink,
		pub:     pub,
		logger:  logger,
		now:     time.Now,
	}
	s.sched = refresh.NewScheduler(opts, s.onProgress, s.onStats, logger.With("component", "refresh"))
	return s
}

// UserReady records the signed-in user. The first call in a session asks
// the sink for notification permission; later calls do not.
func (s *Session) UserReady(ctx context.Context, id model.Identity) {
	s.mu.Lock()
	s.identity = &id
	first := !s.userReadyHandled
	s.userReadyHandled = true
	s.mu.Unlock()

	if !first {
		return
	}
	if s.sink.Permission() != notify.PermissionDefault {
		return
	}
	perm, err := s.sink.RequestPermission(ctx)
	if err != nil {
		s.logger.Warn("request notification permission", "error", err)
		return
	}
	s.logger.Debug("notification permission", "permission", perm)
}

// Identity returns the signed-in user, if any.
func (s *Session) Identity() (model.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return model.Identity{}, false
	}
	return *s.identity, true
}

// GroupID returns the group on screen, or "".
func (s *Session) GroupID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupID
}

// ShowGroups switches to the group list: progress updates stop, the cards
// are published and their stats are refreshed periodically.
func (s *Session) ShowGroups(ctx context.Context) {
	s.mu.Lock()
	s.groupID = ""
	s.sched.StopProgress()
	s.tok = s.sched.StartGroupStatsUpdates(ctx)
	s.mu.Unlock()

	s.publishCards(ctx, s.sched.Current())
}

// SelectGroup puts groupID on screen, starts both refresh loops and runs the
// pipeline once right away.
func (s *Session) SelectGroup(ctx context.Context, groupID string) {
	s.mu.Lock()
	s.groupID = groupID
	s.tok = s.sched.Start(ctx, groupID)
	s.mu.Unlock()

	s.sched.RunNow(ctx)
}

// LeaveGroup stops refreshing the group on screen.
func (s *Session) LeaveGroup() {
	s.mu.Lock()
	tok := s.tok
	s.groupID = ""
	s.mu.Unlock()

	s.sched.Stop(tok)
}

// Refresh recomputes the current view now. It reports false when a run was
// already in flight.
func (s *Session) Refresh(ctx context.Context) bool {
	if s.GroupID() == "" {
		s.publishCards(ctx, s.sched.Current())
		return true
	}
	return s.sched.RunNow(ctx)
}

// Logout stops all refreshing and forgets the user so the next UserReady is
// treated as a fresh sign-in.
func (s *Session) Logout() {
	s.sched.StopAll()

	s.mu.Lock()
	s.identity = nil
	s.userReadyHandled = false
	s.groupID = ""
	s.tok = 0
	s.mu.Unlock()
}

// Close stops the refresh loops and waits for them to exit.
func (s *Session) Close() {
	s.sched.Close()
}

// Skipped reports how many refreshes were dropped because one was in flight.
func (s *Session) Skipped() uint64 {
	return s.sched.Skipped()
}

func (s *Session) onProgress(ctx context.Context, groupID string, tok refresh.Token) {
	now := s.now()
	view, err := s.tracker.GroupView(ctx, groupID, now)
	if err != nil {
		s.logger.Error("refresh group view", "group_id", groupID, "error", err)
		return
	}
	if !s.sched.IsCurrent(tok) {
		s.logger.Debug("discarding stale group view", "group_id", groupID)
		return
	}
	s.pub.PublishGroup(ctx, view)

	chores := make([]model.Chore, len(view.Chores))
	for i, cv := range view.Chores {
		chores[i] = cv.Chore
	}
	if _, err := s.gate.Evaluate(ctx, chores, now); err != nil {
		s.logger.Warn("evaluate notifications", "group_id", groupID, "error", err)
	}
}

func (s *Session) onStats(ctx context.Context, tok refresh.Token) {
	s.publishCards(ctx, tok)
}

func (s *Session) publishCards(ctx context.Context, tok refresh.Token) {
	id, ok := s.Identity()
	if !ok {
		return
	}
	cards, err := s.tracker.Cards(ctx, id.ID, s.now())
	if err != nil {
		s.logger.Error("refresh group cards", "error", err)
		return
	}
	if !s.sched.IsCurrent(tok) {
		return
	}
	s.pub.PublishCards(ctx, cards)
}
