// Package refresh re-runs the progress and group stats pipelines on fixed
// intervals while a view is on screen.
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultProgressInterval = 120 * time.Second
	DefaultStatsInterval    = 300 * time.Second
)

// Token identifies one Start/Stop generation. Each fire is handed the token
// current when it began; callbacks check IsCurrent before publishing so
// results of a superseded run are dropped.
type Token uint64

// ProgressFunc recomputes and publishes the selected group's view.
type ProgressFunc func(ctx context.Context, groupID string, tok Token)

// StatsFunc recomputes and publishes stats for every visible group card.
type StatsFunc func(ctx context.Context, tok Token)

type Options struct {
	ProgressInterval time.Duration
	StatsInterval    time.Duration
}

func (o Options) withDefaults() Options {
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = DefaultProgressInterval
	}
	if o.StatsInterval <= 0 {
		o.StatsInterval = DefaultStatsInterval
	}
	return o
}

type loop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns the two refresh loops.
type Scheduler struct {
	opts       Options
	onProgress ProgressFunc
	onStats    StatsFunc
	logger     *slog.Logger

	mu       sync.Mutex
	progress *loop
	stats    *loop
	groupID  string

	gen      atomic.Uint64
	inFlight atomic.Bool
	skipped  atomic.Uint64
}

// NewScheduler creates a stopped scheduler. Either callback may be nil.
func NewScheduler(opts Options, onProgress ProgressFunc, onStats StatsFunc, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		opts:       opts.withDefaults(),
		onProgress: onProgress,
		onStats:    onStats,
		logger:     logger,
	}
}

// Start runs both loops for groupID and returns the new token.
func (s *Scheduler) Start(ctx context.Context, groupID string) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok := s.bump()
	s.startProgressLocked(ctx, groupID)
	s.startStatsLocked(ctx)
	return tok
}

// StartProgressUpdates (re)starts the progress loop for groupID. A running
// progress loop is cancelled and replaced.
func (s *Scheduler) StartProgressUpdates(ctx context.Context, groupID string) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok := s.bump()
	s.startProgressLocked(ctx, groupID)
	return tok
}

// StartGroupStatsUpdates (re)starts the group stats loop.
func (s *Scheduler) StartGroupStatsUpdates(ctx context.Context) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok := s.bump()
	s.startStatsLocked(ctx)
	return tok
}

// Stop halts both loops if tok is still current. Stale tokens are ignored
// and Stop reports false. An in-flight run is not interrupted.
func (s *Scheduler) Stop(tok Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsCurrent(tok) {
		return false
	}
	s.bump()
	s.stopLocked()
	return true
}

// StopProgress halts the progress loop and leaves the stats loop running.
// It does not advance the generation.
func (s *Scheduler) StopProgress() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.progress != nil {
		s.progress.cancel()
		s.progress = nil
	}
	s.groupID = ""
}

// StopAll halts both loops regardless of token.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bump()
	s.stopLocked()
}

// Close stops both loops and waits for their goroutines to exit. It must not
// be called from inside a callback.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.bump()
	var waits []chan struct{}
	for _, l := range []*loop{s.progress, s.stats} {
		if l != nil {
			waits = append(waits, l.done)
		}
	}
	s.stopLocked()
	s.mu.Unlock()

	for _, done := range waits {
		<-done
	}
}

// RunNow runs the progress callback immediately on the caller's goroutine.
// It returns false without running when no group is active or another
// progress run holds the in-flight guard.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	s.mu.Lock()
	groupID := s.groupID
	running := s.progress != nil
	s.mu.Unlock()

	if !running || groupID == "" {
		return false
	}
	return s.fireProgress(ctx, groupID, s.Current())
}

// IsCurrent reports whether tok belongs to the latest Start/Stop.
func (s *Scheduler) IsCurrent(tok Token) bool {
	return Token(s.gen.Load()) == tok
}

// Current returns the latest token.
func (s *Scheduler) Current() Token {
	return Token(s.gen.Load())
}

// Skipped returns how many progress fires were dropped because a run was
// already in flight.
func (s *Scheduler) Skipped() uint64 {
	return s.skipped.Load()
}

// Running reports whether the progress and stats loops are active.
func (s *Scheduler) Running() (progress, stats bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress != nil, s.stats != nil
}

// GroupID returns the group the progress loop is bound to, or "".
func (s *Scheduler) GroupID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupID
}

func (s *Scheduler) bump() Token {
	return Token(s.gen.Add(1))
}

func (s *Scheduler) startProgressLocked(ctx context.Context, groupID string) {
	if s.progress != nil {
		s.progress.cancel()
	}
	s.groupID = groupID
	s.progress = s.spawn(ctx, s.opts.ProgressInterval, func(ctx context.Context) {
		s.fireProgress(ctx, groupID, s.Current())
	})
	s.logger.Debug("progress updates started", "group_id", groupID, "interval", s.opts.ProgressInterval)
}

func (s *Scheduler) startStatsLocked(ctx context.Context) {
	if s.stats != nil {
		s.stats.cancel()
	}
	s.stats = s.spawn(ctx, s.opts.StatsInterval, func(ctx context.Context) {
		if s.onStats != nil {
			s.onStats(ctx, s.Current())
		}
	})
	s.logger.Debug("group stats updates started", "interval", s.opts.StatsInterval)
}

func (s *Scheduler) stopLocked() {
	if s.progress != nil {
		s.progress.cancel()
		s.progress = nil
	}
	if s.stats != nil {
		s.stats.cancel()
		s.stats = nil
	}
	s.groupID = ""
}

func (s *Scheduler) spawn(ctx context.Context, interval time.Duration, fire func(context.Context)) *loop {
	ctx, cancel := context.WithCancel(ctx)
	l := &loop{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				fire(ctx)
			}
		}
	}()
	return l
}

func (s *Scheduler) fireProgress(ctx context.Context, groupID string, tok Token) bool {
	if s.onProgress == nil {
		return false
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Debug("progress update skipped, run in flight", "group_id", groupID)
		return false
	}
	defer s.inFlight.Store(false)

	s.onProgress(ctx, groupID, tok)
	return true
}
