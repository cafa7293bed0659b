package tui

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dukerupert/mindthecat/internal/notify"
	"github.com/dukerupert/mindthecat/internal/tracker"
)

const eventBufferSize = 32

// GroupViewMsg carries a recomputed group view.
type GroupViewMsg struct {
	View *tracker.GroupView
}

// CardsMsg carries recomputed group cards.
type CardsMsg struct {
	Cards []tracker.Card
}

// BannerMsg is an overdue notification shown at the bottom of the screen.
type BannerMsg struct {
	Title string
	Body  string
	At    time.Time
}

// Bridge carries session output into the bubbletea program. It is the
// session's Publisher and its notification Sink.
type Bridge struct {
	events  chan tea.Msg
	grant   bool
	dropped atomic.Uint64

	mu     sync.Mutex
	perm   notify.Permission
	closed bool
}

// NewBridge returns a bridge. When grant is false permission requests are
// denied and no banners are shown.
func NewBridge(grant bool) *Bridge {
	return &Bridge{
		events: make(chan tea.Msg, eventBufferSize),
		grant:  grant,
		perm:   notify.PermissionDefault,
	}
}

// Events is the channel the program reads from.
func (b *Bridge) Events() <-chan tea.Msg {
	return b.events
}

func (b *Bridge) PublishGroup(ctx context.Context, view *tracker.GroupView) {
	b.send(GroupViewMsg{View: view})
}

func (b *Bridge) PublishCards(ctx context.Context, cards []tracker.Card) {
	b.send(CardsMsg{Cards: cards})
}

func (b *Bridge) Permission() notify.Permission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.perm
}

func (b *Bridge) RequestPermission(ctx context.Context) (notify.Permission, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.perm == notify.PermissionDefault {
		b.perm = notify.PermissionDenied
		if b.grant {
			b.perm = notify.PermissionGranted
		}
	}
	return b.perm, nil
}

func (b *Bridge) Show(ctx context.Context, title, body string) error {
	if b.Permission() != notify.PermissionGranted {
		return nil
	}
	b.send(BannerMsg{Title: title, Body: body, At: time.Now()})
	return nil
}

// Dropped returns how many events were discarded because the program was
// not keeping up.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

// Close ends the event stream. Later sends are discarded.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.events <- msg:
	default:
		b.dropped.Add(1)
	}
}

func waitForEvent(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
