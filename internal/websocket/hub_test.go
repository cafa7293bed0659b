package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/mindthecat/internal/notify"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub) *Client {
	return &Client{
		hub:     hub,
		conn:    nil,
		send:    make(chan []byte, sendBufferSize),
		members: allowAll{},
		logger:  slog.Default(),
		perm:    notify.PermissionDefault,
	}
}

type allowAll struct{}

func (allowAll) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	return true, nil
}

func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestPublishAfterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	hub.Unregister(c)

	// Must not panic on the closed channel
	c.sendError("late")

	if got := hub.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)
	hub.Register(c1)
	hub.Register(c2)

	msg := NewMessage("chore", "created", "c-1", "g-1", map[string]any{"name": "Water plants"})
	hub.Broadcast(msg)

	for _, c := range []*Client{c1, c2} {
		got := recv(t, c)
		if got.Type != "chore_created" {
			t.Errorf("expected type chore_created, got %s", got.Type)
		}
		if got.Entity != "chore" {
			t.Errorf("expected entity chore, got %s", got.Entity)
		}
		if got.ID != "c-1" {
			t.Errorf("expected id c-1, got %s", got.ID)
		}
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Broadcast(NewMessage("chore", "completed", "c-1", "g-1", nil))
}

func TestBroadcastGroup(t *testing.T) {
	hub := NewHub(slog.Default())

	inGroup := mockClient(hub)
	inGroup.groupID = "g-1"
	inGroup.Attach(&fakeController{})
	otherGroup := mockClient(hub)
	otherGroup.groupID = "g-2"
	otherGroup.Attach(&fakeController{})
	lobby := mockClient(hub)
	lobby.Attach(&fakeController{})

	for _, c := range []*Client{inGroup, otherGroup, lobby} {
		hub.Register(c)
	}

	hub.BroadcastGroup("g-1", NewMessage("chore", "updated", "c-1", "", nil))

	got := recv(t, inGroup)
	if got.GroupID != "g-1" {
		t.Errorf("GroupID = %q, want g-1", got.GroupID)
	}
	if len(otherGroup.send) != 0 || len(lobby.send) != 0 {
		t.Error("clients outside the group received the change message")
	}

	waitFor(t, func() bool { return inGroup.ctrl.(*fakeController).refreshes() == 1 })
	waitFor(t, func() bool { return lobby.ctrl.(*fakeController).refreshes() == 1 })
	if n := otherGroup.ctrl.(*fakeController).refreshes(); n != 0 {
		t.Errorf("other group refreshed %d times, want 0", n)
	}
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub)
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewMessage("test", "fill", "", "", nil))
	}

	// This should drop the message, not panic or block
	hub.Broadcast(NewMessage("test", "dropped", "", "", nil))

	if len(c.send) != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, len(c.send))
	}
	if got := hub.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}

	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("chore", "deleted", "c-5", "g-1", nil)
	if msg.Type != "chore_deleted" {
		t.Errorf("expected type chore_deleted, got %s", msg.Type)
	}
	if msg.Action != "deleted" {
		t.Errorf("expected action deleted, got %s", msg.Action)
	}
	if msg.ID != "c-5" || msg.GroupID != "g-1" {
		t.Errorf("ids = %q/%q, want c-5/g-1", msg.ID, msg.GroupID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub)
			hub.Register(c)
			hub.Broadcast(NewMessage("test", "concurrent", "", "", nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
