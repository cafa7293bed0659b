package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Outbound message types that carry a full projection in Data.
const (
	TypeGroupView  = "group_view"
	TypeGroupCards = "group_cards"
	TypeError      = "error"
)

// Message is a server-to-client notification. Entity change messages name
// the entity and action; projections carry their payload in Data.
type Message struct {
	Type    string         `json:"type"`
	Entity  string         `json:"entity,omitempty"`
	Action  string         `json:"action,omitempty"`
	ID      string         `json:"id,omitempty"`
	GroupID string         `json:"group_id,omitempty"`
	Data    any            `json:"data,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id, groupID string, extra map[string]any) Message {
	return Message{
		Type:    fmt.Sprintf("%s_%s", entity, action),
		Entity:  entity,
		Action:  action,
		ID:      id,
		GroupID: groupID,
		Extra:   extra,
	}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
	dropped atomic.Uint64
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.closeSend()
	}
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	h.deliver(msg, func(*Client) bool { return true })
}

// BroadcastGroup tells clients about a change in groupID. Clients viewing
// that group, and clients on the group list, also recompute their view.
func (h *Hub) BroadcastGroup(groupID string, msg Message) {
	msg.GroupID = groupID

	var affected []*Client
	h.deliver(msg, func(c *Client) bool {
		g := c.GroupID()
		if g == groupID || g == "" {
			affected = append(affected, c)
		}
		return g == groupID
	})

	for _, c := range affected {
		go c.refresh()
	}
}

func (h *Hub) deliver(msg Message, match func(*Client) bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !match(c) {
			continue
		}
		if !c.enqueue(data) {
			h.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded because a client's
// buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
