package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/mindthecat/internal/notify"
	"github.com/dukerupert/mindthecat/internal/tracker"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	refreshTimeout = 10 * time.Second
)

// Inbound message types.
const (
	TypeSelectGroup = "select_group"
	TypeLeaveGroup  = "leave_group"
	TypeShowGroups  = "show_groups"
	TypeRefresh     = "refresh"
	TypePermission  = "permission"
)

// Outbound notification messages. The browser shows them with its own
// notification API and answers permission requests with TypePermission.
const (
	TypeNotification      = "notification"
	TypeRequestPermission = "request_permission"
)

// ClientMessage is a client-to-server request.
type ClientMessage struct {
	Type       string            `json:"type"`
	GroupID    string            `json:"group_id,omitempty"`
	Permission notify.Permission `json:"permission,omitempty"`
}

// Controller drives the view of one connection. *session.Session
// implements it.
type Controller interface {
	SelectGroup(ctx context.Context, groupID string)
	LeaveGroup()
	ShowGroups(ctx context.Context)
	Refresh(ctx context.Context) bool
	Close()
}

// MembershipChecker reports whether a user may view a group.
type MembershipChecker interface {
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// Client represents a single WebSocket connection.
type Client struct {
	hub     *Hub
	conn    *ws.Conn
	send    chan []byte
	userID  string
	members MembershipChecker
	logger  *slog.Logger

	mu      sync.Mutex
	ctrl    Controller
	groupID string
	perm    notify.Permission
	closed  bool
}

// NewClient creates a Client tied to the given hub and connection.
func NewClient(hub *Hub, conn *ws.Conn, userID string, members MembershipChecker, logger *slog.Logger) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		userID:  userID,
		members: members,
		logger:  logger,
		perm:    notify.PermissionDefault,
	}
}

// Attach sets the controller that handles this client's requests.
func (c *Client) Attach(ctrl Controller) {
	c.mu.Lock()
	c.ctrl = ctrl
	c.mu.Unlock()
}

// GroupID returns the group this client is viewing, or "".
func (c *Client) GroupID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groupID
}

// PublishGroup sends a recomputed group view.
func (c *Client) PublishGroup(ctx context.Context, view *tracker.GroupView) {
	c.publish(Message{Type: TypeGroupView, GroupID: view.GroupID, Data: view})
}

// PublishCards sends recomputed group cards.
func (c *Client) PublishCards(ctx context.Context, cards []tracker.Card) {
	c.publish(Message{Type: TypeGroupCards, Data: cards})
}

// Permission returns the browser's notification permission as last
// reported by the client.
func (c *Client) Permission() notify.Permission {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.perm == "" {
		return notify.PermissionDefault
	}
	return c.perm
}

// SetPermission records the browser's notification permission.
func (c *Client) SetPermission(p notify.Permission) {
	c.mu.Lock()
	c.perm = p
	c.mu.Unlock()
}

// RequestPermission asks the browser to prompt the user. The answer arrives
// later as a permission message, so the current value is returned.
func (c *Client) RequestPermission(ctx context.Context) (notify.Permission, error) {
	c.publish(Message{Type: TypeRequestPermission})
	return c.Permission(), nil
}

// Show asks the browser to display a notification.
func (c *Client) Show(ctx context.Context, title, body string) error {
	if c.Permission() != notify.PermissionGranted {
		return nil
	}
	c.publish(Message{Type: TypeNotification, Extra: map[string]any{"title": title, "body": body}})
	return nil
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context, initialGroup string) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if ctrl := c.controller(); ctrl != nil {
		defer ctrl.Close()
	}

	go c.writePump(ctx)

	if initialGroup != "" {
		c.selectGroup(ctx, initialGroup)
	} else if ctrl := c.controller(); ctrl != nil {
		ctrl.ShowGroups(ctx)
	}
	c.readPump(ctx)
}

// readPump dispatches incoming requests. It returns on error (connection
// close), which triggers cleanup.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		c.handle(ctx, data)
	}
}

func (c *Client) handle(ctx context.Context, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("invalid message")
		return
	}

	ctrl := c.controller()
	if ctrl == nil {
		return
	}

	switch msg.Type {
	case TypeSelectGroup:
		if msg.GroupID == "" {
			c.sendError("group_id is required")
			return
		}
		c.selectGroup(ctx, msg.GroupID)
	case TypeLeaveGroup:
		c.setGroup("")
		ctrl.LeaveGroup()
	case TypeShowGroups:
		c.setGroup("")
		ctrl.ShowGroups(ctx)
	case TypeRefresh:
		ctrl.Refresh(ctx)
	case TypePermission:
		switch msg.Permission {
		case notify.PermissionDefault, notify.PermissionGranted, notify.PermissionDenied:
			c.SetPermission(msg.Permission)
		default:
			c.sendError("invalid permission")
		}
	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}

func (c *Client) selectGroup(ctx context.Context, groupID string) {
	ok, err := c.members.IsMember(ctx, groupID, c.userID)
	if err != nil {
		c.logger.Error("check membership", "group_id", groupID, "error", err)
		c.sendError("internal error")
		return
	}
	if !ok {
		c.sendError("not a member of this group")
		return
	}
	c.setGroup(groupID)
	c.controller().SelectGroup(ctx, groupID)
}

// refresh recomputes the current view after a change made elsewhere.
func (c *Client) refresh() {
	ctrl := c.controller()
	if ctrl == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	ctrl.Refresh(ctx)
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Hub closed the channel, connection is done
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) publish(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("marshal message", "type", msg.Type, "error", err)
		return
	}
	if !c.enqueue(data) {
		c.hub.dropped.Add(1)
	}
}

func (c *Client) sendError(text string) {
	c.publish(Message{Type: TypeError, Extra: map[string]any{"error": text}})
}

// enqueue never blocks; it reports false when the message was dropped.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) controller() Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctrl
}

func (c *Client) setGroup(groupID string) {
	c.mu.Lock()
	c.groupID = groupID
	c.mu.Unlock()
}
