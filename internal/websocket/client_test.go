package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/mindthecat/internal/auth"
	"github.com/dukerupert/mindthecat/internal/notify"
	"github.com/dukerupert/mindthecat/internal/tracker"
)

type fakeController struct {
	mu       sync.Mutex
	calls    []string
	refreshN int
	closed   bool
	pub      Conn
}

func (f *fakeController) record(s string) {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()
}

func (f *fakeController) SelectGroup(ctx context.Context, groupID string) {
	f.record("select:" + groupID)
	if f.pub != nil {
		f.pub.PublishGroup(ctx, &tracker.GroupView{GroupID: groupID})
	}
}

func (f *fakeController) LeaveGroup() { f.record("leave") }

func (f *fakeController) ShowGroups(ctx context.Context) {
	f.record("groups")
	if f.pub != nil {
		f.pub.PublishCards(ctx, nil)
	}
}

func (f *fakeController) Refresh(ctx context.Context) bool {
	f.mu.Lock()
	f.refreshN++
	f.mu.Unlock()
	return true
}

func (f *fakeController) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeController) refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshN
}

func (f *fakeController) log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type memberSet map[string]bool

func (m memberSet) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	if groupID == "broken" {
		return false, errors.New("db down")
	}
	return m[groupID+"/"+userID], nil
}

func TestHandleDispatch(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	c.userID = "u-1"
	c.members = memberSet{"g-1/u-1": true}
	ctrl := &fakeController{}
	c.Attach(ctrl)
	ctx := context.Background()

	c.handle(ctx, []byte(`{"type":"select_group","group_id":"g-1"}`))
	if got := c.GroupID(); got != "g-1" {
		t.Errorf("GroupID() = %q, want g-1", got)
	}
	c.handle(ctx, []byte(`{"type":"refresh"}`))
	c.handle(ctx, []byte(`{"type":"leave_group"}`))
	if got := c.GroupID(); got != "" {
		t.Errorf("GroupID() after leave = %q, want empty", got)
	}
	c.handle(ctx, []byte(`{"type":"show_groups"}`))

	want := []string{"select:g-1", "leave", "groups"}
	got := ctrl.log()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if ctrl.refreshes() != 1 {
		t.Errorf("refreshes = %d, want 1", ctrl.refreshes())
	}
}

func TestHandleRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"malformed", `{`, "invalid message"},
		{"unknown type", `{"type":"dance"}`, "unknown message type: dance"},
		{"missing group", `{"type":"select_group"}`, "group_id is required"},
		{"not a member", `{"type":"select_group","group_id":"g-2"}`, "not a member of this group"},
		{"membership error", `{"type":"select_group","group_id":"broken"}`, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub(slog.Default())
			c := mockClient(hub)
			c.userID = "u-1"
			c.members = memberSet{"g-1/u-1": true}
			ctrl := &fakeController{}
			c.Attach(ctrl)

			c.handle(context.Background(), []byte(tt.data))

			msg := recv(t, c)
			if msg.Type != TypeError {
				t.Fatalf("Type = %q, want %q", msg.Type, TypeError)
			}
			if msg.Extra["error"] != tt.want {
				t.Errorf("error = %v, want %q", msg.Extra["error"], tt.want)
			}
			if len(ctrl.log()) != 0 {
				t.Errorf("controller called: %v", ctrl.log())
			}
		})
	}
}

func TestHandleWebSocket(t *testing.T) {
	hub := NewHub(slog.Default())
	var (
		mu    sync.Mutex
		ctrls []*fakeController
	)
	factory := func(ctx context.Context, ac auth.AuthContext, conn Conn) Controller {
		f := &fakeController{pub: conn}
		mu.Lock()
		ctrls = append(ctrls, f)
		mu.Unlock()
		return f
	}

	h := HandleWebSocket(hub, factory, memberSet{"g-1/u-1": true}, slog.Default())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithAuth(r.Context(), auth.AuthContext{UserID: "u-1", DeviceID: "d-1"})
		h(w, r.WithContext(ctx))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?group=g-1"
	conn, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"type":"group_view"`) || !strings.Contains(string(data), `"group_id":"g-1"`) {
		t.Errorf("first message = %s, want group_view for g-1", data)
	}

	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	conn.Close(ws.StatusNormalClosure, "")
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	mu.Lock()
	defer mu.Unlock()
	if len(ctrls) != 1 {
		t.Fatalf("sessions created = %d, want 1", len(ctrls))
	}
	waitFor(t, func() bool {
		ctrls[0].mu.Lock()
		defer ctrls[0].mu.Unlock()
		return ctrls[0].closed
	})
}

func TestHandleWebSocketUnauthorized(t *testing.T) {
	h := HandleWebSocket(NewHub(slog.Default()), nil, memberSet{}, slog.Default())
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestClientSink(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	c.Attach(&fakeController{})
	ctx := context.Background()

	if got := c.Permission(); got != notify.PermissionDefault {
		t.Fatalf("Permission() = %q, want default", got)
	}

	// Nothing is shown until the browser reports a grant.
	c.Show(ctx, "Chore Overdue!", "x")
	if len(c.send) != 0 {
		t.Fatal("notification sent without permission")
	}

	perm, err := c.RequestPermission(ctx)
	if err != nil || perm != notify.PermissionDefault {
		t.Errorf("RequestPermission() = %q, %v", perm, err)
	}
	if msg := recv(t, c); msg.Type != TypeRequestPermission {
		t.Errorf("Type = %q, want %q", msg.Type, TypeRequestPermission)
	}

	c.handle(ctx, []byte(`{"type":"permission","permission":"granted"}`))
	if got := c.Permission(); got != notify.PermissionGranted {
		t.Fatalf("Permission() = %q, want granted", got)
	}

	c.Show(ctx, "Chore Overdue!", `The chore "Bins" is overdue in your group.`)
	msg := recv(t, c)
	if msg.Type != TypeNotification || msg.Extra["title"] != "Chore Overdue!" {
		t.Errorf("message = %+v, want notification", msg)
	}

	c.handle(ctx, []byte(`{"type":"permission","permission":"maybe"}`))
	if msg := recv(t, c); msg.Type != TypeError {
		t.Errorf("Type = %q, want error", msg.Type)
	}
}

func TestClientZeroPermissionIsDefault(t *testing.T) {
	c := &Client{hub: NewHub(slog.Default()), send: make(chan []byte, sendBufferSize), logger: slog.Default()}

	if got := c.Permission(); got != notify.PermissionDefault {
		t.Errorf("Permission() = %q, want default", got)
	}
}
