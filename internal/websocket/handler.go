package websocket

import (
	"context"
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/mindthecat/internal/auth"
	"github.com/dukerupert/mindthecat/internal/notify"
	"github.com/dukerupert/mindthecat/internal/session"
)

// Conn is what a session sees of its connection: views are published to it
// and notifications are shown through it.
type Conn interface {
	session.Publisher
	notify.Sink
}

// SessionFactory builds the controller for a new connection.
type SessionFactory func(ctx context.Context, ac auth.AuthContext, conn Conn) Controller

// HandleWebSocket returns an HTTP handler that upgrades connections to WebSocket
// and runs them as Hub clients. The optional "group" query parameter selects
// the group to show first and "notify" carries the browser's current
// notification permission.
func HandleWebSocket(hub *Hub, newSession SessionFactory, members MembershipChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // Allow connections from any origin (LAN clients)
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		clientLogger := logger.With("user_id", ac.UserID, "device_id", ac.DeviceID)
		client := NewClient(hub, conn, ac.UserID, members, clientLogger)
		if p := notify.Permission(r.URL.Query().Get("notify")); p == notify.PermissionGranted || p == notify.PermissionDenied {
			client.SetPermission(p)
		}
		client.Attach(newSession(r.Context(), ac, client))

		clientLogger.Debug("websocket connected")
		client.Run(r.Context(), r.URL.Query().Get("group"))
		clientLogger.Debug("websocket disconnected")
	}
}
