package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/mindthecat/internal/auth"
	"github.com/dukerupert/mindthecat/internal/config"
	"github.com/dukerupert/mindthecat/internal/handler"
	"github.com/dukerupert/mindthecat/internal/middleware"
	"github.com/dukerupert/mindthecat/internal/mute"
	"github.com/dukerupert/mindthecat/internal/notify"
	"github.com/dukerupert/mindthecat/internal/push"
	"github.com/dukerupert/mindthecat/internal/refresh"
	"github.com/dukerupert/mindthecat/internal/session"
	"github.com/dukerupert/mindthecat/internal/store"
	"github.com/dukerupert/mindthecat/internal/tracker"
	ws "github.com/dukerupert/mindthecat/internal/websocket"
)

const (
	writeLimit  = 60
	writeWindow = time.Minute
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	tracker     *tracker.Service
	choreH      *handler.ChoreHandler
	groupH      *handler.GroupHandler
	muteH       *handler.MuteHandler
	pushH       *handler.PushHandler
	userH       *handler.UserHandler
	userStore   *store.UserStore
	groupStore  *store.GroupStore
	prefStore   *store.PreferenceStore
	pushStore   *store.PushStore
	rateLimiter *middleware.RateLimiter
	pushService *push.Service
	sweeper     *push.Sweeper
	refreshOpts refresh.Options
	logger      *slog.Logger
}

func New(db *sql.DB, cfg config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	choreStore := store.NewChoreStore(db)
	groupStore := store.NewGroupStore(db)
	userStore := store.NewUserStore(db)
	prefStore := store.NewPreferenceStore(db)
	pushSt := store.NewPushStore(db)

	svc := tracker.NewService(choreStore, groupStore, logger.With("component", "tracker"))

	pushSvc := push.NewService(push.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.VAPIDSubscriber,
	})

	devicePrefs := func(deviceID string) mute.Preferences { return prefStore.Device(deviceID) }

	var sweeper *push.Sweeper
	if pushSvc.Enabled() {
		sweeper = push.NewSweeper(cfg.SweepSchedule, groupStore, choreStore, pushSt, devicePrefs, pushSvc, logger.With("component", "sweeper"))
	}

	return &Server{
		db:          db,
		hub:         hub,
		tracker:     svc,
		choreH:      handler.NewChoreHandler(svc, choreStore, hub, logger.With("component", "chore")),
		groupH:      handler.NewGroupHandler(svc, groupStore, userStore, hub, logger.With("component", "group")),
		muteH:       handler.NewMuteHandler(devicePrefs, logger.With("component", "mute")),
		pushH:       handler.NewPushHandler(pushSt, pushSvc, logger.With("component", "push_handler")),
		userH:       handler.NewUserHandler(userStore, logger.With("component", "user")),
		userStore:   userStore,
		groupStore:  groupStore,
		prefStore:   prefStore,
		pushStore:   pushSt,
		rateLimiter: middleware.NewRateLimiter(),
		pushService: pushSvc,
		sweeper:     sweeper,
		refreshOpts: refresh.Options{ProgressInterval: cfg.ProgressInterval, StatsInterval: cfg.StatsInterval},
		logger:      logger,
	}
}

// Start launches background work: rate limiter cleanup and, when push is
// configured, the overdue sweep. It returns once everything is scheduled.
func (s *Server) Start(ctx context.Context) error {
	s.rateLimiter.StartCleanup(ctx, 5*time.Minute)
	if s.sweeper != nil {
		if err := s.sweeper.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop halts the sweep. In-flight sweeps finish first.
func (s *Server) Stop() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Sweeper returns the overdue sweeper, or nil when push is not configured.
func (s *Server) Sweeper() *push.Sweeper {
	return s.sweeper
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)

	// Protected routes, wrapped with RequireUser middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireUser(s.userStore, s.logger.With("component", "auth"))
	outerMux.Handle("/", authMiddleware(protectedMux))

	// Apply request logging middleware
	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "clients": s.hub.ClientCount()})
}

// limited rate limits writes per user.
func (s *Server) limited(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.ByUserOrIP, writeLimit, writeWindow)(h)
}

// device requires the X-Device-ID header.
func device(h http.HandlerFunc) http.Handler {
	return middleware.RequireDevice(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/me", s.userH.Me)
	mux.Handle("PUT /api/me", s.limited(s.userH.Rename))

	// Group API routes
	mux.HandleFunc("GET /api/groups", s.groupH.List)
	mux.Handle("POST /api/groups", s.limited(s.groupH.Create))
	mux.HandleFunc("GET /api/groups/{gid}", s.groupH.Get)
	mux.Handle("POST /api/groups/{gid}/members", s.limited(s.groupH.AddMember))
	mux.Handle("DELETE /api/groups/{gid}/members/{uid}", s.limited(s.groupH.RemoveMember))

	// Chore API routes
	mux.HandleFunc("GET /api/groups/{gid}/chores", s.choreH.List)
	mux.Handle("POST /api/groups/{gid}/chores", s.limited(s.choreH.Create))
	mux.HandleFunc("GET /api/groups/{gid}/chores/{id}", s.choreH.Get)
	mux.Handle("PUT /api/groups/{gid}/chores/{id}", s.limited(s.choreH.Update))
	mux.Handle("DELETE /api/groups/{gid}/chores/{id}", s.limited(s.choreH.Delete))
	mux.Handle("POST /api/groups/{gid}/chores/{id}/complete", s.limited(s.choreH.Complete))
	mux.HandleFunc("GET /api/groups/{gid}/chores/{id}/history", s.choreH.History)

	// Mutes are per device
	mux.Handle("GET /api/groups/{gid}/chores/{id}/mute", device(s.muteH.Get))
	mux.Handle("PUT /api/groups/{gid}/chores/{id}/mute", device(s.muteH.Set))
	mux.Handle("POST /api/groups/{gid}/chores/{id}/mute/toggle", device(s.muteH.Toggle))

	// Push notification API routes
	mux.Handle("POST /api/push/subscribe", device(s.pushH.Subscribe))
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.Handle("POST /api/push/test", s.limited(s.pushH.TestNotification))

	// WebSocket
	mux.Handle("GET /ws", device(ws.HandleWebSocket(s.hub, s.newSession, s.groupStore, s.logger.With("component", "websocket"))))
}

// newSession builds the per-connection session. Its gate reads the
// connection's device mutes and notifies through the browser.
func (s *Server) newSession(ctx context.Context, ac auth.AuthContext, conn ws.Conn) ws.Controller {
	logger := s.logger.With("component", "session", "user_id", ac.UserID, "device_id", ac.DeviceID)
	gate := notify.NewGate(mute.NewRegistry(s.prefStore.Device(ac.DeviceID)), conn, logger)
	sess := session.New(s.tracker, gate, conn, conn, s.refreshOpts, logger)
	if id, ok := auth.IdentityFrom(ctx); ok {
		sess.UserReady(ctx, id)
	}
	return sess
}
