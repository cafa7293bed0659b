package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/mindthecat/internal/auth"
	"github.com/dukerupert/mindthecat/internal/model"
	"github.com/dukerupert/mindthecat/internal/tracker"
	"github.com/dukerupert/mindthecat/internal/websocket"
)

// GroupStore is the subset of store.GroupStore the handlers use.
type GroupStore interface {
	Create(ctx context.Context, name, creatorID string) (*model.Group, error)
	Get(ctx context.Context, id string) (*model.Group, error)
	AddMember(ctx context.Context, groupID, userID string, isAdmin bool) error
	RemoveMember(ctx context.Context, groupID, userID string) error
}

// UserLookup resolves user ids.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type GroupHandler struct {
	svc    *tracker.Service
	groups GroupStore
	users  UserLookup
	hub    Broadcaster
	logger *slog.Logger
	now    func() time.Time
}

func NewGroupHandler(svc *tracker.Service, groups GroupStore, users UserLookup, hub Broadcaster, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{svc: svc, groups: groups, users: users, hub: hub, logger: logger, now: time.Now}
}

// List handles GET /api/groups. Each card carries the group's aggregate stats.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	cards, err := h.svc.Cards(r.Context(), auth.UserID(r.Context()), h.now())
	if err != nil {
		h.logger.Error("list groups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}
	if cards == nil {
		cards = []tracker.Card{}
	}
	writeJSON(w, http.StatusOK, cards)
}

// Create handles POST /api/groups. The caller becomes the group's admin.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	g, err := h.groups.Create(r.Context(), req.Name, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("create group", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create group")
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// Get handles GET /api/groups/{gid}
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// AddMember handles POST /api/groups/{gid}/members
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string `json:"user_id"`
		IsAdmin bool   `json:"is_admin"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	g, ok := h.load(w, r)
	if !ok {
		return
	}

	u, err := h.users.GetByID(r.Context(), req.UserID)
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := h.groups.AddMember(r.Context(), g.ID, u.ID, req.IsAdmin); err != nil {
		h.logger.Error("add member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}

	h.broadcast(g.ID, "member", "added", u.ID)

	g, ok = h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// RemoveMember handles DELETE /api/groups/{gid}/members/{uid}
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	gid, uid := r.PathValue("gid"), r.PathValue("uid")
	if err := h.groups.RemoveMember(r.Context(), gid, uid); err != nil {
		h.logger.Error("remove member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}

	h.broadcast(gid, "member", "removed", uid)
	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) broadcast(groupID, entity, action, id string) {
	if h.hub != nil {
		h.hub.BroadcastGroup(groupID, websocket.NewMessage(entity, action, id, groupID, nil))
	}
}

func (h *GroupHandler) load(w http.ResponseWriter, r *http.Request) (*model.Group, bool) {
	g, err := h.groups.Get(r.Context(), r.PathValue("gid"))
	if err != nil {
		h.logger.Error("get group", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get group")
		return nil, false
	}
	if g == nil {
		writeError(w, http.StatusNotFound, "group not found")
		return nil, false
	}
	return g, true
}
