package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/mindthecat/internal/auth"
	"github.com/dukerupert/mindthecat/internal/model"
	"github.com/dukerupert/mindthecat/internal/tracker"
	"github.com/dukerupert/mindthecat/internal/websocket"
)

// ChoreReader loads single chores with their history.
type ChoreReader interface {
	Get(ctx context.Context, groupID, choreID string) (*model.Chore, error)
}

type ChoreHandler struct {
	svc    *tracker.Service
	chores ChoreReader
	hub    Broadcaster
	logger *slog.Logger
	now    func() time.Time
}

func NewChoreHandler(svc *tracker.Service, chores ChoreReader, hub Broadcaster, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{svc: svc, chores: chores, hub: hub, logger: logger, now: time.Now}
}

func (h *ChoreHandler) broadcast(groupID, action, choreID string, extra map[string]any) {
	if h.hub != nil {
		h.hub.BroadcastGroup(groupID, websocket.NewMessage("chore", action, choreID, groupID, extra))
	}
}

type createChoreRequest struct {
	Name          string             `json:"name"`
	IntervalValue *int               `json:"interval_value"`
	IntervalUnit  model.IntervalUnit `json:"interval_unit"`
}

type updateChoreRequest struct {
	Name          *string             `json:"name"`
	IntervalValue *int                `json:"interval_value"`
	IntervalUnit  *model.IntervalUnit `json:"interval_unit"`
	ClearInterval bool                `json:"clear_interval"`
	LastDone      *time.Time          `json:"last_done"`
}

// List handles GET /api/groups/{gid}/chores. The response is the projected
// group view: every chore with its overdue flag and progress, plus stats.
func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GroupView(r.Context(), r.PathValue("gid"), h.now())
	if err != nil {
		writeServiceError(w, h.logger, err, "list chores")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Create handles POST /api/groups/{gid}/chores
func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createChoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	gid := r.PathValue("gid")
	c, err := h.svc.Create(r.Context(), gid, model.NewChore{
		Name:          req.Name,
		IntervalValue: req.IntervalValue,
		IntervalUnit:  req.IntervalUnit,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "create chore")
		return
	}

	h.broadcast(gid, "created", c.ID, map[string]any{"name": c.Name})
	writeJSON(w, http.StatusCreated, h.project(gid, c))
}

// Get handles GET /api/groups/{gid}/chores/{id}
func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	gid := r.PathValue("gid")
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.project(gid, c))
}

// Update handles PUT /api/groups/{gid}/chores/{id}. Only fields present in
// the body are changed and each change is recorded in the history.
func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	who, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req updateChoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	gid, id := r.PathValue("gid"), r.PathValue("id")
	changed, err := h.svc.Edit(r.Context(), gid, id, tracker.Edit{
		Name:          req.Name,
		IntervalValue: req.IntervalValue,
		IntervalUnit:  req.IntervalUnit,
		ClearInterval: req.ClearInterval,
		LastDone:      req.LastDone,
	}, who, h.now())
	if err != nil {
		writeServiceError(w, h.logger, err, "update chore")
		return
	}
	if changed {
		h.broadcast(gid, "updated", id, nil)
	}

	c, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.project(gid, c))
}

// Delete handles DELETE /api/groups/{gid}/chores/{id}
func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	gid, id := r.PathValue("gid"), r.PathValue("id")
	if err := h.svc.Delete(r.Context(), gid, id); err != nil {
		writeServiceError(w, h.logger, err, "delete chore")
		return
	}

	h.broadcast(gid, "deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// Complete handles POST /api/groups/{gid}/chores/{id}/complete
func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	who, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	gid, id := r.PathValue("gid"), r.PathValue("id")
	if err := h.svc.MarkDone(r.Context(), gid, id, who, h.now()); err != nil {
		writeServiceError(w, h.logger, err, "complete chore")
		return
	}

	h.broadcast(gid, "completed", id, map[string]any{"done_by": who.DisplayName})

	c, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.project(gid, c))
}

// History handles GET /api/groups/{gid}/chores/{id}/history
func (h *ChoreHandler) History(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	history := c.History
	if history == nil {
		history = []model.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *ChoreHandler) load(w http.ResponseWriter, r *http.Request) (*model.Chore, bool) {
	c, err := h.chores.Get(r.Context(), r.PathValue("gid"), r.PathValue("id"))
	if err != nil {
		h.logger.Error("get chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get chore")
		return nil, false
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "chore not found")
		return nil, false
	}
	return c, true
}

func (h *ChoreHandler) project(groupID string, c *model.Chore) tracker.ChoreView {
	return tracker.Project(groupID, []model.Chore{*c}, h.now()).Chores[0]
}
