package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/mindthecat/internal/auth"
	"github.com/dukerupert/mindthecat/internal/model"
)

// UserStore is the subset of store.UserStore the handlers use.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	Rename(ctx context.Context, id, displayName string) error
}

type UserHandler struct {
	users  UserStore
	logger *slog.Logger
}

func NewUserHandler(users UserStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type meResponse struct {
	*model.User
	DeviceID string `json:"device_id,omitempty"`
}

// Me handles GET /api/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByID(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: u, DeviceID: auth.DeviceID(r.Context())})
}

// Rename handles PUT /api/me. Earlier history entries keep the name the
// user had when they acted.
func (h *UserHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "display_name is required")
		return
	}

	userID := auth.UserID(r.Context())
	if err := h.users.Rename(r.Context(), userID, req.DisplayName); err != nil {
		h.logger.Error("rename user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to rename user")
		return
	}
	h.Me(w, r)
}
