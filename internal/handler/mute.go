package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/mindthecat/internal/auth"
	"github.com/dukerupert/mindthecat/internal/mute"
)

// DevicePreferences returns the preference store of one device.
type DevicePreferences func(deviceID string) mute.Preferences

// MuteHandler reads and writes per-device mute flags. Mutes only affect
// notifications on the calling device, so nothing is broadcast.
type MuteHandler struct {
	prefs  DevicePreferences
	logger *slog.Logger
}

func NewMuteHandler(prefs DevicePreferences, logger *slog.Logger) *MuteHandler {
	return &MuteHandler{prefs: prefs, logger: logger}
}

type muteResponse struct {
	ChoreID string `json:"chore_id"`
	Muted   bool   `json:"muted"`
}

func (h *MuteHandler) registry(r *http.Request) *mute.Registry {
	return mute.NewRegistry(h.prefs(auth.DeviceID(r.Context())))
}

// Get handles GET /api/groups/{gid}/chores/{id}/mute
func (h *MuteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	muted, err := h.registry(r).IsMuted(id)
	if err != nil {
		h.logger.Error("read mute", "chore_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read mute")
		return
	}
	writeJSON(w, http.StatusOK, muteResponse{ChoreID: id, Muted: muted})
}

// Set handles PUT /api/groups/{gid}/chores/{id}/mute
func (h *MuteHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Muted *bool `json:"muted"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Muted == nil {
		writeError(w, http.StatusBadRequest, "muted is required")
		return
	}

	id := r.PathValue("id")
	if err := h.registry(r).SetMuted(id, *req.Muted); err != nil {
		h.logger.Error("write mute", "chore_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to write mute")
		return
	}
	writeJSON(w, http.StatusOK, muteResponse{ChoreID: id, Muted: *req.Muted})
}

// Toggle handles POST /api/groups/{gid}/chores/{id}/mute/toggle
func (h *MuteHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	muted, err := h.registry(r).Toggle(id)
	if err != nil {
		h.logger.Error("toggle mute", "chore_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to toggle mute")
		return
	}
	writeJSON(w, http.StatusOK, muteResponse{ChoreID: id, Muted: muted})
}
