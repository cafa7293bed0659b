package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/mindthecat/internal/store"
	"github.com/dukerupert/mindthecat/internal/tracker"
	"github.com/dukerupert/mindthecat/internal/websocket"
)

// Broadcaster fans change messages out to connected clients.
// *websocket.Hub implements it.
type Broadcaster interface {
	BroadcastGroup(groupID string, msg websocket.Message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// writeServiceError maps tracker and store errors to a status code.
// Anything unrecognised is logged and reported as "failed to <action>".
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, action string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "chore not found")
	case errors.Is(err, tracker.ErrNameRequired),
		errors.Is(err, tracker.ErrIntervalPartial),
		errors.Is(err, tracker.ErrIntervalValue),
		errors.Is(err, tracker.ErrIntervalUnit):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error(action, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to "+action)
	}
}
