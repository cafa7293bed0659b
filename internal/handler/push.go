package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/mindthecat/internal/auth"
	"github.com/dukerupert/mindthecat/internal/model"
	"github.com/dukerupert/mindthecat/internal/push"
)

// PushService sends notifications and exposes the VAPID key.
// *push.Service implements it.
type PushService interface {
	push.Sender
	VAPIDPublicKey() string
	Enabled() bool
}

// PushStore is the subset of store.PushStore the handlers use.
type PushStore interface {
	CreateSubscription(ctx context.Context, userID, deviceID, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error)
	ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, id int64, userID string) error
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

type PushHandler struct {
	pushStore PushStore
	service   PushService
	logger    *slog.Logger
}

func NewPushHandler(ps PushStore, svc PushService, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, service: svc, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	deviceID := auth.DeviceID(r.Context())

	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh, and auth are required")
		return
	}

	sub, err := h.pushStore.CreateSubscription(r.Context(), userID, deviceID, req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.pushStore.DeleteSubscription(r.Context(), id, auth.UserID(r.Context())); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"public_key": h.service.VAPIDPublicKey(),
		"enabled":    h.service.Enabled(),
	})
}

// TestNotification handles POST /api/push/test
func (h *PushHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	if !h.service.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}

	subs, err := h.pushStore.ListByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}

	payload := push.Payload{
		Title: "Test Notification",
		Body:  "Push notifications are working!",
		URL:   "/",
		Tag:   "test",
	}

	sent := 0
	for _, sub := range subs {
		err := h.service.Send(r.Context(), &sub, payload)
		if errors.Is(err, push.ErrExpired) {
			h.pushStore.DeleteByEndpoint(r.Context(), sub.Endpoint)
			continue
		}
		if err != nil {
			h.logger.Error("test push send", "error", err)
			continue
		}
		sent++
	}

	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
