package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/mindthecat/internal/auth"
	"github.com/dukerupert/mindthecat/internal/model"
)

// DeviceHeader names the header that carries the caller's device id.
const DeviceHeader = "X-Device-ID"

// Authenticator resolves a bearer token to a user, or nil when it is not
// valid. store.UserStore implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// RequireUser validates the bearer token and populates AuthContext. Browsers
// cannot set headers on websocket upgrades, so the token and device may also
// be passed as the "token" and "device" query parameters.
func RequireUser(users Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			u, err := users.Authenticate(r.Context(), token)
			if err != nil {
				logger.Error("authenticate", "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"internal error"}`))
				return
			}
			if u == nil {
				unauthorized(w)
				return
			}

			device := r.Header.Get(DeviceHeader)
			if device == "" {
				device = r.URL.Query().Get("device")
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{
				UserID:      u.ID,
				DisplayName: u.DisplayName,
				DeviceID:    device,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireDevice rejects requests that do not identify a device.
func RequireDevice(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.DeviceID(r.Context()) == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"` + DeviceHeader + ` header is required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}
