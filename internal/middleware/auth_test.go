package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/mindthecat/internal/auth"
	"github.com/dukerupert/mindthecat/internal/database"
	"github.com/dukerupert/mindthecat/internal/model"
	"github.com/dukerupert/mindthecat/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupAuthMiddlewareDB(t *testing.T) *store.UserStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewUserStore(db)
}

func TestRequireUserNoToken(t *testing.T) {
	us := setupAuthMiddlewareDB(t)

	handler := RequireUser(us, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireUserBadToken(t *testing.T) {
	us := setupAuthMiddlewareDB(t)
	u, _, _ := us.Create(context.Background(), "Alice")

	handler := RequireUser(us, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	for _, h := range []string{"Bearer " + u.ID + ".wrong", "Basic abc"} {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", h)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%q: status = %d, want %d", h, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestRequireUserValidToken(t *testing.T) {
	us := setupAuthMiddlewareDB(t)
	u, token, _ := us.Create(context.Background(), "Alice")

	var got auth.AuthContext
	handler := RequireUser(us, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(DeviceHeader, "phone")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got.UserID != u.ID || got.DisplayName != "Alice" || got.DeviceID != "phone" {
		t.Errorf("auth context = %+v", got)
	}
}

func TestRequireUserQueryParams(t *testing.T) {
	us := setupAuthMiddlewareDB(t)
	u, token, _ := us.Create(context.Background(), "Alice")

	var got auth.AuthContext
	handler := RequireUser(us, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/ws?token="+token+"&device=laptop", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got.UserID != u.ID || got.DeviceID != "laptop" {
		t.Errorf("auth context = %+v", got)
	}
}

type brokenAuth struct{}

func (brokenAuth) Authenticate(context.Context, string) (*model.User, error) {
	return nil, errors.New("db down")
}

func TestRequireUserStoreError(t *testing.T) {
	handler := RequireUser(brokenAuth{}, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer a.b")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestRequireDevice(t *testing.T) {
	handler := RequireDevice(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("no device: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	req = req.WithContext(auth.WithAuth(context.Background(), auth.AuthContext{UserID: "u1", DeviceID: "phone"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("with device: status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestRequestLoggerKeepsStatus(t *testing.T) {
	handler := RequestLogger(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}
