package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/mindthecat/internal/auth"
	"github.com/dukerupert/mindthecat/internal/mute"
)

func TestMuteHandler(t *testing.T) {
	devices := map[string]*mute.MemoryPreferences{
		"phone":  mute.NewMemoryPreferences(),
		"laptop": mute.NewMemoryPreferences(),
	}
	h := NewMuteHandler(func(id string) mute.Preferences { return devices[id] }, slog.Default())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/groups/{gid}/chores/{id}/mute", h.Get)
	mux.HandleFunc("PUT /api/groups/{gid}/chores/{id}/mute", h.Set)
	mux.HandleFunc("POST /api/groups/{gid}/chores/{id}/mute/toggle", h.Toggle)

	call := func(device, method, path, body string) muteResponse {
		t.Helper()
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: "u-1", DeviceID: device}))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s %s status = %d, body %s", method, path, rec.Code, rec.Body.String())
		}
		var got muteResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return got
	}

	path := "/api/groups/g-1/chores/c-1/mute"

	if got := call("phone", http.MethodGet, path, ""); got.Muted {
		t.Error("chore muted before any write")
	}
	if got := call("phone", http.MethodPut, path, `{"muted":true}`); !got.Muted {
		t.Error("Set returned muted = false")
	}
	if got := call("phone", http.MethodGet, path, ""); !got.Muted {
		t.Error("mute not persisted on phone")
	}
	if got := call("laptop", http.MethodGet, path, ""); got.Muted {
		t.Error("mute leaked to another device")
	}
	if got := call("phone", http.MethodPost, path+"/toggle", ""); got.Muted {
		t.Error("toggle did not unmute")
	}
}

func TestMuteHandlerMissingField(t *testing.T) {
	h := NewMuteHandler(func(string) mute.Preferences { return mute.NewMemoryPreferences() }, slog.Default())
	req := httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	h.Set(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
