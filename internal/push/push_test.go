package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/mindthecat/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	if pub == "" {
		t.Error("expected non-empty public key")
	}
	if priv == "" {
		t.Error("expected non-empty private key")
	}

	// Public key should be base64url-encoded, 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	// Generate again, should be different
	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

// browserSubscription returns a subscription with real client keys so the
// payload can be encrypted.
func browserSubscription(t *testing.T, endpoint string) *model.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	auth := make([]byte, 16)
	rand.Read(auth)
	return &model.PushSubscription{
		Endpoint:  endpoint,
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(auth),
	}
}

func testService(t *testing.T) *Service {
	t.Helper()
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	return NewService(Config{VAPIDPublicKey: pub, VAPIDPrivateKey: priv})
}

func TestSendStatus(t *testing.T) {
	cases := []struct {
		status  int
		wantErr error
		ok      bool
	}{
		{http.StatusCreated, nil, true},
		{http.StatusGone, ErrExpired, false},
		{http.StatusNotFound, ErrExpired, false},
		{http.StatusTooManyRequests, nil, false},
	}

	for _, tc := range cases {
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(tc.status)
		}))

		err := testService(t).Send(context.Background(), browserSubscription(t, srv.URL), Payload{Title: "t", Body: "b"})
		srv.Close()

		switch {
		case tc.ok && err != nil:
			t.Errorf("status %d: err = %v, want nil", tc.status, err)
		case !tc.ok && err == nil:
			t.Errorf("status %d: expected error", tc.status)
		case tc.wantErr != nil && !errors.Is(err, tc.wantErr):
			t.Errorf("status %d: err = %v, want %v", tc.status, err, tc.wantErr)
		}
		if gotAuth == "" {
			t.Errorf("status %d: missing VAPID authorization header", tc.status)
		}
	}
}

func TestServiceEnabled(t *testing.T) {
	if NewService(Config{}).Enabled() {
		t.Error("service without keys reports enabled")
	}
	if !testService(t).Enabled() {
		t.Error("service with keys reports disabled")
	}
}
