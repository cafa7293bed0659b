package store

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestUserCreate(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	ctx := context.Background()

	u, token, err := us.Create(ctx, "Alice")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.DisplayName != "Alice" {
		t.Errorf("display name = %q, want %q", u.DisplayName, "Alice")
	}
	if u.ID == "" {
		t.Error("expected non-empty ID")
	}
	if !strings.HasPrefix(token, u.ID+".") {
		t.Errorf("token %q does not start with user id", token)
	}
	if strings.Contains(u.TokenHash, strings.TrimPrefix(token, u.ID+".")) {
		t.Error("token secret stored in plain text")
	}
}

func TestUserAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	ctx := context.Background()
	u, token, _ := us.Create(ctx, "Alice")

	got, err := us.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Fatalf("user = %v, want %s", got, u.ID)
	}

	for _, bad := range []string{"", "garbage", u.ID + ".wrong", "unknown.secret", u.ID + "."} {
		got, err := us.Authenticate(ctx, bad)
		if err != nil {
			t.Errorf("authenticate(%q): %v", bad, err)
		}
		if got != nil {
			t.Errorf("authenticate(%q) = %v, want nil", bad, got.ID)
		}
	}
}

func TestUserRename(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	ctx := context.Background()
	u, _, _ := us.Create(ctx, "Alice")

	if err := us.Rename(ctx, u.ID, "Alicia"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	got, _ := us.GetByID(ctx, u.ID)
	if got.DisplayName != "Alicia" {
		t.Errorf("display name = %q, want %q", got.DisplayName, "Alicia")
	}
	if err := us.Rename(ctx, "nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUserGetMissing(t *testing.T) {
	db := setupTestDB(t)
	u, err := NewUserStore(db).GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u != nil {
		t.Error("expected nil for missing user")
	}
}
