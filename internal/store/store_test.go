package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dukerupert/mindthecat/internal/database"
	"github.com/dukerupert/mindthecat/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedGroup creates a user and a group owned by them.
func seedGroup(t *testing.T, db *sql.DB, name string) (*model.User, *model.Group) {
	t.Helper()
	ctx := context.Background()
	u, _, err := NewUserStore(db).Create(ctx, name+" owner")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	g, err := NewGroupStore(db).Create(ctx, name, u.ID)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	return u, g
}

func intPtr(v int) *int { return &v }
