package auth

import (
	"context"

	"github.com/dukerupert/mindthecat/internal/model"
)

type contextKey struct{}

// AuthContext identifies the caller of a request and the device it came
// from. Device-local state such as mutes is keyed by DeviceID.
type AuthContext struct {
	UserID      string
	DisplayName string
	DeviceID    string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.UserID
}

func DeviceID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.DeviceID
}

// IdentityFrom returns the caller as recorded on chore completions and edits.
func IdentityFrom(ctx context.Context) (model.Identity, bool) {
	ac, ok := FromContext(ctx)
	if !ok || ac.UserID == "" {
		return model.Identity{}, false
	}
	return model.Identity{ID: ac.UserID, DisplayName: ac.DisplayName}, true
}
