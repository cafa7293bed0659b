package notify

import (
	"context"
	"log/slog"
	"sync"
)

type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Sink delivers title/body alerts to one device. Show is a no-op unless
// permission has been granted.
type Sink interface {
	Permission() Permission
	RequestPermission(ctx context.Context) (Permission, error)
	Show(ctx context.Context, title, body string) error
}

// LogSink writes alerts to a structured logger. It is used by headless
// commands where there is no device to notify.
type LogSink struct {
	mu      sync.Mutex
	perm    Permission
	grantOn bool
	logger  *slog.Logger
}

// NewLogSink returns a sink that grants permission on request when grant is true.
func NewLogSink(grant bool, logger *slog.Logger) *LogSink {
	return &LogSink{perm: PermissionDefault, grantOn: grant, logger: logger}
}

func (s *LogSink) Permission() Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perm
}

func (s *LogSink) RequestPermission(ctx context.Context) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.perm == PermissionDefault {
		if s.grantOn {
			s.perm = PermissionGranted
		} else {
			s.perm = PermissionDenied
		}
	}
	return s.perm, nil
}

func (s *LogSink) Show(ctx context.Context, title, body string) error {
	if s.Permission() != PermissionGranted {
		return nil
	}
	s.logger.InfoContext(ctx, "notification", "title", title, "body", body)
	return nil
}
