package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/mindthecat/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const subCols = `id, user_id, device_id, endpoint, p256dh_key, auth_key, device_name, created_at`

func scanSubscription(sc scanner) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := sc.Scan(&sub.ID, &sub.UserID, &sub.DeviceID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateSubscription stores a browser push subscription for a device. A
// known endpoint is updated in place.
func (s *PushStore) CreateSubscription(ctx context.Context, userID, deviceID, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (user_id, device_id, endpoint, p256dh_key, auth_key, device_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET user_id = excluded.user_id, device_id = excluded.device_id,
		   p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key, device_name = excluded.device_name`,
		userID, deviceID, endpoint, p256dh, auth, deviceName, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	return s.getByEndpoint(ctx, endpoint)
}

func (s *PushStore) GetByID(ctx context.Context, id int64, userID string) (*model.PushSubscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subCols+` FROM push_subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return sub, nil
}

func (s *PushStore) getByEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription by endpoint: %w", err)
	}
	return sub, nil
}

func (s *PushStore) ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subCols+` FROM push_subscriptions WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by user: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (s *PushStore) ListByDevice(ctx context.Context, deviceID string) ([]model.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subCols+` FROM push_subscriptions WHERE device_id = ? ORDER BY id`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by device: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// ListForGroup returns the subscriptions of every member of the group.
func (s *PushStore) ListForGroup(ctx context.Context, groupID string) ([]model.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.user_id, p.device_id, p.endpoint, p.p256dh_key, p.auth_key, p.device_name, p.created_at
		 FROM push_subscriptions p JOIN group_members m ON m.user_id = p.user_id
		 WHERE m.group_id = ? ORDER BY p.device_id, p.id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by group: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (s *PushStore) DeleteSubscription(ctx context.Context, id int64, userID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

// RecordSent records that a notification was sent (for dedup).
func (s *PushStore) RecordSent(ctx context.Context, groupID, deviceID, notifType, refID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sent_notifications (group_id, device_id, notification_type, reference_id, sent_at)
		 VALUES (?, ?, ?, ?, ?)`,
		groupID, deviceID, notifType, refID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record sent notification: %w", err)
	}
	return nil
}

// WasSent checks if a notification was already sent.
func (s *PushStore) WasSent(ctx context.Context, groupID, deviceID, notifType, refID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sent_notifications
		 WHERE group_id = ? AND device_id = ? AND notification_type = ? AND reference_id = ?`,
		groupID, deviceID, notifType, refID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent notification: %w", err)
	}
	return count > 0, nil
}

// CleanupSent deletes sent_notifications older than the given time.
func (s *PushStore) CleanupSent(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sent_notifications WHERE sent_at < ?`, before.UTC())
	if err != nil {
		return fmt.Errorf("cleanup sent notifications: %w", err)
	}
	return nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}
