package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/mindthecat/internal/model"
)

// PreferenceStore holds per-device key/value settings such as chore mute
// flags. Values never leave the device they belong to.
type PreferenceStore struct {
	db *sql.DB
}

func NewPreferenceStore(db *sql.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

// Get returns the value for key on deviceID. ok is false when unset.
func (s *PreferenceStore) Get(ctx context.Context, deviceID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM device_preferences WHERE device_id = ? AND key = ?`, deviceID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %q: %w", key, err)
	}
	return value, true, nil
}

func (s *PreferenceStore) Set(ctx context.Context, deviceID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_preferences (device_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(device_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		deviceID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set preference %q: %w", key, err)
	}
	return nil
}

func (s *PreferenceStore) ListByDevice(ctx context.Context, deviceID string) ([]model.Preference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT device_id, key, value, updated_at FROM device_preferences WHERE device_id = ? ORDER BY key`,
		deviceID)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	var prefs []model.Preference
	for rows.Next() {
		var p model.Preference
		if err := rows.Scan(&p.DeviceID, &p.Key, &p.Value, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// Device binds the store to one device so it can back a mute registry.
func (s *PreferenceStore) Device(deviceID string) *DevicePreferences {
	return &DevicePreferences{store: s, deviceID: deviceID}
}

// DevicePreferences is the synchronous key/value view of one device's
// preferences.
type DevicePreferences struct {
	store    *PreferenceStore
	deviceID string
}

func (d *DevicePreferences) Get(key string) (string, bool, error) {
	return d.store.Get(context.Background(), d.deviceID, key)
}

func (d *DevicePreferences) Set(key, value string) error {
	return d.store.Set(context.Background(), d.deviceID, key, value)
}
