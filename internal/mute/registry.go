// Package mute keeps per-device suppression flags for overdue notifications.
package mute

import (
	"fmt"
	"strconv"
	"sync"
)

const keyPrefix = "mute-chore-"

// Preferences is a synchronous, device-local string key/value store.
type Preferences interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// Registry reads and writes mute flags through a device's preferences.
type Registry struct {
	prefs Preferences
}

func NewRegistry(prefs Preferences) *Registry {
	return &Registry{prefs: prefs}
}

// Key returns the preference key holding the mute flag for a chore.
func Key(choreID string) string {
	return keyPrefix + choreID
}

// IsMuted reports whether notifications for the chore are suppressed on this
// device. A missing or unparsable value means not muted.
func (r *Registry) IsMuted(choreID string) (bool, error) {
	raw, ok, err := r.prefs.Get(Key(choreID))
	if err != nil {
		return false, fmt.Errorf("get mute flag %q: %w", choreID, err)
	}
	if !ok {
		return false, nil
	}
	muted, err := strconv.ParseBool(raw)
	if err != nil {
		return false, nil
	}
	return muted, nil
}

func (r *Registry) SetMuted(choreID string, muted bool) error {
	if err := r.prefs.Set(Key(choreID), strconv.FormatBool(muted)); err != nil {
		return fmt.Errorf("set mute flag %q: %w", choreID, err)
	}
	return nil
}

// Toggle flips the flag and returns the new state.
func (r *Registry) Toggle(choreID string) (bool, error) {
	muted, err := r.IsMuted(choreID)
	if err != nil {
		return false, err
	}
	if err := r.SetMuted(choreID, !muted); err != nil {
		return false, err
	}
	return !muted, nil
}

// MemoryPreferences is an in-process Preferences used by terminal clients
// without a device database and by tests.
type MemoryPreferences struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{values: make(map[string]string)}
}

func (m *MemoryPreferences) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryPreferences) Set(key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}
