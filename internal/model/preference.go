package model

import "time"

// Preference is a device-local key/value pair. Preferences are never shared
// between devices of the same user.
type Preference struct {
	DeviceID  string    `json:"device_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
