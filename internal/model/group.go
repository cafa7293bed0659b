package model

import "time"

type Group struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Members   []GroupMember `json:"members,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type GroupMember struct {
	GroupID     string    `json:"group_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsAdmin reports whether userID holds the admin flag in g. The flag is
// advisory and only drives what the UI offers.
func (g Group) IsAdmin(userID string) bool {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m.IsAdmin
		}
	}
	return false
}
