package model

import "time"

type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	TokenHash   string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, DisplayName: u.DisplayName}
}
