// Package store persists users, groups, chores, device preferences and push
// subscriptions in SQLite.
package store

import "errors"

// ErrNotFound is returned by writes that target a row that does not exist.
// Lookups return a nil value and a nil error instead.
var ErrNotFound = errors.New("not found")

type scanner interface {
	Scan(...any) error
}
