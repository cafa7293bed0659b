package model

import "time"

type IntervalUnit string

const (
	UnitMinutes IntervalUnit = "minutes"
	UnitHours   IntervalUnit = "hours"
	UnitDays    IntervalUnit = "days"
)

// Valid reports whether u is one of the supported recurrence units.
func (u IntervalUnit) Valid() bool {
	switch u {
	case UnitMinutes, UnitHours, UnitDays:
		return true
	default:
		return false
	}
}

// Identity is a snapshot of a user at the time of an action.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type HistoryKind string

const (
	HistoryCompleted HistoryKind = "completed"
	HistoryEdited    HistoryKind = "edited"
)

// FieldChange holds the before and after values of one edited field.
type FieldChange struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

type HistoryEntry struct {
	ID      int64                  `json:"id"`
	ChoreID string                 `json:"chore_id"`
	Kind    HistoryKind            `json:"kind"`
	By      Identity               `json:"by"`
	Changes map[string]FieldChange `json:"changes,omitempty"`
	At      time.Time              `json:"at"`
}

type Chore struct {
	ID            string         `json:"id"`
	GroupID       string         `json:"group_id"`
	Name          string         `json:"name"`
	IntervalValue *int           `json:"interval_value"`
	IntervalUnit  IntervalUnit   `json:"interval_unit,omitempty"`
	LastDone      *time.Time     `json:"last_done"`
	DoneBy        *Identity      `json:"done_by"`
	History       []HistoryEntry `json:"history,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewChore holds the fields accepted when creating a chore.
type NewChore struct {
	Name          string
	IntervalValue *int
	IntervalUnit  IntervalUnit
}

// ChoreUpdate is a partial update. Nil fields are left untouched and
// AppendHistory entries are added after any existing history.
type ChoreUpdate struct {
	Name          *string
	IntervalValue **int
	IntervalUnit  *IntervalUnit
	LastDone      *time.Time
	DoneBy        *Identity
	AppendHistory []HistoryEntry
}
