// Package tracker exposes chore completion, editing and the projected views
// built from the progress pipeline.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/mindthecat/internal/chore"
	"github.com/dukerupert/mindthecat/internal/model"
	"github.com/dukerupert/mindthecat/internal/store"
)

var (
	ErrNameRequired    = errors.New("name is required")
	ErrIntervalPartial = errors.New("interval value and unit must be set together")
	ErrIntervalValue   = errors.New("interval value must be positive")
	ErrIntervalUnit    = errors.New("interval unit must be minutes, hours or days")
)

// ChoreStore is the shared document store for chores.
type ChoreStore interface {
	Get(ctx context.Context, groupID, choreID string) (*model.Chore, error)
	List(ctx context.Context, groupID string) ([]model.Chore, error)
	Update(ctx context.Context, groupID, choreID string, u model.ChoreUpdate) error
	Delete(ctx context.Context, groupID, choreID string) error
	Create(ctx context.Context, groupID string, nc model.NewChore) (string, error)
}

type GroupStore interface {
	ListByUser(ctx context.Context, userID string) ([]model.Group, error)
}

type Service struct {
	chores ChoreStore
	groups GroupStore
	logger *slog.Logger
}

func NewService(chores ChoreStore, groups GroupStore, logger *slog.Logger) *Service {
	return &Service{chores: chores, groups: groups, logger: logger}
}

// ChoreView is one row of a group's chore list.
type ChoreView struct {
	Chore        model.Chore     `json:"chore"`
	Overdue      bool            `json:"overdue"`
	Progress     *chore.Progress `json:"progress,omitempty"`
	LastDoneText string          `json:"last_done_text"`
}

type GroupView struct {
	GroupID     string      `json:"group_id"`
	Chores      []ChoreView `json:"chores"`
	Stats       chore.Stats `json:"stats"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Card is a group summary shown on the group list.
type Card struct {
	Group   model.Group `json:"group"`
	Stats   chore.Stats `json:"stats"`
	IsAdmin bool        `json:"is_admin"`
}

func (s *Service) Overdue(c model.Chore, now time.Time) bool {
	return chore.IsOverdue(c, now)
}

func (s *Service) Progress(c model.Chore, now time.Time) (chore.Progress, bool) {
	return chore.ComputeProgress(c, now)
}

func (s *Service) Aggregate(chores []model.Chore, now time.Time) chore.Stats {
	return chore.Aggregate(chores, now)
}

// Chores returns the group's chores without projecting them.
func (s *Service) Chores(ctx context.Context, groupID string) ([]model.Chore, error) {
	chores, err := s.chores.List(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	return chores, nil
}

// GroupView runs the full pipeline over one group's chores.
func (s *Service) GroupView(ctx context.Context, groupID string, now time.Time) (*GroupView, error) {
	chores, err := s.Chores(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return Project(groupID, chores, now), nil
}

// Project builds a GroupView from an already loaded snapshot.
func Project(groupID string, chores []model.Chore, now time.Time) *GroupView {
	view := &GroupView{
		GroupID:     groupID,
		Chores:      make([]ChoreView, 0, len(chores)),
		Stats:       chore.Aggregate(chores, now),
		GeneratedAt: now,
	}
	for _, c := range chores {
		cv := ChoreView{
			Chore:        c,
			Overdue:      chore.IsOverdue(c, now),
			LastDoneText: "Never",
		}
		if p, ok := chore.ComputeProgress(c, now); ok {
			cv.Progress = &p
		}
		if c.LastDone != nil {
			cv.LastDoneText = chore.FormatLastDone(*c.LastDone, now)
		}
		view.Chores = append(view.Chores, cv)
	}
	return view
}

// Cards returns a stats card for every group userID belongs to. A group
// whose chores fail to load is logged and shown with empty stats.
func (s *Service) Cards(ctx context.Context, userID string, now time.Time) ([]Card, error) {
	groups, err := s.groups.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	cards := make([]Card, 0, len(groups))
	for _, g := range groups {
		card := Card{Group: g, IsAdmin: g.IsAdmin(userID)}
		chores, err := s.chores.List(ctx, g.ID)
		if err != nil {
			s.logger.Error("load chores for card", "group_id", g.ID, "error", err)
		} else {
			card.Stats = chore.Aggregate(chores, now)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// Create validates and stores a new chore.
func (s *Service) Create(ctx context.Context, groupID string, nc model.NewChore) (*model.Chore, error) {
	nc.Name = strings.TrimSpace(nc.Name)
	if nc.Name == "" {
		return nil, ErrNameRequired
	}
	if err := ValidateInterval(nc.IntervalValue, nc.IntervalUnit); err != nil {
		return nil, err
	}

	id, err := s.chores.Create(ctx, groupID, nc)
	if err != nil {
		return nil, fmt.Errorf("create chore: %w", err)
	}
	c, err := s.chores.Get(ctx, groupID, id)
	if err != nil {
		return nil, fmt.Errorf("get created chore: %w", err)
	}
	return c, nil
}

// MarkDone stamps the chore as completed by who at now and records it in
// the history.
func (s *Service) MarkDone(ctx context.Context, groupID, choreID string, who model.Identity, now time.Time) error {
	u := model.ChoreUpdate{
		LastDone: &now,
		DoneBy:   &who,
		AppendHistory: []model.HistoryEntry{{
			ChoreID: choreID,
			Kind:    model.HistoryCompleted,
			By:      who,
			At:      now,
		}},
	}
	if err := s.chores.Update(ctx, groupID, choreID, u); err != nil {
		return fmt.Errorf("mark chore done: %w", err)
	}
	return nil
}

// Edit describes the fields a user may change. Nil fields are left alone;
// ClearInterval removes the recurrence.
type Edit struct {
	Name          *string
	IntervalValue *int
	IntervalUnit  *model.IntervalUnit
	ClearInterval bool
	LastDone      *time.Time
}

// Edit applies e to the chore and appends an edited entry listing every
// field whose value changed. It returns false when nothing changed.
func (s *Service) Edit(ctx context.Context, groupID, choreID string, e Edit, who model.Identity, now time.Time) (bool, error) {
	cur, err := s.chores.Get(ctx, groupID, choreID)
	if err != nil {
		return false, fmt.Errorf("get chore: %w", err)
	}
	if cur == nil {
		return false, fmt.Errorf("get chore: %w", store.ErrNotFound)
	}

	var u model.ChoreUpdate
	changes := map[string]model.FieldChange{}

	if e.Name != nil {
		name := strings.TrimSpace(*e.Name)
		if name == "" {
			return false, ErrNameRequired
		}
		if name != cur.Name {
			u.Name = &name
			changes["name"] = model.FieldChange{Before: cur.Name, After: name}
		}
	}

	value, unit := cur.IntervalValue, cur.IntervalUnit
	switch {
	case e.ClearInterval:
		value, unit = nil, ""
	case e.IntervalValue != nil || e.IntervalUnit != nil:
		if e.IntervalValue != nil {
			v := *e.IntervalValue
			value = &v
		}
		if e.IntervalUnit != nil {
			unit = *e.IntervalUnit
		}
	}
	if err := ValidateInterval(value, unit); err != nil {
		return false, err
	}
	if before, after := intervalText(cur.IntervalValue, cur.IntervalUnit), intervalText(value, unit); before != after {
		u.IntervalValue = &value
		u.IntervalUnit = &unit
		changes["interval"] = model.FieldChange{Before: before, After: after}
	}

	if e.LastDone != nil && (cur.LastDone == nil || !cur.LastDone.Equal(*e.LastDone)) {
		ld := *e.LastDone
		u.LastDone = &ld
		changes["last_done"] = model.FieldChange{Before: timeText(cur.LastDone), After: timeText(&ld)}
	}

	if len(changes) == 0 {
		return false, nil
	}
	u.AppendHistory = []model.HistoryEntry{{
		ChoreID: choreID,
		Kind:    model.HistoryEdited,
		By:      who,
		Changes: changes,
		At:      now,
	}}

	if err := s.chores.Update(ctx, groupID, choreID, u); err != nil {
		return false, fmt.Errorf("update chore: %w", err)
	}
	return true, nil
}

func (s *Service) Delete(ctx context.Context, groupID, choreID string) error {
	if err := s.chores.Delete(ctx, groupID, choreID); err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	return nil
}

// ValidateInterval checks that value and unit are either both absent or
// describe a positive interval in a known unit.
func ValidateInterval(value *int, unit model.IntervalUnit) error {
	switch {
	case value == nil && unit == "":
		return nil
	case value == nil || unit == "":
		return ErrIntervalPartial
	case *value <= 0:
		return ErrIntervalValue
	case !unit.Valid():
		return ErrIntervalUnit
	}
	return nil
}

func intervalText(value *int, unit model.IntervalUnit) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value) + " " + string(unit)
}

func timeText(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
