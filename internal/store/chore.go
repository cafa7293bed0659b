package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/mindthecat/internal/model"
)

type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

const choreCols = `id, group_id, name, interval_value, interval_unit, last_done, done_by_id, done_by_name, created_at, updated_at`

func scanChore(sc scanner) (*model.Chore, error) {
	var c model.Chore
	var value sql.NullInt64
	var lastDone sql.NullTime
	var byID, byName sql.NullString
	err := sc.Scan(&c.ID, &c.GroupID, &c.Name, &value, &c.IntervalUnit, &lastDone, &byID, &byName, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if value.Valid {
		v := int(value.Int64)
		c.IntervalValue = &v
	}
	if lastDone.Valid {
		t := lastDone.Time
		c.LastDone = &t
	}
	if byID.Valid {
		c.DoneBy = &model.Identity{ID: byID.String, DisplayName: byName.String}
	}
	return &c, nil
}

// Get returns the chore with its history, or nil if it does not exist.
func (s *ChoreStore) Get(ctx context.Context, groupID, choreID string) (*model.Chore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+choreCols+` FROM chores WHERE id = ? AND group_id = ?`, choreID, groupID)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}

	c.History, err = s.History(ctx, choreID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns the group's chores in creation order. History is left nil, so
// list projections omit it; use Get or History for the full log.
func (s *ChoreStore) List(ctx context.Context, groupID string) ([]model.Chore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+choreCols+` FROM chores WHERE group_id = ? ORDER BY created_at ASC, rowid ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

// Create inserts a never-done chore and returns its id.
func (s *ChoreStore) Create(ctx context.Context, groupID string, nc model.NewChore) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chores (id, group_id, name, interval_value, interval_unit, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, groupID, nc.Name, nullInt(nc.IntervalValue), string(nc.IntervalUnit), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert chore: %w", err)
	}
	return id, nil
}

// Update applies the non-nil fields of u and appends its history entries in
// one transaction. Fields not named in u keep their values.
func (s *ChoreStore) Update(ctx context.Context, groupID, choreID string, u model.ChoreUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.IntervalValue != nil {
		sets = append(sets, "interval_value = ?")
		args = append(args, nullInt(*u.IntervalValue))
	}
	if u.IntervalUnit != nil {
		sets = append(sets, "interval_unit = ?")
		args = append(args, string(*u.IntervalUnit))
	}
	if u.LastDone != nil {
		sets = append(sets, "last_done = ?")
		args = append(args, u.LastDone.UTC())
	}
	if u.DoneBy != nil {
		sets = append(sets, "done_by_id = ?", "done_by_name = ?")
		args = append(args, u.DoneBy.ID, u.DoneBy.DisplayName)
	}
	args = append(args, choreID, groupID)

	result, err := tx.ExecContext(ctx,
		`UPDATE chores SET `+strings.Join(sets, ", ")+` WHERE id = ? AND group_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update chore: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	for _, h := range u.AppendHistory {
		if err := insertHistory(ctx, tx, choreID, h); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *ChoreStore) Delete(ctx context.Context, groupID, choreID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chores WHERE id = ? AND group_id = ?`, choreID, groupID)
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// History returns the chore's history oldest first.
func (s *ChoreStore) History(ctx context.Context, choreID string) ([]model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chore_id, kind, by_id, by_name, changes, at FROM chore_history WHERE chore_id = ? ORDER BY id ASC`,
		choreID)
	if err != nil {
		return nil, fmt.Errorf("list chore history: %w", err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		var h model.HistoryEntry
		var changes string
		if err := rows.Scan(&h.ID, &h.ChoreID, &h.Kind, &h.By.ID, &h.By.DisplayName, &changes, &h.At); err != nil {
			return nil, fmt.Errorf("scan chore history: %w", err)
		}
		if changes != "" {
			if err := json.Unmarshal([]byte(changes), &h.Changes); err != nil {
				return nil, fmt.Errorf("decode history changes: %w", err)
			}
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

func insertHistory(ctx context.Context, tx *sql.Tx, choreID string, h model.HistoryEntry) error {
	var changes string
	if len(h.Changes) > 0 {
		b, err := json.Marshal(h.Changes)
		if err != nil {
			return fmt.Errorf("encode history changes: %w", err)
		}
		changes = string(b)
	}
	at := h.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO chore_history (chore_id, kind, by_id, by_name, changes, at) VALUES (?, ?, ?, ?, ?, ?)`,
		choreID, string(h.Kind), h.By.ID, h.By.DisplayName, changes, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert chore history: %w", err)
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
