package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/mindthecat/internal/model"
)

type GroupStore struct {
	db *sql.DB
}

func NewGroupStore(db *sql.DB) *GroupStore {
	return &GroupStore{db: db}
}

const groupCols = `id, name, created_at, updated_at`

func scanGroup(sc scanner) (*model.Group, error) {
	var g model.Group
	err := sc.Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Create adds a group with creatorID as its first member and admin.
func (s *GroupStore) Create(ctx context.Context, name, creatorID string) (*model.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO groups (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, name, now, now,
	); err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, is_admin, created_at) VALUES (?, ?, 1, ?)`,
		id, creatorID, now,
	); err != nil {
		return nil, fmt.Errorf("add creator: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit group: %w", err)
	}

	return s.Get(ctx, id)
}

// Get returns the group with its members, or nil if it does not exist.
func (s *GroupStore) Get(ctx context.Context, id string) (*model.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupCols+` FROM groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}

	g.Members, err = s.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListByUser returns every group userID belongs to, ordered by name, with
// members populated.
func (s *GroupStore) ListByUser(ctx context.Context, userID string) ([]model.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.name, g.created_at, g.updated_at
		 FROM groups g JOIN group_members m ON m.group_id = g.id
		 WHERE m.user_id = ? ORDER BY g.name ASC, g.id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups by user: %w", err)
	}

	var groups []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		groups[i].Members, err = s.ListMembers(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// ListIDs returns the id of every group.
func (s *GroupStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list group ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *GroupStore) ListMembers(ctx context.Context, groupID string) ([]model.GroupMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.group_id, m.user_id, u.display_name, m.is_admin, m.created_at
		 FROM group_members m JOIN users u ON u.id = m.user_id
		 WHERE m.group_id = ? ORDER BY m.created_at ASC, u.display_name ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.GroupMember
	for rows.Next() {
		var m model.GroupMember
		var admin int
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.DisplayName, &admin, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.IsAdmin = admin != 0
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddMember adds userID to the group. Adding an existing member updates
// the admin flag.
func (s *GroupStore) AddMember(ctx context.Context, groupID, userID string, isAdmin bool) error {
	var admin int
	if isAdmin {
		admin = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, is_admin, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(group_id, user_id) DO UPDATE SET is_admin = excluded.is_admin`,
		groupID, userID, admin, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *GroupStore) RemoveMember(ctx context.Context, groupID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// IsMember reports whether userID belongs to the group.
func (s *GroupStore) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return count > 0, nil
}

func (s *GroupStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
