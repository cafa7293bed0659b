package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/mindthecat/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userCols = `id, display_name, token_hash, created_at, updated_at`

func scanUser(sc scanner) (*model.User, error) {
	var u model.User
	err := sc.Scan(&u.ID, &u.DisplayName, &u.TokenHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create adds a user and returns the bearer token that identifies them. The
// token has the form "<user id>.<secret>"; only a bcrypt hash of the secret
// is stored, so the token cannot be recovered later.
func (s *UserStore) Create(ctx context.Context, displayName string) (*model.User, string, error) {
	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash token: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, token_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, displayName, string(hash), now, now,
	)
	if err != nil {
		return nil, "", fmt.Errorf("insert user: %w", err)
	}

	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return u, id + "." + secret, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Authenticate resolves a bearer token to its user. It returns nil, nil when
// the token is malformed, unknown or does not match.
func (s *UserStore) Authenticate(ctx context.Context, token string) (*model.User, error) {
	id, secret, ok := strings.Cut(token, ".")
	if !ok || id == "" || secret == "" {
		return nil, nil
	}

	u, err := s.GetByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.TokenHash), []byte(secret)); err != nil {
		return nil, nil
	}
	return u, nil
}

func (s *UserStore) Rename(ctx context.Context, id, displayName string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET display_name = ?, updated_at = ? WHERE id = ?`,
		displayName, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("rename user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
