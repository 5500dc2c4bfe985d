package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLiteStore implements Store over a modernc.org/sqlite handle owned by the caller.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed account store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("identity: nil db")
	}
	return &SQLiteStore{db: db}, nil
}

// GetAccount implements Store.
func (s *SQLiteStore) GetAccount(ctx context.Context, id int64) (Account, error) {
	a, err := s.GetAccountAuth(ctx, id)
	if err != nil {
		return Account{}, err
	}
	return a.Account, nil
}

// GetAccountAuth implements Store.
func (s *SQLiteStore) GetAccountAuth(ctx context.Context, id int64) (AccountAuth, error) {
	const op = "identity.GetAccountAuth"

	var out AccountAuth
	err := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.username, a.password_digest, a.state, a.role_id, r.name,
		       a.created_at, a.updated_at
		FROM accounts a
		JOIN roles r ON r.id = a.role_id
		WHERE a.id = ?`,
		id,
	).Scan(
		&out.ID, &out.Username, &out.PasswordDigest, &out.State, &out.RoleID, &out.RoleName,
		&out.CreatedAt, &out.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return AccountAuth{}, notFound(op, id)
	}
	if err != nil {
		return AccountAuth{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// UpdatePasswordDigest implements Store.
func (s *SQLiteStore) UpdatePasswordDigest(ctx context.Context, id int64, digest string, now time.Time) error {
	const op = "identity.UpdatePasswordDigest"

	if strings.TrimSpace(digest) == "" {
		return invalid(op, "empty digest")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET password_digest = ?, updated_at = ? WHERE id = ?`,
		digest, now.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return notFound(op, id)
	}
	return nil
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
