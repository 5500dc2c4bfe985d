package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore implements Store over a database/sql handle opened with the
// modernc.org/sqlite driver. The handle is owned by the caller.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed session store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("session: nil db")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteSessionColumns = `id, user_id, token_hash, expires_at, created_by_ip, revoked_at,
	revoked_by_ip, replaced_by_token_hash, is_active, created_at, updated_at`

// Create inserts a new active session.
func (s *SQLiteStore) Create(ctx context.Context, in NewSession) (Session, error) {
	out := Session{
		ID:          ulid.Make().String(),
		UserID:      in.UserID,
		TokenHash:   in.TokenHash,
		ExpiresAt:   in.ExpiresAt.UTC(),
		CreatedByIP: in.CreatedByIP,
		IsActive:    true,
		CreatedAt:   in.CreatedAt.UTC(),
		UpdatedAt:   in.CreatedAt.UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (
			id, user_id, token_hash, expires_at, created_by_ip,
			is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		out.ID, out.UserID, out.TokenHash, out.ExpiresAt, out.CreatedByIP, out.CreatedAt, out.UpdatedAt,
	)
	if err != nil {
		if sqliteIsUniqueViolation(err) {
			return Session{}, ErrDuplicateDigest
		}
		return Session{}, fmt.Errorf("session create: %w", err)
	}
	return out, nil
}

// FindActive loads the active session for (userID, tokenHash).
func (s *SQLiteStore) FindActive(ctx context.Context, userID int64, tokenHash string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteSessionColumns+`
		FROM refresh_sessions
		WHERE user_id = ? AND token_hash = ? AND is_active = 1`,
		userID, tokenHash,
	)

	out, err := scanSQLiteSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("session find active: %w", err)
	}
	return out, nil
}

// MarkRevoked flips an active session to revoked.
// SQLite serializes writers, so the is_active predicate is a compare-and-set.
func (s *SQLiteStore) MarkRevoked(ctx context.Context, r Revocation) error {
	at := r.RevokedAt.UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE refresh_sessions
		SET is_active = 0,
			revoked_at = ?,
			revoked_by_ip = ?,
			replaced_by_token_hash = ?,
			updated_at = ?
		WHERE id = ? AND is_active = 1`,
		at, r.RevokedByIP, r.ReplacedByTokenHash, at, r.SessionID,
	)
	if err != nil {
		return fmt.Errorf("session revoke: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session revoke: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// List returns every session, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteSessionColumns+`
		FROM refresh_sessions
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("session list: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		row, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, fmt.Errorf("session list scan: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Delete removes one session.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteAll removes every session.
func (s *SQLiteStore) DeleteAll(ctx context.Context) (int64, error) {
	return s.deleteWhere(ctx, `DELETE FROM refresh_sessions`)
}

// DeleteInactive removes every revoked session.
func (s *SQLiteStore) DeleteInactive(ctx context.Context) (int64, error) {
	return s.deleteWhere(ctx, `DELETE FROM refresh_sessions WHERE is_active = 0`)
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) deleteWhere(ctx context.Context, query string) (int64, error) {
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("session purge: %w", err)
	}
	return res.RowsAffected()
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row sqlScanner) (Session, error) {
	var out Session
	err := row.Scan(
		&out.ID,
		&out.UserID,
		&out.TokenHash,
		&out.ExpiresAt,
		&out.CreatedByIP,
		&out.RevokedAt,
		&out.RevokedByIP,
		&out.ReplacedByTokenHash,
		&out.IsActive,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	return out, err
}

func sqliteIsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
