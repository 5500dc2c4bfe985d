package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteStore implements Store over the audit_log table in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed audit store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("audit: nil db")
	}
	return &SQLiteStore{db: db}, nil
}

// Insert implements Store.
func (s *SQLiteStore) Insert(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (action, user_id, session_id, ip, user_agent, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Action, e.UserID, e.SessionID, trimOrNil(e.IP), trimOrNil(e.UserAgent), encodeMeta(e.Meta), e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("audit insert: %w", err)
	}
	return nil
}

// LoginFailuresByIP implements Store.
func (s *SQLiteStore) LoginFailuresByIP(ctx context.Context, ip string, since time.Time) ([]time.Time, error) {
	if ip == "" {
		return nil, nil
	}
	return s.times(ctx, `
		SELECT created_at FROM audit_log
		WHERE action = ? AND ip = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?`,
		ActionLoginFailed, ip, since.UTC(), maxFailureRows,
	)
}

// LoginFailuresByUser implements Store.
func (s *SQLiteStore) LoginFailuresByUser(ctx context.Context, userID int64, since time.Time) ([]time.Time, error) {
	return s.times(ctx, `
		SELECT created_at FROM audit_log
		WHERE action = ? AND user_id = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?`,
		ActionLoginFailed, userID, since.UTC(), maxFailureRows,
	)
}

func (s *SQLiteStore) times(ctx context.Context, query string, args ...any) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("audit scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit rows: %w", err)
	}
	return out, nil
}
