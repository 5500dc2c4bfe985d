package audit

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over the audit_log table.
// The pgx pool is owned by the caller.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema qualifies the audit_log table with schema.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("audit: invalid schema identifier")
		}
		s.table = pgx.Identifier{schema, "audit_log"}.Sanitize()
		return nil
	}
}

// NewPostgresStore creates a Postgres-backed audit store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:  pool,
		table: pgx.Identifier{"audit_log"}.Sanitize(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("audit: nil pool")
	}
	return st, nil
}

// Insert implements Store.
func (s *PostgresStore) Insert(ctx context.Context, e Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.table+` (
			action, user_id, session_id, ip, user_agent, meta, created_at
		) VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`,
		e.Action, e.UserID, e.SessionID, trimOrNil(e.IP), trimOrNil(e.UserAgent), encodeMeta(e.Meta), e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("audit insert: %w", err)
	}
	return nil
}

// LoginFailuresByIP implements Store.
func (s *PostgresStore) LoginFailuresByIP(ctx context.Context, ip string, since time.Time) ([]time.Time, error) {
	if ip == "" {
		return nil, nil
	}
	return s.times(ctx, `
		SELECT created_at FROM `+s.table+`
		WHERE action = $1 AND ip = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT $4`,
		ActionLoginFailed, ip, since, maxFailureRows,
	)
}

// LoginFailuresByUser implements Store.
func (s *PostgresStore) LoginFailuresByUser(ctx context.Context, userID int64, since time.Time) ([]time.Time, error) {
	return s.times(ctx, `
		SELECT created_at FROM `+s.table+`
		WHERE action = $1 AND user_id = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT $4`,
		ActionLoginFailed, userID, since, maxFailureRows,
	)
}

func (s *PostgresStore) times(ctx context.Context, query string, args ...any) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit query: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("audit rows: %w", err)
	}
	return out, nil
}
