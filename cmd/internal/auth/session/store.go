package session

import (
	"context"
	"time"
)

// Session mirrors a refresh_sessions row.
//
// ReplacedByTokenHash is nil while the session is active. After rotation it holds the
// successor's digest; after logout it holds the empty string.
type Session struct {
	ID                  string
	UserID              int64
	TokenHash           string
	ExpiresAt           time.Time
	CreatedByIP         *string
	RevokedAt           *time.Time
	RevokedByIP         *string
	ReplacedByTokenHash *string
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Expired reports whether the session's lifetime has elapsed at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// NewSession is the input to Store.Create.
type NewSession struct {
	UserID      int64
	TokenHash   string
	ExpiresAt   time.Time
	CreatedByIP *string
	CreatedAt   time.Time
}

// Revocation is the input to Store.MarkRevoked.
type Revocation struct {
	SessionID           string
	RevokedAt           time.Time
	RevokedByIP         *string
	ReplacedByTokenHash string
}

// Store abstracts persistence for refresh sessions.
//
// Implementations must make MarkRevoked a conditional single-row update on
// (id, is_active = true) so that two concurrent revocations of the same row
// cannot both succeed.
type Store interface {
	// Create inserts a new active session and returns it with its generated ID.
	// Returns ErrDuplicateDigest if (user id, digest) already exists.
	Create(ctx context.Context, in NewSession) (Session, error)

	// FindActive loads the active session matching (user id, digest) or returns ErrSessionNotFound.
	FindActive(ctx context.Context, userID int64, tokenHash string) (Session, error)

	// MarkRevoked flips an active session to revoked. Returns ErrSessionNotFound
	// when the row is missing or already inactive.
	MarkRevoked(ctx context.Context, r Revocation) error

	// List returns every session, newest first.
	List(ctx context.Context) ([]Session, error)

	// Delete removes one session by ID or returns ErrSessionNotFound.
	Delete(ctx context.Context, id string) error

	// DeleteAll removes every session and returns the count.
	DeleteAll(ctx context.Context) (int64, error)

	// DeleteInactive removes every revoked session and returns the count.
	DeleteInactive(ctx context.Context) (int64, error)

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}

func optionalIP(ip string) *string {
	if ip == "" {
		return nil
	}
	return &ip
}
