package session

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
)

// MemoryStore implements Store in process memory. It backs local runs
// without a database and the package tests.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]*Session
	keys map[memKey]string
}

type memKey struct {
	userID int64
	hash   string
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[string]*Session),
		keys: make(map[memKey]string),
	}
}

// Create inserts a new active session.
func (s *MemoryStore) Create(ctx context.Context, in NewSession) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := memKey{userID: in.UserID, hash: in.TokenHash}
	if _, ok := s.keys[k]; ok {
		return Session{}, ErrDuplicateDigest
	}

	row := &Session{
		ID:          ulid.Make().String(),
		UserID:      in.UserID,
		TokenHash:   in.TokenHash,
		ExpiresAt:   in.ExpiresAt,
		CreatedByIP: in.CreatedByIP,
		IsActive:    true,
		CreatedAt:   in.CreatedAt,
		UpdatedAt:   in.CreatedAt,
	}
	s.rows[row.ID] = row
	s.keys[k] = row.ID

	return cloneSession(row), nil
}

// FindActive loads the active session for (userID, tokenHash).
func (s *MemoryStore) FindActive(ctx context.Context, userID int64, tokenHash string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.keys[memKey{userID: userID, hash: tokenHash}]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	row := s.rows[id]
	if row == nil || !row.IsActive {
		return Session{}, ErrSessionNotFound
	}
	return cloneSession(row), nil
}

// MarkRevoked flips an active session to revoked.
func (s *MemoryStore) MarkRevoked(ctx context.Context, r Revocation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.rows[r.SessionID]
	if row == nil || !row.IsActive {
		return ErrSessionNotFound
	}

	at := r.RevokedAt
	replaced := r.ReplacedByTokenHash
	row.IsActive = false
	row.RevokedAt = &at
	row.RevokedByIP = r.RevokedByIP
	row.ReplacedByTokenHash = &replaced
	row.UpdatedAt = at
	return nil
}

// List returns every session, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	out := make([]Session, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, cloneSession(row))
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes one session.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.rows[id]
	if row == nil {
		return ErrSessionNotFound
	}
	s.drop(row)
	return nil
}

// DeleteAll removes every session.
func (s *MemoryStore) DeleteAll(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.rows))
	s.rows = make(map[string]*Session)
	s.keys = make(map[memKey]string)
	return n, nil
}

// DeleteInactive removes every revoked session.
func (s *MemoryStore) DeleteInactive(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, row := range s.rows {
		if !row.IsActive {
			s.drop(row)
			n++
		}
	}
	return n, nil
}

// Ping always succeeds unless ctx is done.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// drop requires s.mu.
func (s *MemoryStore) drop(row *Session) {
	delete(s.rows, row.ID)
	delete(s.keys, memKey{userID: row.UserID, hash: row.TokenHash})
}

func cloneSession(in *Session) Session {
	out := *in
	if in.CreatedByIP != nil {
		v := *in.CreatedByIP
		out.CreatedByIP = &v
	}
	if in.RevokedAt != nil {
		v := *in.RevokedAt
		out.RevokedAt = &v
	}
	if in.RevokedByIP != nil {
		v := *in.RevokedByIP
		out.RevokedByIP = &v
	}
	if in.ReplacedByTokenHash != nil {
		v := *in.ReplacedByTokenHash
		out.ReplacedByTokenHash = &v
	}
	return out
}
