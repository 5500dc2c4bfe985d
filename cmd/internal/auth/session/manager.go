package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"taskmgr/cmd/security/token"
)

// maxRawSecretLen bounds presented secrets to avoid pathological inputs.
const maxRawSecretLen = 4096

// Manager orchestrates issuance, lookup, rotation and revocation of refresh sessions.
//
// It holds no session state of its own: every check is a fresh store read.
type Manager struct {
	cfg    Config
	store  Store
	hasher token.Hasher
	obs    Observer
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver reports lifecycle events to o.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.obs = o
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a Manager over store, digesting secrets with h.
func NewManager(cfg Config, store Store, h token.Hasher, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg,
		store:  store,
		hasher: h,
		obs:    nopObserver{},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config { return m.cfg }

// GeneratePair returns a fresh raw secret and its digest.
func (m *Manager) GeneratePair() (raw string, digest string, err error) {
	return NewTokenPair(m.hasher, m.cfg.RefreshTokenBytes)
}

// Issue persists a new active session expiring at now+ttl.
func (m *Manager) Issue(ctx context.Context, userID int64, digest string, ttl time.Duration, sourceIP string) (Session, error) {
	if userID <= 0 {
		return Session{}, &ValidationError{Field: "user_id", Reason: "must be positive"}
	}
	if digest == "" {
		return Session{}, &ValidationError{Field: "digest", Reason: "required"}
	}
	if ttl <= 0 {
		return Session{}, &ValidationError{Field: "ttl", Reason: "must be positive"}
	}

	now := m.now()
	ctx, cancel := m.storeCtx(ctx)
	defer cancel()

	s, err := m.store.Create(ctx, NewSession{
		UserID:      userID,
		TokenHash:   digest,
		ExpiresAt:   now.Add(ttl),
		CreatedByIP: optionalIP(sourceIP),
		CreatedAt:   now,
	})
	if err != nil {
		return Session{}, &PersistenceError{Op: "issue", Err: err}
	}

	m.obs.SessionIssued()
	return s, nil
}

// FindActive digests rawSecret and loads the matching active session for userID.
//
// Unknown, revoked and (under EnforceExpiry) expired sessions all yield ErrSessionNotFound.
func (m *Manager) FindActive(ctx context.Context, userID int64, rawSecret string) (Session, error) {
	rawSecret = strings.TrimSpace(rawSecret)
	if userID <= 0 || rawSecret == "" || len(rawSecret) > maxRawSecretLen {
		m.obs.SessionLookup(LookupMiss)
		return Session{}, ErrSessionNotFound
	}

	digest := m.hasher.DigestToken(rawSecret)

	ctx, cancel := m.storeCtx(ctx)
	defer cancel()

	s, err := m.store.FindActive(ctx, userID, digest)
	if errors.Is(err, ErrSessionNotFound) {
		m.obs.SessionLookup(LookupMiss)
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		m.obs.SessionLookup(LookupError)
		return Session{}, &PersistenceError{Op: "find_active", Err: err}
	}

	if m.cfg.EnforceExpiry && s.Expired(m.now()) {
		m.obs.SessionLookup(LookupExpired)
		return Session{}, ErrSessionNotFound
	}

	m.obs.SessionLookup(LookupHit)
	return s, nil
}

// Rotate revokes old and links it to the successor digest newDigest.
//
// The successor must already be issued. On success old is updated in place.
// If old is no longer active (a concurrent rotation won), ErrSessionNotFound is returned.
func (m *Manager) Rotate(ctx context.Context, old *Session, newDigest string, sourceIP string) error {
	if newDigest == "" {
		return &ValidationError{Field: "digest", Reason: "rotation requires a successor"}
	}
	if err := m.revoke(ctx, "rotate", old, sourceIP, newDigest); err != nil {
		return err
	}
	m.obs.SessionRotated()
	return nil
}

// Revoke revokes s with an optional successor digest. An empty replacementDigest
// records that the session ended without a successor (logout).
func (m *Manager) Revoke(ctx context.Context, s *Session, sourceIP string, replacementDigest string) error {
	if err := m.revoke(ctx, "revoke", s, sourceIP, replacementDigest); err != nil {
		return err
	}
	m.obs.SessionRevoked()
	return nil
}

func (m *Manager) revoke(ctx context.Context, op string, s *Session, sourceIP, replacement string) error {
	if s == nil || s.ID == "" {
		return &ValidationError{Field: "session", Reason: "required"}
	}

	now := m.now()
	ip := optionalIP(sourceIP)

	ctx, cancel := m.storeCtx(ctx)
	defer cancel()

	err := m.store.MarkRevoked(ctx, Revocation{
		SessionID:           s.ID,
		RevokedAt:           now,
		RevokedByIP:         ip,
		ReplacedByTokenHash: replacement,
	})
	if errors.Is(err, ErrSessionNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}

	s.IsActive = false
	s.RevokedAt = &now
	s.RevokedByIP = ip
	s.ReplacedByTokenHash = &replacement
	s.UpdatedAt = now
	return nil
}

// Ping checks the backing store.
func (m *Manager) Ping(ctx context.Context) error {
	ctx, cancel := m.storeCtx(ctx)
	defer cancel()

	if err := m.store.Ping(ctx); err != nil {
		return &PersistenceError{Op: "ping", Err: err}
	}
	return nil
}

func (m *Manager) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.cfg.StoreTimeout)
}
