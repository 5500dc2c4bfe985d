package session

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taskmgr/cmd/security/token"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingObserver struct {
	issued, rotated, revoked atomic.Int64
	mu                       sync.Mutex
	lookups                  map[string]int
}

func (o *countingObserver) SessionIssued()  { o.issued.Add(1) }
func (o *countingObserver) SessionRotated() { o.rotated.Add(1) }
func (o *countingObserver) SessionRevoked() { o.revoked.Add(1) }
func (o *countingObserver) SessionLookup(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lookups == nil {
		o.lookups = make(map[string]int)
	}
	o.lookups[result]++
}

func (o *countingObserver) lookupCount(result string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lookups[result]
}

func newTestManager(t *testing.T, store Store, mutate func(*Config)) (*Manager, *fakeClock, *countingObserver) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.StoreTimeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	clock := newFakeClock()
	obs := &countingObserver{}
	return NewManager(cfg, store, token.NewHasher(nil), WithClock(clock.Now), WithObserver(obs)), clock, obs
}

func TestGeneratePair_ShapeAndDigest(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t, NewMemoryStore(), nil)
	h := token.NewHasher(nil)

	seen := make(map[string]struct{})
	for i := 0; i < 128; i++ {
		raw, digest, err := m.GeneratePair()
		if err != nil {
			t.Fatalf("GeneratePair: %v", err)
		}
		if len(raw) != 43 {
			t.Fatalf("expected 43-char raw secret for 32 bytes, got %d", len(raw))
		}
		if digest != h.DigestToken(raw) {
			t.Fatalf("digest does not match DigestToken(raw)")
		}
		if _, dup := seen[raw]; dup {
			t.Fatalf("duplicate raw secret")
		}
		seen[raw] = struct{}{}
	}
}

func TestNewTokenPair_Errors(t *testing.T) {
	t.Parallel()

	h := token.NewHasher(nil)

	if _, _, err := NewTokenPair(h, 16); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for short secret, got %v", err)
	}

	if _, _, err := newTokenPair(bytes.NewReader(make([]byte, 8)), h, 32); err == nil {
		t.Fatalf("expected error from exhausted random source")
	}
}

func TestManager_IssueAndFindActive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, clock, obs := newTestManager(t, NewMemoryStore(), nil)

	raw, digest, err := m.GeneratePair()
	if err != nil {
		t.Fatalf("GeneratePair: %v", err)
	}

	s, err := m.Issue(ctx, 2, digest, 7*24*time.Hour, "10.0.0.1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if s.ID == "" || !s.IsActive || s.RevokedAt != nil || s.ReplacedByTokenHash != nil {
		t.Fatalf("unexpected issued session: %+v", s)
	}
	if !s.ExpiresAt.Equal(clock.Now().Add(7 * 24 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", s.ExpiresAt)
	}
	if s.TokenHash != digest || s.TokenHash == raw {
		t.Fatalf("expected digest at rest, never the raw secret")
	}
	if s.CreatedByIP == nil || *s.CreatedByIP != "10.0.0.1" {
		t.Fatalf("unexpected created_by_ip: %v", s.CreatedByIP)
	}

	got, err := m.FindActive(ctx, 2, raw)
	if err != nil {
		t.Fatalf("FindActive: %v", err)
	}
	if got.ID != s.ID {
		t.Fatalf("FindActive returned %q want %q", got.ID, s.ID)
	}

	// Wrong user with the right secret must not match.
	if _, err := m.FindActive(ctx, 3, raw); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for other user, got %v", err)
	}
	if _, err := m.FindActive(ctx, 2, ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for empty secret, got %v", err)
	}

	if obs.issued.Load() != 1 || obs.lookupCount(LookupHit) != 1 || obs.lookupCount(LookupMiss) != 2 {
		t.Fatalf("unexpected observer counts: issued=%d lookups=%v", obs.issued.Load(), obs.lookups)
	}
}

func TestManager_Issue_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, _ := newTestManager(t, NewMemoryStore(), nil)

	cases := []struct {
		name   string
		userID int64
		digest string
		ttl    time.Duration
	}{
		{"zero user", 0, "d", time.Hour},
		{"empty digest", 2, "", time.Hour},
		{"zero ttl", 2, "d", 0},
	}
	for _, tc := range cases {
		if _, err := m.Issue(ctx, tc.userID, tc.digest, tc.ttl, ""); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestManager_Issue_DuplicateDigestIsPersistenceError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, _ := newTestManager(t, NewMemoryStore(), nil)

	if _, err := m.Issue(ctx, 2, "same-digest", time.Hour, ""); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, err := m.Issue(ctx, 2, "same-digest", time.Hour, "")
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, ErrDuplicateDigest) {
		t.Fatalf("expected PersistenceError wrapping ErrDuplicateDigest, got %v", err)
	}

	// The same digest for a different user is a different key.
	if _, err := m.Issue(ctx, 3, "same-digest", time.Hour, ""); err != nil {
		t.Fatalf("Issue for other user: %v", err)
	}
}

func TestManager_RotateLinksSuccessor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	m, clock, obs := newTestManager(t, store, nil)

	oldRaw, oldDigest, _ := m.GeneratePair()
	old, err := m.Issue(ctx, 2, oldDigest, time.Hour, "10.0.0.1")
	if err != nil {
		t.Fatalf("Issue old: %v", err)
	}

	clock.Advance(time.Minute)
	newRaw, newDigest, _ := m.GeneratePair()
	next, err := m.Issue(ctx, 2, newDigest, time.Hour, "10.0.0.2")
	if err != nil {
		t.Fatalf("Issue new: %v", err)
	}

	// Between Issue and Rotate both sessions are valid.
	if _, err := m.FindActive(ctx, 2, oldRaw); err != nil {
		t.Fatalf("expected old session valid before rotation: %v", err)
	}
	if _, err := m.FindActive(ctx, 2, newRaw); err != nil {
		t.Fatalf("expected new session valid before rotation: %v", err)
	}

	if err := m.Rotate(ctx, &old, newDigest, "10.0.0.2"); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if old.IsActive || old.ReplacedByTokenHash == nil || *old.ReplacedByTokenHash != newDigest {
		t.Fatalf("rotation linkage missing on caller copy: %+v", old)
	}

	rows, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var stored Session
	for _, r := range rows {
		if r.ID == old.ID {
			stored = r
		}
	}
	if stored.IsActive || stored.ReplacedByTokenHash == nil || *stored.ReplacedByTokenHash != newDigest {
		t.Fatalf("rotation linkage missing in store: %+v", stored)
	}
	if stored.RevokedAt == nil || !stored.RevokedAt.Equal(clock.Now()) {
		t.Fatalf("unexpected revoked_at: %v", stored.RevokedAt)
	}
	if stored.RevokedByIP == nil || *stored.RevokedByIP != "10.0.0.2" {
		t.Fatalf("unexpected revoked_by_ip: %v", stored.RevokedByIP)
	}

	if _, err := m.FindActive(ctx, 2, oldRaw); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected old session rejected after rotation, got %v", err)
	}
	if got, err := m.FindActive(ctx, 2, newRaw); err != nil || got.ID != next.ID {
		t.Fatalf("expected new session active, got %+v err=%v", got, err)
	}
	if obs.rotated.Load() != 1 {
		t.Fatalf("expected one rotation, got %d", obs.rotated.Load())
	}
}

func TestManager_Rotate_RequiresSuccessor(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t, NewMemoryStore(), nil)
	s := Session{ID: "x"}
	if err := m.Rotate(context.Background(), &s, "", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestManager_RevocationIsMonotonic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	m, _, _ := newTestManager(t, store, nil)

	raw, digest, _ := m.GeneratePair()
	s, err := m.Issue(ctx, 2, digest, time.Hour, "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := m.Revoke(ctx, &s, "", ""); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if s.ReplacedByTokenHash == nil || *s.ReplacedByTokenHash != "" {
		t.Fatalf("expected empty successor after logout revocation, got %v", s.ReplacedByTokenHash)
	}

	stale := s
	stale.IsActive = true
	if err := m.Rotate(ctx, &stale, "other", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound rotating a revoked session, got %v", err)
	}
	if err := m.Revoke(ctx, &stale, "", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound revoking twice, got %v", err)
	}
	if _, err := m.FindActive(ctx, 2, raw); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected revoked session to stay inactive, got %v", err)
	}

	rows, _ := store.List(ctx)
	if len(rows) != 1 || rows[0].IsActive || *rows[0].ReplacedByTokenHash != "" {
		t.Fatalf("unexpected stored state: %+v", rows)
	}
}

func TestManager_StartRenewEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, obs := newTestManager(t, NewMemoryStore(), nil)

	g1, err := m.Start(ctx, 2, "10.0.0.1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	g2, err := m.Renew(ctx, 2, g1.RawSecret, "10.0.0.1")
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if g2.RawSecret == g1.RawSecret || g2.Session.ID == g1.Session.ID {
		t.Fatalf("expected a fresh pair on renew")
	}

	// Replaying the rotated-away secret is rejected.
	if _, err := m.Renew(ctx, 2, g1.RawSecret, "10.0.0.1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on replay, got %v", err)
	}

	ended, err := m.End(ctx, 2, g2.RawSecret, "10.0.0.1")
	if err != nil || !ended {
		t.Fatalf("End: ended=%v err=%v", ended, err)
	}

	// Logout is idempotent: the second call no-ops.
	ended, err = m.End(ctx, 2, g2.RawSecret, "10.0.0.1")
	if err != nil || ended {
		t.Fatalf("second End: ended=%v err=%v", ended, err)
	}

	if _, err := m.Renew(ctx, 2, g2.RawSecret, ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
	}

	if obs.issued.Load() != 2 || obs.rotated.Load() != 1 || obs.revoked.Load() != 1 {
		t.Fatalf("unexpected counts issued=%d rotated=%d revoked=%d",
			obs.issued.Load(), obs.rotated.Load(), obs.revoked.Load())
	}
}

func TestManager_ExpiryIgnoredByDefault(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, clock, _ := newTestManager(t, NewMemoryStore(), func(c *Config) { c.RefreshTTL = time.Hour })

	g, err := m.Start(ctx, 2, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.Advance(2 * time.Hour)

	s, err := m.FindActive(ctx, 2, g.RawSecret)
	if err != nil {
		t.Fatalf("expected expired-but-active session to be returned, got %v", err)
	}
	if !s.Expired(clock.Now()) {
		t.Fatalf("expected session to report expired")
	}
}

func TestManager_StrictExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, clock, obs := newTestManager(t, NewMemoryStore(), func(c *Config) {
		c.RefreshTTL = time.Hour
		c.EnforceExpiry = true
	})

	g, err := m.Start(ctx, 2, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	clock.Advance(time.Hour - time.Second)
	if _, err := m.FindActive(ctx, 2, g.RawSecret); err != nil {
		t.Fatalf("expected session valid before expiry, got %v", err)
	}

	clock.Advance(time.Second)
	if _, err := m.FindActive(ctx, 2, g.RawSecret); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound at expiry, got %v", err)
	}
	if obs.lookupCount(LookupExpired) != 1 {
		t.Fatalf("expected one expired lookup, got %v", obs.lookups)
	}
}

// racingStore lets a concurrent rotation win just before MarkRevoked runs.
type racingStore struct {
	*MemoryStore
	once   sync.Once
	target string
}

func (s *racingStore) MarkRevoked(ctx context.Context, r Revocation) error {
	if r.SessionID == s.target {
		s.once.Do(func() {
			_ = s.MemoryStore.MarkRevoked(ctx, Revocation{
				SessionID:           r.SessionID,
				RevokedAt:           r.RevokedAt,
				ReplacedByTokenHash: "winner",
			})
		})
	}
	return s.MemoryStore.MarkRevoked(ctx, r)
}

func TestManager_Renew_LostRaceRevokesOrphan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &racingStore{MemoryStore: NewMemoryStore()}
	m, _, _ := newTestManager(t, store, nil)

	g, err := m.Start(ctx, 2, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	store.target = g.Session.ID

	if _, err := m.Renew(ctx, 2, g.RawSecret, ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for the losing rotation, got %v", err)
	}

	rows, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected original + orphan rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.IsActive {
			t.Fatalf("expected every session inactive after lost race, got %+v", r)
		}
		if r.ID == g.Session.ID && *r.ReplacedByTokenHash != "winner" {
			t.Fatalf("loser must not overwrite the winner's linkage: %q", *r.ReplacedByTokenHash)
		}
	}
}

func TestManager_ConcurrentRenewOnlyOneWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, _ := newTestManager(t, NewMemoryStore(), nil)

	g, err := m.Start(ctx, 2, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	const n = 8
	var (
		wg   sync.WaitGroup
		wins atomic.Int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Renew(ctx, 2, g.RawSecret, "")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrSessionNotFound):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winning rotation, got %d", wins.Load())
	}
}

type failingRevokeStore struct {
	*MemoryStore
}

func (failingRevokeStore) MarkRevoked(context.Context, Revocation) error {
	return errors.New("disk full")
}

func TestManager_Renew_FailOpenOnRotateFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := failingRevokeStore{MemoryStore: NewMemoryStore()}
	m, _, _ := newTestManager(t, store, nil)

	g, err := m.Start(ctx, 2, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = m.Renew(ctx, 2, g.RawSecret, "")
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "rotate" || pe.Timeout() {
		t.Fatalf("expected non-timeout rotate PersistenceError, got %v", err)
	}

	// Old secret still works; the successor was left active as well.
	if _, err := m.FindActive(ctx, 2, g.RawSecret); err != nil {
		t.Fatalf("expected old session still active, got %v", err)
	}
	rows, _ := store.List(ctx)
	active := 0
	for _, r := range rows {
		if r.IsActive {
			active++
		}
	}
	if active != 2 {
		t.Fatalf("expected two active sessions after failed rotation, got %d", active)
	}
}

type blockingStore struct {
	*MemoryStore
}

func (blockingStore) FindActive(ctx context.Context, _ int64, _ string) (Session, error) {
	<-ctx.Done()
	return Session{}, ctx.Err()
}

func TestManager_StoreTimeoutIsRetryablePersistenceError(t *testing.T) {
	t.Parallel()

	m, _, obs := newTestManager(t, blockingStore{MemoryStore: NewMemoryStore()}, func(c *Config) {
		c.StoreTimeout = 10 * time.Millisecond
	})

	_, err := m.FindActive(context.Background(), 2, "some-secret")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("timeout must not look like a semantic rejection")
	}
	if !IsTimeout(err) {
		t.Fatalf("expected timeout to be retryable, got %v", err)
	}
	if obs.lookupCount(LookupError) != 1 {
		t.Fatalf("expected one error lookup, got %v", obs.lookups)
	}
}

func TestManager_PurgeAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, _ := newTestManager(t, NewMemoryStore(), nil)

	a, _ := m.Start(ctx, 2, "")
	b, _ := m.Start(ctx, 3, "")
	if _, err := m.End(ctx, 2, a.RawSecret, ""); err != nil {
		t.Fatalf("End: %v", err)
	}
	c, _ := m.Start(ctx, 4, "")

	n, err := m.Purge(ctx, PurgeInactive)
	if err != nil || n != 1 {
		t.Fatalf("Purge inactive: n=%d err=%v", n, err)
	}

	if err := m.Delete(ctx, b.Session.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := m.Delete(ctx, b.Session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound deleting twice, got %v", err)
	}
	if err := m.Delete(ctx, " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank id, got %v", err)
	}

	rows, err := m.List(ctx)
	if err != nil || len(rows) != 1 || rows[0].ID != c.Session.ID {
		t.Fatalf("unexpected remaining sessions: %+v err=%v", rows, err)
	}

	n, err = m.Purge(ctx, PurgeAll)
	if err != nil || n != 1 {
		t.Fatalf("Purge all: n=%d err=%v", n, err)
	}
	if _, err := m.Purge(ctx, PurgeKind("expired")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown purge kind, got %v", err)
	}
}

func TestParsePurgeKind(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]PurgeKind{"all": PurgeAll, "INACTIVE": PurgeInactive, " all ": PurgeAll} {
		got, err := ParsePurgeKind(in)
		if err != nil || got != want {
			t.Fatalf("ParsePurgeKind(%q)=%q,%v want %q", in, got, err, want)
		}
	}
	if _, err := ParsePurgeKind("expired"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestManager_Ping(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t, NewMemoryStore(), nil)
	if err := m.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Ping(ctx)
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "ping" {
		t.Fatalf("expected ping PersistenceError, got %v", err)
	}
}
