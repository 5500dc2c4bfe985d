package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps events in process. It is used when no database is configured.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
	limit  int
}

// NewMemoryStore keeps at most limit events (oldest dropped first); limit <= 0 means 10000.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 10000
	}
	return &MemoryStore{limit: limit}
}

// Insert implements Store.
func (m *MemoryStore) Insert(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, e)
	if over := len(m.events) - m.limit; over > 0 {
		m.events = append(m.events[:0:0], m.events[over:]...)
	}
	return nil
}

// LoginFailuresByIP implements Store.
func (m *MemoryStore) LoginFailuresByIP(ctx context.Context, ip string, since time.Time) ([]time.Time, error) {
	if ip == "" {
		return nil, nil
	}
	return m.failures(ctx, since, func(e Event) bool { return e.IP == ip })
}

// LoginFailuresByUser implements Store.
func (m *MemoryStore) LoginFailuresByUser(ctx context.Context, userID int64, since time.Time) ([]time.Time, error) {
	return m.failures(ctx, since, func(e Event) bool { return e.UserID != nil && *e.UserID == userID })
}

// Events returns a snapshot of the recorded events in insertion order.
func (m *MemoryStore) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func (m *MemoryStore) failures(ctx context.Context, since time.Time, match func(Event) bool) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []time.Time
	for _, e := range m.events {
		if e.Action != ActionLoginFailed || e.CreatedAt.Before(since) || !match(e) {
			continue
		}
		out = append(out, e.CreatedAt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	if len(out) > maxFailureRows {
		out = out[:maxFailureRows]
	}
	return out, nil
}
