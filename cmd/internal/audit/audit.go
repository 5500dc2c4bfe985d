// Package audit records authentication events and answers the throttling
// queries built on them (recent login failures per IP and per account).
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// Actions written by the auth boundary.
const (
	ActionLoginSuccess     = "auth.login.success"
	ActionLoginFailed      = "auth.login.failed"
	ActionLoginRateLimited = "auth.login.rate_limited"
	ActionRefreshSuccess   = "auth.refresh.success"
	ActionRefreshRejected  = "auth.refresh.rejected"
	ActionLogout           = "auth.logout"
	ActionSessionDeleted   = "admin.sessions.deleted"
	ActionSessionsPurged   = "admin.sessions.purged"
)

// maxFailureRows bounds the timestamps returned by failure queries.
const maxFailureRows = 256

// Event is one audit row.
type Event struct {
	Action    string
	UserID    *int64
	SessionID *string
	IP        string
	UserAgent string
	Meta      map[string]any
	CreatedAt time.Time
}

// Store persists events and serves throttle lookups.
type Store interface {
	Insert(ctx context.Context, e Event) error
	// LoginFailuresByIP returns failed-login times for ip at or after since, newest first.
	LoginFailuresByIP(ctx context.Context, ip string, since time.Time) ([]time.Time, error)
	// LoginFailuresByUser returns failed-login times for userID at or after since, newest first.
	LoginFailuresByUser(ctx context.Context, userID int64, since time.Time) ([]time.Time, error)
}

// Recorder writes events without failing the caller: audit is best-effort.
type Recorder struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// NewRecorder wraps store. A nil store yields a recorder that drops events.
func NewRecorder(store Store, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Store returns the underlying store (nil when auditing is disabled).
func (r *Recorder) Store() Store {
	if r == nil {
		return nil
	}
	return r.store
}

// Record inserts e, stamping CreatedAt when unset. Failures are logged.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if r == nil || r.store == nil {
		return
	}

	e.Action = strings.TrimSpace(e.Action)
	if e.Action == "" {
		return
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}

	if err := r.store.Insert(ctx, e); err != nil {
		r.log.Error("auth.audit.insert.fail", "err", err, "action", e.Action)
	}
}

func encodeMeta(meta map[string]any) *string {
	if len(meta) == 0 {
		return nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

func trimOrNil(s string) *string {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return &v
}
