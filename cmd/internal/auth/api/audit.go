package authapi

import (
	"context"
	"net"
	"strings"
	"time"

	"taskmgr/cmd/internal/audit"
)

func (h *Handler) auditLoginFailed(ctx context.Context, userID int64, ip net.IP, ua string, reason string) {
	h.record(ctx, audit.ActionLoginFailed, userID, "", ip, ua, map[string]any{
		"reason": reason,
	})
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID int64, sessionID string, ip net.IP, ua string) {
	h.record(ctx, audit.ActionLoginSuccess, userID, sessionID, ip, ua, nil)
}

func (h *Handler) auditLoginRateLimited(ctx context.Context, userID int64, ip net.IP, ua string, retryAfter time.Duration) {
	h.record(ctx, audit.ActionLoginRateLimited, userID, "", ip, ua, map[string]any{
		"retry_after_s": int64(retryAfter.Seconds()),
	})
}

func (h *Handler) auditRefreshSuccess(ctx context.Context, userID int64, sessionID string, ip net.IP, ua string) {
	h.record(ctx, audit.ActionRefreshSuccess, userID, sessionID, ip, ua, nil)
}

func (h *Handler) auditRefreshRejected(ctx context.Context, userID int64, ip net.IP, ua string) {
	h.record(ctx, audit.ActionRefreshRejected, userID, "", ip, ua, nil)
}

func (h *Handler) auditLogout(ctx context.Context, userID int64, ip net.IP, ua string) {
	h.record(ctx, audit.ActionLogout, userID, "", ip, ua, nil)
}

func (h *Handler) auditSessionDeleted(ctx context.Context, adminID int64, sessionID string, ip net.IP, ua string) {
	h.record(ctx, audit.ActionSessionDeleted, adminID, sessionID, ip, ua, nil)
}

func (h *Handler) auditSessionsPurged(ctx context.Context, adminID int64, kind string, n int64, ip net.IP, ua string) {
	h.record(ctx, audit.ActionSessionsPurged, adminID, "", ip, ua, map[string]any{
		"type":    kind,
		"deleted": n,
	})
}

// record writes one audit row. The write is detached from request cancellation
// but bounded by auditTimeout, so a stalled audit store cannot stall the response.
func (h *Handler) record(ctx context.Context, action string, userID int64, sessionID string, ip net.IP, ua string, meta map[string]any) {
	e := audit.Event{
		Action:    action,
		IP:        ipString(ip),
		UserAgent: strings.TrimSpace(ua),
		Meta:      meta,
		CreatedAt: h.now(),
	}
	if userID > 0 {
		e.UserID = &userID
	}
	if sessionID != "" {
		e.SessionID = &sessionID
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.auditTimeout)
	defer cancel()
	h.audit.Record(ctx, e)
}
