package authapi

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"
)

type lockoutTier struct {
	Threshold int
	Duration  time.Duration
}

func (h *Handler) checkLoginIPThrottle(ctx context.Context, ip net.IP, now time.Time) (bool, time.Duration, error) {
	store := h.audit.Store()
	if store == nil || ip == nil || h.cfg.LoginIPMax <= 0 {
		return false, 0, nil
	}
	failures, err := store.LoginFailuresByIP(ctx, ip.String(), now.Add(-h.cfg.LoginIPWindow))
	if err != nil {
		return false, 0, err
	}
	blocked, retry := evaluateWindowThrottle(now, failures, h.cfg.LoginIPMax, h.cfg.LoginIPWindow)
	return blocked, retry, nil
}

func (h *Handler) checkLoginUserThrottle(ctx context.Context, userID int64, now time.Time) (bool, time.Duration, error) {
	store := h.audit.Store()
	if store == nil || userID <= 0 {
		return false, 0, nil
	}
	failures, err := store.LoginFailuresByUser(ctx, userID, now.Add(-h.cfg.LoginUserWindow))
	if err != nil {
		return false, 0, err
	}
	blocked, retry := evaluateProgressiveLockout(now, failures, h.cfg.lockoutTiers())
	return blocked, retry, nil
}

// evaluateWindowThrottle blocks once max failures fall inside window. The block
// lifts when the oldest of those failures leaves the window.
func evaluateWindowThrottle(now time.Time, failures []time.Time, max int, window time.Duration) (bool, time.Duration) {
	if max <= 0 || window <= 0 {
		return false, 0
	}

	cut := now.Add(-window)
	var (
		count  int
		oldest time.Time
	)
	for _, f := range failures {
		if f.Before(cut) || f.After(now) {
			continue
		}
		count++
		if oldest.IsZero() || f.Before(oldest) {
			oldest = f
		}
	}
	if count < max {
		return false, 0
	}

	retry := oldest.Add(window).Sub(now)
	if retry <= 0 {
		return false, 0
	}
	return true, retry
}

// evaluateProgressiveLockout picks the highest tier whose threshold the failure
// count reaches and locks until the most recent failure plus that tier's duration.
func evaluateProgressiveLockout(now time.Time, failures []time.Time, tiers []lockoutTier) (bool, time.Duration) {
	if len(failures) == 0 {
		return false, 0
	}

	var latest time.Time
	for _, f := range failures {
		if f.After(latest) {
			latest = f
		}
	}

	var chosen *lockoutTier
	for i := range tiers {
		t := &tiers[i]
		if t.Threshold <= 0 || t.Duration <= 0 || len(failures) < t.Threshold {
			continue
		}
		if chosen == nil || t.Threshold > chosen.Threshold {
			chosen = t
		}
	}
	if chosen == nil {
		return false, 0
	}

	retry := latest.Add(chosen.Duration).Sub(now)
	if retry <= 0 {
		return false, 0
	}
	return true, retry
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(math.Ceil(retryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
