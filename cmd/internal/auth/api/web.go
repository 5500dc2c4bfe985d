package authapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskmgr/cmd/identity"
)

var sessionCookieNames = []string{CookieRefresh, CookieUserID, CookieUserName, CookieUserRole}

// setSessionCookies writes the four session cookies. All are HttpOnly.
func (h *Handler) setSessionCookies(w http.ResponseWriter, rawSecret string, acct identity.Account, now time.Time) {
	exp := now.Add(h.cfg.CookieTTL)
	values := map[string]string{
		CookieRefresh:  rawSecret,
		CookieUserID:   strconv.FormatInt(acct.ID, 10),
		CookieUserName: acct.Username,
		CookieUserRole: acct.RoleName,
	}
	for _, name := range sessionCookieNames {
		h.setCookie(w, name, values[name], exp)
	}
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range sessionCookieNames {
		h.expireCookie(w, name)
	}
}

// sessionCookies returns the refresh secret and raw user id when both cookies are present.
func (h *Handler) sessionCookies(r *http.Request) (rawSecret string, userID string, ok bool) {
	rc, err := r.Cookie(CookieRefresh)
	if err != nil {
		return "", "", false
	}
	uc, err := r.Cookie(CookieUserID)
	if err != nil {
		return "", "", false
	}
	rawSecret = strings.TrimSpace(rc.Value)
	userID = strings.TrimSpace(uc.Value)
	if rawSecret == "" || userID == "" {
		return "", "", false
	}
	return rawSecret, userID, true
}

func parseUserID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp.UTC(),
		MaxAge:   int(h.cfg.CookieTTL / time.Second),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) expireCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}
