package authapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskmgr/cmd/identity"
)

func TestSetSessionCookies(t *testing.T) {
	h := &Handler{cfg: DefaultConfig()}
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	rr := httptest.NewRecorder()
	h.setSessionCookies(rr, "raw-secret", identity.Account{ID: 2, Username: "Emily.Johnson", RoleName: "Project Manager"}, now)

	got := map[string]*http.Cookie{}
	for _, c := range rr.Result().Cookies() {
		got[c.Name] = c
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 cookies, got %d", len(got))
	}

	want := map[string]string{
		CookieRefresh:  "raw-secret",
		CookieUserID:   "2",
		CookieUserName: "Emily.Johnson",
		CookieUserRole: "Project Manager",
	}
	for name, value := range want {
		c, ok := got[name]
		if !ok {
			t.Fatalf("missing cookie %q", name)
		}
		if c.Value != value {
			t.Fatalf("cookie %q: expected %q, got %q", name, value, c.Value)
		}
		if !c.HttpOnly || !c.Secure {
			t.Fatalf("cookie %q must be HttpOnly and Secure", name)
		}
		if c.SameSite != http.SameSiteStrictMode {
			t.Fatalf("cookie %q: expected SameSite=Strict, got %v", name, c.SameSite)
		}
		if c.Path != "/api/v1/" {
			t.Fatalf("cookie %q: unexpected path %q", name, c.Path)
		}
		if !c.Expires.Equal(now.Add(7 * 24 * time.Hour)) {
			t.Fatalf("cookie %q: unexpected expiry %v", name, c.Expires)
		}
	}
}

func TestClearSessionCookies(t *testing.T) {
	h := &Handler{cfg: DefaultConfig()}

	rr := httptest.NewRecorder()
	h.clearSessionCookies(rr)

	cookies := rr.Result().Cookies()
	if len(cookies) != 4 {
		t.Fatalf("expected 4 cookies, got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.MaxAge >= 0 || c.Value != "" {
			t.Fatalf("cookie %q not expired: max-age=%d value=%q", c.Name, c.MaxAge, c.Value)
		}
	}
}

func TestSessionCookies(t *testing.T) {
	h := &Handler{cfg: DefaultConfig()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	if _, _, ok := h.sessionCookies(req); ok {
		t.Fatalf("expected no session without cookies")
	}

	req.AddCookie(&http.Cookie{Name: CookieRefresh, Value: "tok-123"})
	if _, _, ok := h.sessionCookies(req); ok {
		t.Fatalf("expected no session with only the refresh cookie")
	}

	req.AddCookie(&http.Cookie{Name: CookieUserID, Value: "2"})
	raw, uid, ok := h.sessionCookies(req)
	if !ok {
		t.Fatalf("expected session cookies to be found")
	}
	if raw != "tok-123" || uid != "2" {
		t.Fatalf("unexpected cookie values raw=%q uid=%q", raw, uid)
	}
}

func TestParseUserID(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"2", 2, true},
		{" 17 ", 17, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseUserID(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("parseUserID(%q) = (%d, %v), want (%d, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
