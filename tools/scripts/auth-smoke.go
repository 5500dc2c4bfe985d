// Package main provides a CI-friendly smoke test for the taskmgr auth endpoints.
//
// It validates, against a running server:
//   - login issues an access token and the four session cookies
//   - the access token is accepted by /auth/me
//   - refresh rotates the refresh secret
//   - replaying the rotated-away secret is rejected
//   - logout revokes the live secret and a later refresh is rejected
//   - logout without cookies is a client error
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type tokenBody struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	ExpiresIn string `json:"expiresIn"`
}

type smoke struct {
	base    string
	client  *http.Client
	timeout time.Duration
	verbose bool
}

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		userID   = flag.Int64("id", 2, "Account id to log in with")
		password = flag.String("password", "Emily.Johnson123", "Account password")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	u, err := url.Parse(*baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fatalf("invalid -url %q", *baseURL)
	}

	s := &smoke{
		base:    strings.TrimRight(*baseURL, "/"),
		client:  &http.Client{},
		timeout: *timeout,
		verbose: *verbose,
	}

	body, _ := json.Marshal(map[string]any{"id": *userID, "password": *password})
	status, raw, cookies := s.call(http.MethodPost, "/api/v1/auth/login", string(body), nil, "")
	if status != http.StatusOK {
		fatalf("login: status %d: %s", status, raw)
	}
	login := mustToken("login", raw)
	if len(cookies) < 4 {
		fatalf("login: expected 4 session cookies, got %d", len(cookies))
	}
	s.logf("login ok: expiresIn=%s cookies=%d", login.ExpiresIn, len(cookies))

	if status, raw, _ = s.call(http.MethodGet, "/api/v1/auth/me", "", nil, login.Token); status != http.StatusOK {
		fatalf("me: status %d: %s", status, raw)
	}
	s.logf("me ok")

	status, raw, rotated := s.call(http.MethodPost, "/api/v1/auth/refresh", "", cookies, "")
	if status != http.StatusOK {
		fatalf("refresh: status %d: %s", status, raw)
	}
	mustToken("refresh", raw)
	if cookieValue(rotated, "rftk") == "" || cookieValue(rotated, "rftk") == cookieValue(cookies, "rftk") {
		fatalf("refresh: refresh secret was not rotated")
	}
	s.logf("refresh ok")

	if status, _, _ = s.call(http.MethodPost, "/api/v1/auth/refresh", "", cookies, ""); status != http.StatusUnauthorized {
		fatalf("replay: expected 401, got %d", status)
	}
	s.logf("replay rejected")

	if status, raw, _ = s.call(http.MethodPost, "/api/v1/auth/logout", "", rotated, ""); status != http.StatusOK {
		fatalf("logout: status %d: %s", status, raw)
	}
	if status, _, _ = s.call(http.MethodPost, "/api/v1/auth/refresh", "", rotated, ""); status != http.StatusUnauthorized {
		fatalf("refresh after logout: expected 401, got %d", status)
	}
	s.logf("logout ok")

	if status, _, _ = s.call(http.MethodPost, "/api/v1/auth/logout", "", nil, ""); status != http.StatusBadRequest {
		fatalf("logout without cookies: expected 400, got %d", status)
	}

	fmt.Println("OK: auth smoke passed")
}

// call performs one request. Cookies are forwarded by hand because the server
// marks them Secure and a cookie jar would withhold them over plain http.
func (s *smoke) call(method, path, body string, cookies []*http.Cookie, bearer string) (int, string, []*http.Cookie) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.base+path, r)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	res, err := s.client.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	return res.StatusCode, strings.TrimSpace(string(raw)), res.Cookies()
}

func (s *smoke) logf(format string, args ...any) {
	if s.verbose {
		fmt.Printf(format+"\n", args...)
	}
}

func mustToken(step, raw string) tokenBody {
	var tb tokenBody
	if err := json.Unmarshal([]byte(raw), &tb); err != nil {
		fatalf("%s: decode body: %v", step, err)
	}
	if !tb.Success || tb.Token == "" {
		fatalf("%s: missing token in %s", step, raw)
	}
	return tb
}

func cookieValue(cookies []*http.Cookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
