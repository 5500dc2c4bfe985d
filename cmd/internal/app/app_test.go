package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const emilyLogin = `{"id":2,"password":"Emily.Johnson123"}`

func setAuthEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TASKMGR_JWT_KEY", strings.Repeat("j", 32))
	t.Setenv("TASKMGR_TOKEN_HMAC_KEY", "")
	t.Setenv("TASKMGR_PASSWORD_SCHEME", "")
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	setAuthEnv(t)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func serve(h http.Handler, method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestApp_HealthAndReady(t *testing.T) {
	a := newTestApp(t, Config{})
	h := a.Handler()

	if rr := serve(h, http.MethodGet, "/healthz", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rr.Code)
	}
	if rr := serve(h, http.MethodGet, "/readyz", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d", rr.Code)
	}

	rr := serve(h, http.MethodGet, "/healthz", "", nil)
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers")
	}
}

func TestApp_ReadyRequiresDB(t *testing.T) {
	a := newTestApp(t, Config{ReadinessRequireDB: true})

	if rr := serve(a.Handler(), http.MethodGet, "/readyz", "", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a database, got %d", rr.Code)
	}
}

func TestApp_ReadyFailsWhenStoreUnavailable(t *testing.T) {
	a := newTestApp(t, Config{
		DatabaseURL: "sqlite:" + filepath.Join(t.TempDir(), "taskmgr.db"),
		DBMigrate:   true,
	})
	h := a.Handler()

	if rr := serve(h, http.MethodGet, "/readyz", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d", rr.Code)
	}

	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if rr := serve(h, http.MethodGet, "/readyz", "", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz after close: expected 503, got %d", rr.Code)
	}
}

func TestApp_MemoryLoginAndMetrics(t *testing.T) {
	a := newTestApp(t, Config{MetricsEnabled: true})
	h := a.Handler()

	rr := serve(h, http.MethodPost, "/api/v1/auth/login", emilyLogin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = serve(h, http.MethodGet, "/metrics", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`taskmgr_logins_total{result="success"} 1`,
		`taskmgr_sessions_issued_total 1`,
		`taskmgr_http_requests_total{class="2xx",method="POST"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}

func TestApp_MetricsDisabled(t *testing.T) {
	a := newTestApp(t, Config{})

	if rr := serve(a.Handler(), http.MethodGet, "/metrics", "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with metrics disabled, got %d", rr.Code)
	}
}

func TestApp_SQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskmgr.db")
	a := newTestApp(t, Config{
		DatabaseURL: "sqlite:" + path,
		DBMigrate:   true,
		DBSeed:      true,
	})
	h := a.Handler()

	if rr := serve(h, http.MethodGet, "/readyz", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d", rr.Code)
	}

	rr := serve(h, http.MethodPost, "/api/v1/auth/login", emilyLogin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	cookies := rr.Result().Cookies()

	rr = serve(h, http.MethodPost, "/api/v1/auth/refresh", "", cookies)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = serve(h, http.MethodPost, "/api/v1/auth/refresh", "", cookies)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh: expected 401, got %d", rr.Code)
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	setAuthEnv(t)
	if _, err := New(context.Background(), Config{DatabaseURL: "mysql://localhost/taskmgr"}, log); err == nil {
		t.Fatalf("expected unsupported database URL to fail")
	}

	t.Setenv("TASKMGR_JWT_KEY", "short")
	if _, err := New(context.Background(), Config{}, log); err == nil {
		t.Fatalf("expected short JWT key to fail")
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	content := "TASKMGR_HTTP_ADDR=127.0.0.1:9999\nTASKMGR_DB_SEED=true\nTASKMGR_CORS_ALLOWED_ORIGINS=https://a.example.com, https://b.example.com\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("TASKMGR_ENV_FILE", envFile)
	t.Setenv("TASKMGR_DB_SEED", "false")
	for _, k := range []string{"TASKMGR_HTTP_ADDR", "TASKMGR_CORS_ALLOWED_ORIGINS"} {
		key := k
		_ = os.Unsetenv(key)
		t.Cleanup(func() { _ = os.Unsetenv(key) })
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9999" {
		t.Fatalf("expected addr from env file, got %q", cfg.HTTPAddr)
	}
	if cfg.DBSeed {
		t.Fatalf("process environment must win over the env file")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfig_MissingEnvFileIsFine(t *testing.T) {
	t.Setenv("TASKMGR_ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	t.Setenv("TASKMGR_HTTP_ADDR", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != "0.0.0.0:8080" || !cfg.DBMigrate || cfg.DBSeed {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
