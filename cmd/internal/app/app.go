// Package app wires the taskmgr server runtime: config, logging, persistence
// backends, the auth HTTP surface, and metrics.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"taskmgr/cmd/internal/audit"
	authapi "taskmgr/cmd/internal/auth/api"
	"taskmgr/cmd/internal/auth/access"
	"taskmgr/cmd/internal/auth/session"
	"taskmgr/cmd/internal/metrics"
	"taskmgr/cmd/security/password"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// App is the taskmgr server runtime.
type App struct {
	cfg Config
	log Logger

	stores  *stores
	metrics *metrics.Metrics
	auth    *authapi.Handler
}

// New constructs a fully wired App. Auth, session, token and password settings
// are read from the environment and validated before any store is opened.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogColor)
	}

	accessCfg, err := access.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	authCfg := authapi.LoadConfigFromEnv()

	hasher, err := ValidateSecurityConfig(cfg, accessCfg, authCfg)
	if err != nil {
		return nil, err
	}

	tokens, err := access.NewIssuer(accessCfg)
	if err != nil {
		return nil, err
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	var sessOpts []session.Option
	var authOpts []authapi.HandlerOption
	if cfg.MetricsEnabled {
		m = metrics.New()
		sessOpts = append(sessOpts, session.WithObserver(m))
		authOpts = append(authOpts, authapi.WithLoginObserver(m))
	}

	mgr := session.NewManager(sessCfg, st.sessions, hasher, sessOpts...)

	authOpts = append(authOpts,
		authapi.WithAudit(audit.NewRecorder(st.audit, log)),
		authapi.WithPasswordConfig(pwCfg),
	)
	auth, err := authapi.NewHandler(log, authCfg, st.accounts, mgr, tokens, authOpts...)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	log.Info("app.configured",
		"backend", st.backend,
		"password_scheme", string(pwCfg.Scheme),
		"token_digest_keyed", hasher.Keyed(),
		"refresh_ttl", sessCfg.RefreshTTL.String(),
		"access_ttl", tokens.ExpiresIn(),
		"enforce_refresh_expiry", sessCfg.EnforceExpiry,
		"metrics", cfg.MetricsEnabled,
	)

	return &App{
		cfg:     cfg,
		log:     log,
		stores:  st,
		metrics: m,
		auth:    auth,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "backend", a.stores.backend)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		_ = a.Close(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

// Close releases database resources.
func (a *App) Close(ctx context.Context) error {
	var s Store = a.stores
	return s.Close(ctx)
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
