// Package authapi is the HTTP boundary of the auth subsystem: cookie-based
// login, refresh and logout, bearer verification, and the role-gated session
// maintenance endpoints.
package authapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"taskmgr/cmd/identity"
	"taskmgr/cmd/internal/audit"
	"taskmgr/cmd/internal/auth/access"
	"taskmgr/cmd/internal/auth/session"
	"taskmgr/cmd/internal/authz"
	"taskmgr/cmd/security/password"
)

// Login outcomes reported to LoginObserver.
const (
	LoginSuccess         = "success"
	LoginInvalid         = "invalid_credentials"
	LoginRateLimited     = "rate_limited"
	LoginAlreadyLoggedIn = "already_authenticated"
	LoginInternalFailure = "error"
)

// LoginObserver receives one call per login attempt.
type LoginObserver interface {
	LoginAttempt(result string)
}

// Handler wires HTTP auth endpoints to the account, session and token services.
type Handler struct {
	log *slog.Logger
	cfg Config

	accounts identity.Store
	authn    *identity.Authenticator
	sessions *session.Manager
	tokens   *access.Issuer
	policies authz.Table

	audit        *audit.Recorder
	auditTimeout time.Duration
	logins       LoginObserver
	pwCfg        password.Config
	now          func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithAudit records auth events and enables login throttling.
func WithAudit(rec *audit.Recorder) HandlerOption {
	return func(h *Handler) { h.audit = rec }
}

// WithAuditTimeout bounds each audit write. The default follows the session
// store timeout, or defaultAuditTimeout when that is disabled.
func WithAuditTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.auditTimeout = d
		}
	}
}

// WithLoginObserver reports login outcomes (metrics).
func WithLoginObserver(o LoginObserver) HandlerOption {
	return func(h *Handler) {
		if o != nil {
			h.logins = o
		}
	}
}

// WithPolicies overrides the default role table.
func WithPolicies(t authz.Table) HandlerOption {
	return func(h *Handler) { h.policies = t }
}

// WithPasswordConfig sets the credential policy used to verify logins.
func WithPasswordConfig(cfg password.Config) HandlerOption {
	return func(h *Handler) { h.pwCfg = cfg }
}

// WithClock overrides the time source used for tokens and throttling.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

const defaultAuditTimeout = 5 * time.Second

type nopLoginObserver struct{}

func (nopLoginObserver) LoginAttempt(string) {}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, accounts identity.Store, sessions *session.Manager, tokens *access.Issuer, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if accounts == nil {
		return nil, errors.New("auth: nil account store")
	}
	if sessions == nil {
		return nil, errors.New("auth: nil session manager")
	}
	if tokens == nil {
		return nil, errors.New("auth: nil token issuer")
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		accounts: accounts,
		sessions: sessions,
		tokens:   tokens,
		policies: authz.Default(),
		logins:   nopLoginObserver{},
		pwCfg:    password.DefaultConfig(),
		now:      func() time.Time { return time.Now().UTC() },

		auditTimeout: sessions.Config().StoreTimeout,
	}
	if h.auditTimeout <= 0 {
		h.auditTimeout = defaultAuditTimeout
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	if h.cfg.MaxBodyBytes <= 0 {
		h.cfg.MaxBodyBytes = 1 << 20
	}

	h.authn = identity.NewAuthenticator(accounts, h.pwCfg, log)
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/v1/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /api/v1/auth/logout", h.handleLogout)
	mux.HandleFunc("POST /api/v1/auth/rac", h.handleRemoveCookies)
	mux.HandleFunc("GET /api/v1/auth/me", h.handleMe)

	mux.HandleFunc("GET /api/v1/tokens", h.handleListSessions)
	mux.HandleFunc("DELETE /api/v1/tokens/{id}", h.handleDeleteSession)
	mux.HandleFunc("DELETE /api/v1/tokens/type/{type}", h.handlePurgeSessions)
}

// Ping checks the account and session stores.
func (h *Handler) Ping(ctx context.Context) error {
	if err := h.accounts.Ping(ctx); err != nil {
		return err
	}
	return h.sessions.Ping(ctx)
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.sessionCookies(r); ok {
		h.logins.LoginAttempt(LoginAlreadyLoggedIn)
		writeError(w, http.StatusBadRequest, "already_authenticated", "a user is already authenticated; log out first")
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.ID <= 0 || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id and password are required")
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()

	if blocked, retryAfter, err := h.checkLoginIPThrottle(ctx, ip, now); err != nil {
		h.log.Error("auth.login.throttle_ip.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return
	} else if blocked {
		h.rejectRateLimited(ctx, w, req.ID, ip, ua, retryAfter)
		return
	}
	if blocked, retryAfter, err := h.checkLoginUserThrottle(ctx, req.ID, now); err != nil {
		h.log.Error("auth.login.throttle_user.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return
	} else if blocked {
		h.rejectRateLimited(ctx, w, req.ID, ip, ua, retryAfter)
		return
	}

	acct, err := h.authn.Authenticate(ctx, req.ID, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.auditLoginFailed(ctx, req.ID, ip, ua, "invalid_credentials")
			h.logins.LoginAttempt(LoginInvalid)
			h.log.Info("auth.login.fail", "user_id", req.ID, "ip", ipString(ip))
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid account or inactive account")
			return
		}
		h.logins.LoginAttempt(LoginInternalFailure)
		h.log.Error("auth.login.lookup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	grant, err := h.sessions.Start(ctx, acct.ID, ipString(ip))
	if err != nil {
		h.logins.LoginAttempt(LoginInternalFailure)
		writeSessionError(w, h.log, "auth.login.issue_session.fail", err)
		return
	}

	token, _, err := h.tokens.Mint(acct.ID, acct.Username, acct.RoleName, now)
	if err != nil {
		// The session was never handed out; do not leave it usable.
		_ = h.sessions.Revoke(context.WithoutCancel(ctx), &grant.Session, ipString(ip), "")
		h.logins.LoginAttempt(LoginInternalFailure)
		h.log.Error("auth.login.mint.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditLoginSuccess(ctx, acct.ID, grant.Session.ID, ip, ua)
	h.logins.LoginAttempt(LoginSuccess)
	h.log.Info("auth.login.success", "user_id", acct.ID, "session_id", grant.Session.ID)

	h.setSessionCookies(w, grant.RawSecret, acct, now)
	writeJSON(w, http.StatusOK, tokenResponse{
		Success:   true,
		Message:   fmt.Sprintf("User with ID %d logged in successfully", acct.ID),
		Token:     token,
		ExpiresIn: h.tokens.ExpiresIn(),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()

	raw, uidRaw, ok := h.sessionCookies(r)
	if !ok {
		writeUnauthorized(w)
		return
	}
	userID, ok := parseUserID(uidRaw)
	if !ok {
		h.auditRefreshRejected(ctx, 0, ip, ua)
		writeUnauthorized(w)
		return
	}

	// The account is loaded before rotating so a failure here cannot strand a
	// freshly rotated session the client never receives.
	acct, err := h.accounts.GetAccount(ctx, userID)
	if err != nil {
		if identity.IsNotFound(err) {
			h.auditRefreshRejected(ctx, userID, ip, ua)
			writeUnauthorized(w)
			return
		}
		h.log.Error("auth.refresh.account.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if !acct.Active() {
		h.auditRefreshRejected(ctx, userID, ip, ua)
		writeUnauthorized(w)
		return
	}

	grant, err := h.sessions.Renew(ctx, userID, raw, ipString(ip))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			h.auditRefreshRejected(ctx, userID, ip, ua)
			h.log.Info("auth.refresh.rejected", "user_id", userID, "ip", ipString(ip))
		}
		writeSessionError(w, h.log, "auth.refresh.fail", err)
		return
	}

	now := h.now()
	token, _, err := h.tokens.Mint(acct.ID, acct.Username, acct.RoleName, now)
	if err != nil {
		h.log.Error("auth.refresh.mint.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditRefreshSuccess(ctx, userID, grant.Session.ID, ip, ua)

	h.setSessionCookies(w, grant.RawSecret, acct, now)
	writeJSON(w, http.StatusOK, tokenResponse{
		Success:   true,
		Token:     token,
		ExpiresIn: h.tokens.ExpiresIn(),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	raw, uidRaw, ok := h.sessionCookies(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "no_session", "no user to log out")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)

	msg := "logged out"
	if userID, valid := parseUserID(uidRaw); valid {
		revoked, err := h.sessions.End(ctx, userID, raw, ipString(ip))
		if err != nil {
			writeSessionError(w, h.log, "auth.logout.fail", err)
			return
		}
		if revoked {
			h.auditLogout(ctx, userID, ip, r.UserAgent())
		}
		msg = fmt.Sprintf("User with ID %d logged out successfully.", userID)
	}

	h.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: msg})
}

func (h *Handler) handleRemoveCookies(w http.ResponseWriter, _ *http.Request) {
	h.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, messageResponse{Success: true})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	acct, err := h.accounts.GetAccount(r.Context(), claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeUnauthorized(w)
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
		State:    acct.State,
	})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requirePolicy(w, r, authz.CanGetTokens); !ok {
		return
	}

	list, err := h.sessions.List(r.Context())
	if err != nil {
		writeSessionError(w, h.log, "admin.sessions.list.fail", err)
		return
	}

	writeJSON(w, http.StatusOK, sessionListResponse{
		Success: true,
		Message: "Get all tokens successfully.",
		Result:  toSessionResponses(list),
	})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requirePolicy(w, r, authz.CanDeleteTokens)
	if !ok {
		return
	}

	id := r.PathValue("id")
	err := h.sessions.Delete(r.Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	default:
		writeSessionError(w, h.log, "admin.sessions.delete.fail", err)
		return
	}

	h.auditSessionDeleted(r.Context(), claims.UserID, id, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	writeJSON(w, http.StatusOK, messageResponse{
		Success: true,
		Message: fmt.Sprintf("Token with ID %s has been deleted.", id),
	})
}

func (h *Handler) handlePurgeSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requirePolicy(w, r, authz.CanDeleteTokens)
	if !ok {
		return
	}

	kind, err := session.ParsePurgeKind(r.PathValue("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", `type must be "all" or "inactive"`)
		return
	}

	n, err := h.sessions.Purge(r.Context(), kind)
	if err != nil {
		writeSessionError(w, h.log, "admin.sessions.purge.fail", err)
		return
	}

	h.auditSessionsPurged(r.Context(), claims.UserID, string(kind), n, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	h.log.Info("admin.sessions.purged", "type", string(kind), "deleted", n, "by", claims.UserID)
	writeJSON(w, http.StatusOK, purgeResponse{
		Success: true,
		Message: fmt.Sprintf("%d tokens have been deleted.", n),
		Deleted: n,
	})
}

// ---- helpers ----

func (h *Handler) rejectRateLimited(ctx context.Context, w http.ResponseWriter, userID int64, ip net.IP, ua string, retryAfter time.Duration) {
	h.auditLoginRateLimited(ctx, userID, ip, ua, retryAfter)
	h.logins.LoginAttempt(LoginRateLimited)
	writeRateLimited(w, retryAfter)
}

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (access.Claims, bool) {
	token := bearerToken(r)
	if token == "" {
		writeUnauthorized(w)
		return access.Claims{}, false
	}
	claims, err := h.tokens.Verify(token, h.now())
	if err != nil {
		h.log.Debug("auth.bearer.rejected", "err", err)
		writeUnauthorized(w)
		return access.Claims{}, false
	}
	return claims, true
}

func (h *Handler) requirePolicy(w http.ResponseWriter, r *http.Request, p authz.Policy) (access.Claims, bool) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return access.Claims{}, false
	}
	if !h.policies.Allows(p, claims.Role) {
		writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
		return access.Claims{}, false
	}
	return claims, true
}
