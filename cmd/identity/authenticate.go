package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"taskmgr/cmd/security/password"
)

// Authenticator checks an (account id, password) pair against a Store.
type Authenticator struct {
	store Store
	pw    password.Config
	log   *slog.Logger
	now   func() time.Time
}

// NewAuthenticator wires a Store to a credential policy.
func NewAuthenticator(store Store, pw password.Config, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{
		store: store,
		pw:    pw,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate returns the account when secret matches its stored digest and
// the account is Active. Unknown id, wrong password and inactive account all
// return ErrInvalidCredentials so callers cannot tell them apart.
//
// When the credential policy asks for it, a matching legacy digest is
// re-hashed under the configured scheme. That upgrade is best-effort.
func (a *Authenticator) Authenticate(ctx context.Context, id int64, secret string) (Account, error) {
	const op = "identity.Authenticate"

	if id <= 0 || secret == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidCredentials}
	}

	acct, err := a.store.GetAccountAuth(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Account{}, OpError{Op: op, Kind: ErrInvalidCredentials}
		}
		return Account{}, err
	}

	ok, err := a.pw.Verify(acct.PasswordDigest, secret)
	if err != nil {
		a.log.Warn("identity.credential.unreadable", "account_id", id, "err", err)
		return Account{}, OpError{Op: op, Kind: ErrInvalidCredentials}
	}
	if !ok || !acct.Active() {
		return Account{}, OpError{Op: op, Kind: ErrInvalidCredentials}
	}

	if a.pw.NeedsRehash(acct.PasswordDigest) {
		a.rehash(ctx, id, secret)
	}

	return acct.Account, nil
}

func (a *Authenticator) rehash(ctx context.Context, id int64, secret string) {
	digest, err := a.pw.Hash(secret)
	if err != nil {
		a.log.Warn("identity.credential.rehash.fail", "account_id", id, "err", err)
		return
	}
	if err := a.store.UpdatePasswordDigest(ctx, id, digest, a.now()); err != nil {
		a.log.Warn("identity.credential.rehash.fail", "account_id", id, "err", err)
		return
	}
	a.log.Info("identity.credential.rehashed", "account_id", id, "scheme", string(a.pw.Scheme))
}
