package app

import (
	"errors"
	"fmt"
	"net/http"

	authapi "taskmgr/cmd/internal/auth/api"
	"taskmgr/cmd/internal/auth/access"
	"taskmgr/cmd/security/token"
)

// ValidateSecurityConfig enforces taskmgr's security policy at startup and
// returns the refresh-token hasher the runtime must use.
//
// The check fails fast rather than falling back to weaker settings. The hasher is
// built by the same module that performs hashing, so a passing check and the
// digests actually written can not disagree.
func ValidateSecurityConfig(cfg Config, accessCfg access.Config, authCfg authapi.Config) (token.Hasher, error) {
	if len(accessCfg.Key) < access.MinKeyBytes {
		return token.Hasher{}, fmt.Errorf("security policy: TASKMGR_JWT_KEY must be at least %d bytes", access.MinKeyBytes)
	}

	if authCfg.CookieSameSite == http.SameSiteNoneMode && !authCfg.CookieSecure {
		return token.Hasher{}, errors.New("security policy: SameSite=None session cookies must be Secure")
	}

	if !cfg.RequireTokenHMAC {
		return token.HasherFromEnv(), nil
	}

	key, err := token.HMACKeyFromEnv(32)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return token.Hasher{}, errors.New("security policy: TASKMGR_REQUIRE_TOKEN_HMAC=true but TASKMGR_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return token.Hasher{}, errors.New("security policy: TASKMGR_REQUIRE_TOKEN_HMAC=true but TASKMGR_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return token.Hasher{}, err
		}
	}

	h := token.NewHasher(key)
	if !h.Keyed() {
		return token.Hasher{}, errors.New("security policy: TASKMGR_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}
	return h, nil
}
