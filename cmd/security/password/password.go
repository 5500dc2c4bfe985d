package password

import (
	"crypto/md5" // #nosec G501 -- legacy credential digest, see DigestCredential.
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DigestCredential returns the legacy stored form of a secret: the lowercase hex MD5
// of its UTF-8 bytes, unsalted. Equal secrets always produce equal digests.
func DigestCredential(secret string) string {
	sum := md5.Sum([]byte(secret)) // #nosec G401 -- compatibility with existing account rows.
	return hex.EncodeToString(sum[:])
}

// SchemeOf reports which scheme produced encoded.
func SchemeOf(encoded string) (Scheme, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return SchemeArgon2id, nil
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return SchemeBcrypt, nil
	case isMD5Hex(encoded):
		return SchemeMD5, nil
	default:
		return "", ErrInvalidHash
	}
}

// Hash produces the stored form of secret using the configured scheme.
func (c Config) Hash(secret string) (string, error) {
	if err := c.checkLength(secret); err != nil {
		return "", err
	}

	switch c.Scheme {
	case SchemeMD5, "":
		return DigestCredential(secret), nil
	case SchemeBcrypt:
		return hashBcrypt(secret, c.BcryptCost)
	case SchemeArgon2id:
		return hashArgon2id(secret, c.Argon2)
	default:
		return "", ErrUnknownScheme
	}
}

// Verify checks whether secret matches the stored value, whatever scheme produced it.
// Returns (true, nil) for a match, (false, nil) for mismatch,
// and (false, ErrInvalidHash) for malformed/unsupported values.
func (c Config) Verify(encoded, secret string) (bool, error) {
	if err := c.checkLength(secret); err != nil {
		// An over-long secret can never have been stored by Hash.
		return false, nil
	}

	scheme, err := SchemeOf(encoded)
	if err != nil {
		return false, err
	}

	switch scheme {
	case SchemeMD5:
		got := DigestCredential(secret)
		return subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(encoded))) == 1, nil
	case SchemeBcrypt:
		return verifyBcrypt(encoded, secret)
	default:
		return verifyArgon2id(encoded, secret, c.Argon2)
	}
}

// NeedsRehash reports whether a stored value should be replaced after a successful login.
// It is always false unless RehashOnLogin is enabled.
func (c Config) NeedsRehash(encoded string) bool {
	if !c.RehashOnLogin {
		return false
	}

	scheme, err := SchemeOf(encoded)
	if err != nil || scheme != c.Scheme {
		return true
	}

	switch scheme {
	case SchemeBcrypt:
		cost, err := bcrypt.Cost([]byte(encoded))
		return err != nil || cost < c.BcryptCost
	case SchemeArgon2id:
		params, _, _, err := decode(encoded)
		if err != nil {
			return true
		}
		return params.MemoryKiB < c.Argon2.MemoryKiB || params.Iterations < c.Argon2.Iterations
	default:
		return false
	}
}

func (c Config) checkLength(secret string) error {
	if c.MaxLength > 0 && len(secret) > c.MaxLength {
		return ErrPasswordTooLong
	}
	return nil
}

func isMD5Hex(s string) bool {
	if len(s) != md5.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
