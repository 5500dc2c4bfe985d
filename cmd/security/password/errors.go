package password

import "errors"

// Public, stable errors for callers.
var (
	ErrPasswordTooLong = errors.New("password too long")
	ErrInvalidHash     = errors.New("invalid password hash")
	ErrUnknownScheme   = errors.New("unknown password scheme")
)
