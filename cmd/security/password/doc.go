// Package password provides credential digest and verification utilities for taskmgr.
//
// Three schemes are supported and detected from the stored value:
// - md5: legacy unsalted lowercase-hex MD5 digest (the compatibility default)
// - bcrypt: golang.org/x/crypto/bcrypt, "$2a$"/"$2b$" prefixed
// - argon2id: PHC-like "$argon2id$v=19$m=..,t=..,p=..$salt$hash"
//
// Security notes:
// - md5 is deterministic and unsalted. It is kept only so existing account rows keep working.
//   New deployments should set TASKMGR_PASSWORD_SCHEME to bcrypt or argon2id and
//   optionally enable rehash-on-login to migrate stored digests.
// - Stored values are treated as untrusted input during Verify and are validated accordingly.
package password
