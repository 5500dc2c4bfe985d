// Package token provides refresh-token digest primitives for taskmgr.
//
// It is the single source of truth for how refresh secrets are stored at rest.
//
// Modes:
// - Default: SHA-256(secret).
// - Keyed: HMAC-SHA256(secret, key) when TASKMGR_TOKEN_HMAC_KEY is set.
//
// Both modes emit unpadded base64url (43 chars), safe for cookies and index columns.
// Policy:
//   - If RequireTokenHMAC=true, callers MUST enforce a minimum key size (>= 32 bytes)
//     before constructing the Hasher.
package token
