// Package token fingerprints bearer credentials.
//
// A fingerprint identifies a token in logs, metrics labels and lookup
// keys without revealing it:
//
//   - Prefix: fp_ (3 characters)
//   - Body: first 12 hex characters of the SHA-256 of the token
//
// Equal compares raw tokens in constant time.
package token
