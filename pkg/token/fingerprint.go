package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// FingerprintPrefix starts every fingerprint.
const FingerprintPrefix = "fp_"

const fingerprintLength = 12

// Hash returns the hex-encoded SHA-256 of token.
func Hash(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// Fingerprint returns a short stable identifier for token, or "" for an
// empty token.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return FingerprintPrefix + Hash(token)[:fingerprintLength]
}

// IsFingerprint reports whether s has the form Fingerprint produces. A
// fingerprint is safe to log.
func IsFingerprint(s string) bool {
	if len(s) != len(FingerprintPrefix)+fingerprintLength || s[:len(FingerprintPrefix)] != FingerprintPrefix {
		return false
	}
	for _, r := range s[len(FingerprintPrefix):] {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// Equal reports whether a and b are the same token using a constant-time
// comparison.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
