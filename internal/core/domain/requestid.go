package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestIDPrefix is the prefix for outbound request IDs.
const RequestIDPrefix = "dpreq-"

// NewRequestID generates a request ID for the X-Request-ID header.
// Format: dpreq-{ulid_lowercase}.
func NewRequestID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return RequestIDPrefix + strings.ToLower(id.String()), nil
}

// IsValidRequestID checks the prefix and ULID body.
func IsValidRequestID(id string) bool {
	if !strings.HasPrefix(id, RequestIDPrefix) {
		return false
	}
	_, err := ulid.Parse(strings.ToUpper(id[len(RequestIDPrefix):]))
	return err == nil
}
