package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError represents a client-side error with a structured error code.
//
// Codes follow the DP-<AREA>-<NNNN> convention, where the numeric part
// mirrors the closest HTTP status where one applies.
type DomainError struct {
	Code    string // Error code (e.g., "DP-AUTH-4010")
	Message string // Human-readable message
	Details string // Optional additional details (server message, field name)
	Status  int    // HTTP status observed, 0 when no response was involved
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// WithStatus returns a copy of the error carrying the observed HTTP status.
func (e *DomainError) WithStatus(status int) *DomainError {
	c := *e
	c.Status = status
	return &c
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Status
	}
	return 0
}

// ============================================================================
// Validation Errors (ARG) - raised before any request is dispatched
// ============================================================================

var (
	// ErrValidation is the generic input validation failure.
	ErrValidation = NewDomainError("DP-ARG-4001", "validation failed")

	// ErrMissingField indicates a required field is empty.
	ErrMissingField = NewDomainError("DP-ARG-4002", "missing required field")

	// ErrWeakPassword indicates the password is shorter than MinPasswordLength.
	ErrWeakPassword = NewDomainError("DP-ARG-4003", "password too short")

	// ErrInvalidAmount indicates a non-positive transfer amount.
	ErrInvalidAmount = NewDomainError("DP-ARG-4004", "amount must be greater than zero")
)

// ============================================================================
// Authorization Errors (AUTH)
// ============================================================================

var (
	// ErrAuthorizationExpired is a 401 from a protected endpoint that could
	// not be recovered by a refresh.
	ErrAuthorizationExpired = NewDomainError("DP-AUTH-4010", "authorization expired")

	// ErrRefreshFailed indicates the refresh exchange itself failed. Callers
	// never receive it from a protected request; they see the original 401.
	ErrRefreshFailed = NewDomainError("DP-AUTH-4011", "refresh failed")
)

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrNotLoggedIn indicates an operation requires a local session.
	ErrNotLoggedIn = NewDomainError("DP-SESS-4010", "not logged in")

	// ErrNoSession indicates a partial update was attempted without a session.
	ErrNoSession = NewDomainError("DP-SESS-4040", "no active session")

	// ErrSessionCorrupt indicates the persisted session record is unreadable.
	ErrSessionCorrupt = NewDomainError("DP-SESS-5001", "persisted session unreadable")

	// ErrSessionLocked indicates the persisted record is sealed with a
	// passphrase other than the configured one.
	ErrSessionLocked = NewDomainError("DP-SESS-4030", "persisted session sealed with a different passphrase")
)

// ============================================================================
// Service Errors (SVC) - non-2xx responses other than 401
// ============================================================================

var (
	// ErrServiceBadRequest is a 400/422 from a service.
	ErrServiceBadRequest = NewDomainError("DP-SVC-4000", "request rejected")

	// ErrServiceNotFound is a 404 from a service.
	ErrServiceNotFound = NewDomainError("DP-SVC-4040", "not found")

	// ErrServiceConflict is a 409 from a service.
	ErrServiceConflict = NewDomainError("DP-SVC-4090", "conflict")

	// ErrServiceRateLimited is a 429 from a service.
	ErrServiceRateLimited = NewDomainError("DP-SVC-4290", "too many requests")

	// ErrServiceUnavailable is a 5xx from a service.
	ErrServiceUnavailable = NewDomainError("DP-SVC-5000", "service error")

	// ErrServiceRejected is any other non-2xx status.
	ErrServiceRejected = NewDomainError("DP-SVC-0000", "unexpected response")

	// ErrMalformedResponse indicates a 2xx response body could not be decoded.
	ErrMalformedResponse = NewDomainError("DP-SVC-5020", "malformed response")
)

// ============================================================================
// Network / System Errors
// ============================================================================

var (
	// ErrNetwork indicates a transport failure (no response received).
	ErrNetwork = NewDomainError("DP-NET-5030", "network error")

	// ErrStorage indicates the local session storage failed.
	ErrStorage = NewDomainError("DP-SYS-5001", "storage error")

	// ErrConfirmationTimeout indicates a transfer did not reach a terminal
	// status within the confirmation window.
	ErrConfirmationTimeout = NewDomainError("DP-PAY-4080", "transfer confirmation timed out")
)

// ResponseError maps a non-2xx HTTP status and server message to the error
// taxonomy. The server message is kept verbatim in Details.
func ResponseError(status int, message string) *DomainError {
	var base *DomainError
	switch {
	case status == http.StatusUnauthorized:
		base = ErrAuthorizationExpired
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		base = ErrServiceBadRequest
	case status == http.StatusNotFound:
		base = ErrServiceNotFound
	case status == http.StatusConflict:
		base = ErrServiceConflict
	case status == http.StatusTooManyRequests:
		base = ErrServiceRateLimited
	case status >= 500:
		base = ErrServiceUnavailable
	default:
		base = ErrServiceRejected
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return base.WithStatus(status).WithDetails(message)
}
