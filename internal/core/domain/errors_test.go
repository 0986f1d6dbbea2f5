package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("DP-TEST-1000", "test message"),
			expected: "[DP-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("DP-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[DP-TEST-1001] test message: extra info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("DP-TEST-1000", "message 1")
	err2 := NewDomainError("DP-TEST-1000", "message 2")
	err3 := NewDomainError("DP-TEST-1001", "message 1")

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}
}

func TestDomainError_CopiesDoNotMutateSentinel(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := ErrNetwork.WithDetails("ledger").WithStatus(0).WithCause(cause)

	if ErrNetwork.Details != "" || ErrNetwork.Cause != nil {
		t.Fatal("sentinel was modified")
	}
	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if !errors.Is(err, ErrNetwork) {
		t.Error("errors.Is should match sentinel after chaining")
	}
}

func TestIsDomainError(t *testing.T) {
	wrapped := fmt.Errorf("wrapped: %w", ErrNoSession)
	if !IsDomainError(wrapped, "DP-SESS-4040") {
		t.Error("IsDomainError should work with wrapped errors")
	}
	if !IsDomainError(wrapped, "") {
		t.Error("IsDomainError with empty code should match any DomainError")
	}
	if IsDomainError(fmt.Errorf("plain"), "") {
		t.Error("IsDomainError should return false for non-DomainError")
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"domain error", ErrNotLoggedIn, "DP-SESS-4010"},
		{"wrapped domain error", fmt.Errorf("wrapped: %w", ErrInvalidAmount), "DP-ARG-4004"},
		{"regular error", fmt.Errorf("regular error"), ""},
		{"nil error", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.expected {
				t.Errorf("GetErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestResponseError(t *testing.T) {
	tests := []struct {
		status  int
		message string
		want    *DomainError
		details string
	}{
		{http.StatusUnauthorized, "invalid token", ErrAuthorizationExpired, "invalid token"},
		{http.StatusBadRequest, "bad email", ErrServiceBadRequest, "bad email"},
		{http.StatusNotFound, "recipient not found", ErrServiceNotFound, "recipient not found"},
		{http.StatusConflict, "email already registered", ErrServiceConflict, "email already registered"},
		{http.StatusTooManyRequests, "", ErrServiceRateLimited, "Too Many Requests"},
		{http.StatusBadGateway, "upstream", ErrServiceUnavailable, "upstream"},
		{http.StatusTeapot, "", ErrServiceRejected, "I'm a teapot"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := ResponseError(tt.status, tt.message)
			if !errors.Is(err, tt.want) {
				t.Errorf("ResponseError(%d) = %v, want code %s", tt.status, err, tt.want.Code)
			}
			if err.Details != tt.details {
				t.Errorf("Details = %q, want %q", err.Details, tt.details)
			}
			if StatusOf(err) != tt.status {
				t.Errorf("StatusOf() = %d, want %d", StatusOf(err), tt.status)
			}
		})
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err  *DomainError
		code string
	}{
		{ErrValidation, "DP-ARG-4001"},
		{ErrMissingField, "DP-ARG-4002"},
		{ErrWeakPassword, "DP-ARG-4003"},
		{ErrInvalidAmount, "DP-ARG-4004"},
		{ErrAuthorizationExpired, "DP-AUTH-4010"},
		{ErrRefreshFailed, "DP-AUTH-4011"},
		{ErrNotLoggedIn, "DP-SESS-4010"},
		{ErrNoSession, "DP-SESS-4040"},
		{ErrSessionCorrupt, "DP-SESS-5001"},
		{ErrNetwork, "DP-NET-5030"},
		{ErrStorage, "DP-SYS-5001"},
		{ErrConfirmationTimeout, "DP-PAY-4080"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Error code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Message == "" {
				t.Error("Error message should not be empty")
			}
		})
	}
}
