package connection

import (
	"context"

	"github.com/yndnr/dogpay-go/internal/core/domain"
)

// Identity service endpoints.
const (
	pathRegister = "/auth/register"
	pathLogin    = "/auth/login"
	pathRefresh  = "/auth/refresh"
	pathMe       = "/auth/me"
)

// IdentityClient talks to the identity service.
type IdentityClient struct {
	http *HTTPClient
}

// NewIdentityClient wraps c.
func NewIdentityClient(c *HTTPClient) *IdentityClient {
	return &IdentityClient{http: c}
}

// Register creates an account and returns its first session.
func (c *IdentityClient) Register(ctx context.Context, in domain.Registration) (*domain.AuthResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	resp, err := c.http.PostUnauthenticated(ctx, pathRegister, in)
	if err != nil {
		return nil, err
	}
	var out domain.AuthResult
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a session.
func (c *IdentityClient) Login(ctx context.Context, in domain.Credentials) (*domain.AuthResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	resp, err := c.http.PostUnauthenticated(ctx, pathLogin, in)
	if err != nil {
		return nil, err
	}
	var out domain.AuthResult
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges a refresh token. It bypasses the interceptor chain so
// a rejected refresh can never trigger another refresh.
func (c *IdentityClient) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	if refreshToken == "" {
		return nil, domain.ErrMissingField.WithDetails("refresh_token")
	}
	resp, err := c.http.PostDirect(ctx, pathRefresh, map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	var out domain.AuthResult
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the profile of the current session.
func (c *IdentityClient) Me(ctx context.Context) (*domain.User, error) {
	resp, err := c.http.Get(ctx, pathMe)
	if err != nil {
		return nil, err
	}
	var out domain.User
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
