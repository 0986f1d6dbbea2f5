package domain

import (
	"strings"
	"time"
)

// Input constraints enforced before an identity request is dispatched.
const (
	MinPasswordLength = 8
	MinNameLength     = 2
)

// User is the profile returned by the identity service. It is replaced
// wholesale on every successful auth exchange.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CredentialPair holds the bearer tokens of a session. Both tokens are
// present together or both are absent.
type CredentialPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Complete reports whether both tokens are present.
func (p CredentialPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// Empty reports whether both tokens are absent.
func (p CredentialPair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Session is the composite of credentials and profile owned by the
// session store. Values handed out are snapshots.
type Session struct {
	CredentialPair
	User *User `json:"user"`
}

// Authenticated is derived solely from the presence of an access token.
func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

// Clone returns a deep copy so callers cannot mutate store-owned state.
func (s Session) Clone() Session {
	c := s
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	return c
}

// AuthResult is the response body shared by register, login and refresh.
type AuthResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// Validate checks that the exchange returned a usable session.
func (r *AuthResult) Validate() error {
	if r == nil || r.AccessToken == "" || r.RefreshToken == "" {
		return ErrMalformedResponse.WithDetails("credential pair missing from auth response")
	}
	if r.User == nil {
		return ErrMalformedResponse.WithDetails("user missing from auth response")
	}
	return nil
}

// Credentials are the login inputs.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate rejects empty fields.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return ErrMissingField.WithDetails("email")
	}
	if c.Password == "" {
		return ErrMissingField.WithDetails("password")
	}
	return nil
}

// Registration are the register inputs.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Validate rejects empty fields, short names and weak passwords.
func (r Registration) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return ErrMissingField.WithDetails("email")
	}
	if r.Password == "" {
		return ErrMissingField.WithDetails("password")
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrMissingField.WithDetails("name")
	}
	if len(r.Password) < MinPasswordLength {
		return ErrWeakPassword.WithDetails("minimum 8 characters")
	}
	if len([]rune(strings.TrimSpace(r.Name))) < MinNameLength {
		return ErrValidation.WithDetails("name must be at least 2 characters")
	}
	return nil
}
