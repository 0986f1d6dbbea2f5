package command

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/yndnr/dogpay-go/internal/core/domain"
)

func sessionOf(t *testing.T, env *cliEnv) sessionView {
	t.Helper()
	r := env.run(t, nil, "-o", "json", "session", "show")
	if r.err != nil {
		t.Fatalf("session show error = %v", r.err)
	}
	var v sessionView
	if err := json.Unmarshal([]byte(r.stdout), &v); err != nil {
		t.Fatalf("session show output: %v\n%s", err, r.stdout)
	}
	return v
}

func TestLogin_PersistsAcrossInvocations(t *testing.T) {
	env := newCLIEnv(t)

	r := env.run(t, nil, "login", "-e", "a@b.com", "-p", "secret123")
	if r.err != nil {
		t.Fatalf("login error = %v", r.err)
	}
	if !strings.Contains(r.stdout, "Logged in as Ann (a@b.com)") {
		t.Errorf("stdout = %q", r.stdout)
	}
	if !strings.Contains(r.stderr, "-> dashboard") {
		t.Errorf("stderr = %q, want navigation to dashboard", r.stderr)
	}

	v := sessionOf(t, env)
	if !v.Authenticated || v.Email != "a@b.com" || v.View != "dashboard" {
		t.Errorf("session = %+v", v)
	}
	if v.AccessToken == "" || strings.HasPrefix(v.AccessToken, "at-") {
		t.Errorf("AccessToken = %q, want masked", v.AccessToken)
	}
	if !strings.HasPrefix(v.Fingerprint, "fp_") {
		t.Errorf("Fingerprint = %q", v.Fingerprint)
	}
}

func TestLogin_Rejected(t *testing.T) {
	env := newCLIEnv(t)

	r := env.run(t, nil, "login", "--email", "a@b.com", "--password", "wrong-pass")
	if !errors.Is(r.err, domain.ErrAuthorizationExpired) {
		t.Fatalf("error = %v, want 401 mapped to ErrAuthorizationExpired", r.err)
	}
	if !strings.Contains(r.err.Error(), "Invalid credentials") {
		t.Errorf("error = %v, want server message", r.err)
	}
	if n := env.backend.refreshCalls.Load(); n != 0 {
		t.Errorf("refresh calls = %d, want 0", n)
	}
	if sessionOf(t, env).Authenticated {
		t.Error("session stored after failed login")
	}
}

func TestLogin_PasswordStdin(t *testing.T) {
	env := newCLIEnv(t)

	r := env.run(t, strings.NewReader("secret123\n"), "login", "--email", "a@b.com", "--password-stdin")
	if r.err != nil {
		t.Fatalf("login error = %v", r.err)
	}
	if !sessionOf(t, env).Authenticated {
		t.Error("not logged in")
	}
}

func TestRegister(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"weak password", []string{"--email", "c@b.com", "--password", "short", "--name", "Cy"}, domain.ErrWeakPassword},
		{"short name", []string{"--email", "c@b.com", "--password", "secret123", "--name", "C"}, domain.ErrValidation},
		{"duplicate", []string{"--email", "a@b.com", "--password", "secret123", "--name", "Ann"}, domain.ErrServiceConflict},
		{"ok", []string{"--email", "c@b.com", "--password", "secret123", "--name", "Cy"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := env.run(t, nil, append([]string{"register"}, tt.args...)...)
			if tt.wantErr == nil {
				if r.err != nil {
					t.Fatalf("register error = %v", r.err)
				}
				if !strings.Contains(r.stdout, "Registered and logged in") {
					t.Errorf("stdout = %q", r.stdout)
				}
				return
			}
			if !errors.Is(r.err, tt.wantErr) {
				t.Errorf("error = %v, want %v", r.err, tt.wantErr)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)

	r := env.run(t, nil, "logout")
	if r.err != nil {
		t.Fatalf("logout error = %v", r.err)
	}
	if !strings.Contains(r.stderr, "Signed out") {
		t.Errorf("stderr = %q, want navigation to login", r.stderr)
	}
	if v := sessionOf(t, env); v.Authenticated || v.View != "login" {
		t.Errorf("session after logout = %+v", v)
	}

	// A second logout is a no-op.
	if r := env.run(t, nil, "logout"); r.err != nil {
		t.Errorf("second logout error = %v", r.err)
	}
}

func TestWhoami(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)

	r := env.run(t, nil, "-o", "json", "whoami")
	if r.err != nil {
		t.Fatalf("whoami error = %v", r.err)
	}
	var u domain.User
	if err := json.Unmarshal([]byte(r.stdout), &u); err != nil {
		t.Fatalf("whoami output: %v", err)
	}
	if u.ID != "u-1" || u.Email != "a@b.com" {
		t.Errorf("user = %+v", u)
	}
}

func TestSessionRefresh(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)

	r := env.run(t, nil, "session", "refresh")
	if r.err != nil {
		t.Fatalf("session refresh error = %v", r.err)
	}
	if n := env.backend.refreshCalls.Load(); n != 1 {
		t.Errorf("refresh calls = %d, want 1", n)
	}
	// The rotated pair was stored: a protected call succeeds without
	// another refresh.
	if r := env.run(t, nil, "balance"); r.err != nil {
		t.Fatalf("balance error = %v", r.err)
	}
	if n := env.backend.refreshCalls.Load(); n != 1 {
		t.Errorf("refresh calls after balance = %d, want 1", n)
	}
}

func TestSessionRefresh_FailureLogsOut(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)
	env.backend.failRefresh.Store(true)

	r := env.run(t, nil, "session", "refresh")
	if !errors.Is(r.err, domain.ErrRefreshFailed) {
		t.Fatalf("error = %v, want ErrRefreshFailed", r.err)
	}
	if sessionOf(t, env).Authenticated {
		t.Error("session kept after failed refresh")
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"at-1", "***"},
		{"eyJhbGciOiJIUzI1NiJ9.payload.sig", "eyJhbG....sig"},
	}
	for _, tt := range tests {
		if got := maskToken(tt.in); got != tt.want {
			t.Errorf("maskToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSessionCompact(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)

	r := env.run(t, nil, "-o", "json", "session", "compact")
	if r.err != nil {
		t.Fatalf("session compact error = %v", r.err)
	}
	var v storageView
	if err := json.Unmarshal([]byte(r.stdout), &v); err != nil {
		t.Fatalf("session compact output: %v\n%s", err, r.stdout)
	}
	if v.TotalSize != v.LSMSize+v.ValueLogSize {
		t.Errorf("TotalSize = %d, want %d", v.TotalSize, v.LSMSize+v.ValueLogSize)
	}
	if v.LastGC.IsZero() {
		t.Error("LastGC not recorded")
	}

	// Compaction leaves the session intact.
	if s := sessionOf(t, env); !s.Authenticated {
		t.Errorf("session after compact = %+v", s)
	}
}
