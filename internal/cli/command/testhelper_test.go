package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/dogpay-go/internal/cli/config"
	"github.com/yndnr/dogpay-go/internal/core/domain"
)

var testUser = &domain.User{ID: "u-1", Email: "a@b.com", Name: "Ann"}

// backend fakes the identity and ledger services.
type backend struct {
	mu      sync.Mutex
	seq     int
	access  string
	refresh string

	requests     atomic.Int32
	refreshCalls atomic.Int32
	failRefresh  atomic.Bool
	transferred  atomic.Bool

	identity *httptest.Server
	ledger   *httptest.Server
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}

	id := http.NewServeMux()
	id.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in domain.Credentials
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Email != "a@b.com" || in.Password != "secret123" {
			jsonResponse(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
			return
		}
		jsonResponse(w, http.StatusOK, b.issue())
	})
	id.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		var in domain.Registration
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Email == "a@b.com" {
			jsonResponse(w, http.StatusConflict, map[string]string{"error": "Email already registered"})
			return
		}
		jsonResponse(w, http.StatusCreated, b.issue())
	})
	id.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		var in struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		b.mu.Lock()
		valid := in.RefreshToken == b.refresh
		b.mu.Unlock()
		if !valid || b.failRefresh.Load() {
			jsonResponse(w, http.StatusUnauthorized, map[string]string{"error": "Invalid refresh token"})
			return
		}
		jsonResponse(w, http.StatusOK, b.issue())
	})
	id.HandleFunc("GET /auth/me", b.authed(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, testUser)
	}))

	ledger := http.NewServeMux()
	ledger.HandleFunc("GET /payments/balance", b.authed(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, domain.Balance{Balance: 1000, AccountID: "acc-1"})
	}))
	ledger.HandleFunc("GET /payments/history", b.authed(func(w http.ResponseWriter, r *http.Request) {
		txs := []map[string]any{
			{"id": "tx-1", "to_account_id": "acc-1", "amount": 1000, "status": "completed", "created_at": "2024-01-01T00:00:00Z"},
		}
		if b.transferred.Load() {
			txs = append([]map[string]any{
				{"id": "tx-9", "from_account_id": "acc-1", "to_account_id": "acc-2", "amount": 5, "status": "completed", "created_at": "2024-01-02T00:00:00Z"},
			}, txs...)
		}
		jsonResponse(w, http.StatusOK, map[string]any{"transactions": txs})
	}))
	ledger.HandleFunc("POST /payments/transfer", b.authed(func(w http.ResponseWriter, r *http.Request) {
		var in domain.TransferRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.ToEmail == "nobody@b.com" {
			jsonResponse(w, http.StatusNotFound, map[string]string{"error": "Recipient not found"})
			return
		}
		b.transferred.Store(true)
		jsonResponse(w, http.StatusAccepted, map[string]string{
			"message": "Transfer initiated", "transaction_id": "tx-9", "status": "pending",
		})
	}))

	b.identity = httptest.NewServer(b.count(id))
	b.ledger = httptest.NewServer(b.count(ledger))
	t.Cleanup(b.identity.Close)
	t.Cleanup(b.ledger.Close)
	return b
}

func (b *backend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.requests.Add(1)
		next.ServeHTTP(w, r)
	})
}

func (b *backend) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		ok := b.access != "" && r.Header.Get("Authorization") == "Bearer "+b.access
		b.mu.Unlock()
		if !ok {
			jsonResponse(w, http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
			return
		}
		h(w, r)
	}
}

func (b *backend) issue() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.access = fmt.Sprintf("at-%d", b.seq)
	b.refresh = fmt.Sprintf("rt-%d", b.seq)
	return map[string]any{"access_token": b.access, "refresh_token": b.refresh, "user": testUser}
}

// expire invalidates the issued access token; the refresh token stays
// valid.
func (b *backend) expire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = "expired"
}

// jsonResponse writes a JSON response.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// cliEnv is a config file pointing at a backend, with its own session
// directory.
type cliEnv struct {
	backend *backend
	dir     string
	cfgPath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	b := newBackend(t)
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Identity.URL = b.identity.URL
	cfg.Ledger.URL = b.ledger.URL
	cfg.Session.Dir = filepath.Join(dir, "session")
	cfg.Transfer.ConfirmInterval = 10 * time.Millisecond
	cfg.Transfer.ConfirmTimeout = 2 * time.Second
	cfgPath := filepath.Join(dir, "cli.yaml")
	if err := config.Save(cfg, cfgPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return &cliEnv{backend: b, dir: dir, cfgPath: cfgPath}
}

type result struct {
	stdout string
	stderr string
	err    error
}

// run executes one CLI invocation in a fresh App, like a separate process
// sharing the session directory.
func (e *cliEnv) run(t *testing.T, stdin io.Reader, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = stdin

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := app.RunContext(ctx, append([]string{"dogpay-cli", "--config", e.cfgPath}, args...))
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func (e *cliEnv) login(t *testing.T) {
	t.Helper()
	if r := e.run(t, nil, "login", "--email", "a@b.com", "--password", "secret123"); r.err != nil {
		t.Fatalf("login error = %v (stderr %q)", r.err, r.stderr)
	}
}
