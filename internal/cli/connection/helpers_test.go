package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/dogpay-go/internal/core/domain"
	"github.com/yndnr/dogpay-go/internal/telemetry/logger"
	"github.com/yndnr/dogpay-go/internal/telemetry/metric"
)

// memSession is an in-memory SessionWriter.
type memSession struct {
	mu      sync.Mutex
	sess    domain.Session
	logouts atomic.Int32
}

func (m *memSession) Get() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.Clone()
}

func (m *memSession) SetAuth(_ context.Context, a, r string, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = domain.Session{CredentialPair: domain.CredentialPair{AccessToken: a, RefreshToken: r}, User: u}
	return nil
}

func (m *memSession) Logout(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = domain.Session{}
	m.logouts.Add(1)
	return nil
}

// fakeServices emulates the identity and ledger services. Access tokens
// are valid until rotated by a refresh; refresh tokens rotate too.
type fakeServices struct {
	t *testing.T

	mu      sync.Mutex
	seq     int
	access  string
	refresh string

	refreshCalls atomic.Int32
	balanceCalls atomic.Int32
	failRefresh  atomic.Bool
	refreshDelay atomic.Int64
	alwaysReject atomic.Bool
	requestIDs   sync.Map // path -> *[]string
	lastTransfer atomic.Pointer[domain.TransferRequest]
	identity     *httptest.Server
	ledger       *httptest.Server
}

var testUser = &domain.User{ID: "u-1", Email: "a@b.com", Name: "Ann"}

func newFakeServices(t *testing.T) *fakeServices {
	t.Helper()
	f := &fakeServices{t: t, access: "at-0", refresh: "rt-0"}

	idMux := http.NewServeMux()
	idMux.HandleFunc("POST /auth/login", f.handleLogin)
	idMux.HandleFunc("POST /auth/register", f.handleRegister)
	idMux.HandleFunc("POST /auth/refresh", f.handleRefresh)
	idMux.HandleFunc("GET /auth/me", f.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, testUser)
	}))

	ledgerMux := http.NewServeMux()
	ledgerMux.HandleFunc("GET /payments/balance", f.authed(func(w http.ResponseWriter, r *http.Request) {
		f.balanceCalls.Add(1)
		writeJSON(w, http.StatusOK, domain.Balance{Balance: 1000, AccountID: "acc-1"})
	}))
	ledgerMux.HandleFunc("GET /payments/history", f.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"transactions": []map[string]any{
			{"id": "tx-2", "to_account_id": "acc-2", "amount": 5, "status": "pending", "created_at": "2024-01-02T00:00:00Z"},
			{"id": "tx-1", "to_account_id": "acc-1", "amount": 1000, "status": "completed", "created_at": "2024-01-01T00:00:00Z"},
		}})
	}))
	ledgerMux.HandleFunc("POST /payments/transfer", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var in domain.TransferRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
			return
		}
		f.lastTransfer.Store(&in)
		if in.ToEmail == "nobody@b.com" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Recipient not found"})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"message": "Transfer initiated", "transaction_id": "tx-9", "status": "pending",
		})
	}))

	f.identity = httptest.NewServer(f.record(idMux))
	f.ledger = httptest.NewServer(f.record(ledgerMux))
	t.Cleanup(f.identity.Close)
	t.Cleanup(f.ledger.Close)
	return f
}

func (f *fakeServices) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, _ := f.requestIDs.LoadOrStore(r.URL.Path, &[]string{})
		ids := v.(*[]string)
		f.mu.Lock()
		*ids = append(*ids, r.Header.Get("X-Request-ID"))
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *fakeServices) idsFor(path string) []string {
	v, ok := f.requestIDs.Load(path)
	if !ok {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), *v.(*[]string)...)
}

func (f *fakeServices) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		ok := r.Header.Get("Authorization") == "Bearer "+f.access
		f.mu.Unlock()
		if !ok || f.alwaysReject.Load() {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
			return
		}
		h(w, r)
	}
}

func (f *fakeServices) issue() map[string]any {
	f.seq++
	f.access = fmt.Sprintf("at-%d", f.seq)
	f.refresh = fmt.Sprintf("rt-%d", f.seq)
	return map[string]any{"access_token": f.access, "refresh_token": f.refresh, "user": testUser}
}

func (f *fakeServices) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in domain.Credentials
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.Email != "a@b.com" || in.Password != "secret123" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	f.mu.Lock()
	body := f.issue()
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, body)
}

func (f *fakeServices) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in domain.Registration
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.Email == "a@b.com" {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Email already registered"})
		return
	}
	f.mu.Lock()
	body := f.issue()
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, body)
}

func (f *fakeServices) handleRefresh(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)
	if r.Header.Get("Authorization") != "" {
		f.t.Errorf("refresh request carried Authorization header")
	}
	if d := time.Duration(f.refreshDelay.Load()); d > 0 {
		time.Sleep(d)
	}
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRefresh.Load() || in.RefreshToken != f.refresh {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid refresh token"})
		return
	}
	writeJSON(w, http.StatusOK, f.issue())
}

// expire invalidates the current access token without touching the
// refresh token, as a 15 minute expiry would.
func (f *fakeServices) expire() {
	f.mu.Lock()
	f.access = "expired-" + f.access
	f.mu.Unlock()
}

func (f *fakeServices) currentAccess() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access
}

func (f *fakeServices) currentRefresh() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refresh
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type testEnv struct {
	f          *fakeServices
	store      *memSession
	m          *Manager
	metrics    *metric.Registry
	terminated atomic.Int32
}

func newTestEnv(t *testing.T, singleFlight bool) *testEnv {
	t.Helper()
	env := &testEnv{f: newFakeServices(t), store: &memSession{}, metrics: metric.NewRegistry()}
	cfg := Config{
		IdentityURL:  env.f.identity.URL,
		LedgerURL:    strings.TrimPrefix(env.f.ledger.URL, "http://"),
		Timeout:      5 * time.Second,
		SingleFlight: singleFlight,
		UserAgent:    "dogpay-cli/test",
	}
	m, err := NewManager(cfg, env.store,
		WithMetrics(env.metrics),
		WithLogger(logger.Discard()),
		WithOnTerminated(func(context.Context) { env.terminated.Add(1) }),
	)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	env.m = m
	return env
}

// login performs a real login and stores the session.
func (env *testEnv) login(t *testing.T) {
	t.Helper()
	res, err := env.m.Identity.Login(context.Background(), domain.Credentials{Email: "a@b.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := env.store.SetAuth(context.Background(), res.AccessToken, res.RefreshToken, res.User); err != nil {
		t.Fatalf("SetAuth() error = %v", err)
	}
}
