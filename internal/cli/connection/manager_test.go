package connection

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/dogpay-go/internal/core/domain"
	"github.com/yndnr/dogpay-go/internal/telemetry/logger"
	"github.com/yndnr/dogpay-go/internal/telemetry/metric"
)

func TestManager_LoginThenBalance(t *testing.T) {
	env := newTestEnv(t, true)
	env.login(t)

	if got := env.store.Get().AccessToken; got != env.f.currentAccess() {
		t.Fatalf("stored access token = %q, want %q", got, env.f.currentAccess())
	}

	bal, err := env.m.Ledger.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if bal.Balance != 1000 || bal.AccountID != "acc-1" {
		t.Errorf("balance = %+v", bal)
	}
	if env.f.refreshCalls.Load() != 0 {
		t.Errorf("refresh calls = %d, want 0", env.f.refreshCalls.Load())
	}
	if v := testutil.ToFloat64(env.metrics.RequestsTotal.WithLabelValues(ServiceLedger, "GET", "200")); v != 1 {
		t.Errorf("ledger requests = %v, want 1", v)
	}
}

func TestManager_NoSessionTerminates(t *testing.T) {
	env := newTestEnv(t, true)

	_, err := env.m.Ledger.GetBalance(context.Background())
	if !errors.Is(err, domain.ErrAuthorizationExpired) {
		t.Fatalf("GetBalance() error = %v, want authorization expired", err)
	}
	if env.f.refreshCalls.Load() != 0 {
		t.Errorf("refresh calls = %d, want 0", env.f.refreshCalls.Load())
	}
	if env.terminated.Load() != 1 {
		t.Errorf("terminations = %d, want 1", env.terminated.Load())
	}
}

func TestManager_ExpiredAccessTokenIsRefreshed(t *testing.T) {
	env := newTestEnv(t, true)
	env.login(t)
	env.f.expire()

	bal, err := env.m.Ledger.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if bal.Balance != 1000 {
		t.Errorf("balance = %v, want 1000", bal.Balance)
	}
	if env.f.refreshCalls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", env.f.refreshCalls.Load())
	}
	if env.f.balanceCalls.Load() != 1 {
		t.Errorf("successful balance calls = %d, want 1", env.f.balanceCalls.Load())
	}
	s := env.store.Get()
	if s.AccessToken != env.f.currentAccess() || s.RefreshToken != env.f.currentRefresh() {
		t.Errorf("store = %+v, want rotated pair", s.CredentialPair)
	}

	ids := env.f.idsFor("/payments/balance")
	if len(ids) != 2 {
		t.Fatalf("balance attempts = %d, want 2", len(ids))
	}
	if ids[0] != ids[1] || !domain.IsValidRequestID(ids[0]) {
		t.Errorf("request ids = %v, want one valid id reused by the replay", ids)
	}
	if refreshIDs := env.f.idsFor("/auth/refresh"); len(refreshIDs) != 1 || refreshIDs[0] == ids[0] {
		t.Errorf("refresh request ids = %v", refreshIDs)
	}
	if v := testutil.ToFloat64(env.metrics.ReplaysTotal); v != 1 {
		t.Errorf("replays = %v, want 1", v)
	}
}

func TestManager_FailedRefreshLogsOut(t *testing.T) {
	env := newTestEnv(t, true)
	env.login(t)
	env.f.expire()
	env.f.failRefresh.Store(true)

	_, err := env.m.Ledger.GetBalance(context.Background())
	if !errors.Is(err, domain.ErrAuthorizationExpired) {
		t.Fatalf("GetBalance() error = %v, want authorization expired", err)
	}
	var de *domain.DomainError
	if !errors.As(err, &de) || de.Details != "Invalid token" || de.Status != 401 {
		t.Errorf("error = %+v, want original 401 body", de)
	}
	if s := env.store.Get(); s.Authenticated() {
		t.Error("session still authenticated after failed refresh")
	}
	if env.terminated.Load() != 1 {
		t.Errorf("terminations = %d, want 1", env.terminated.Load())
	}
	if env.f.refreshCalls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", env.f.refreshCalls.Load())
	}
}

func TestManager_ReplayRejectedIsNotRetried(t *testing.T) {
	env := newTestEnv(t, true)
	env.login(t)
	env.f.alwaysReject.Store(true)

	_, err := env.m.Ledger.GetBalance(context.Background())
	if !errors.Is(err, domain.ErrAuthorizationExpired) {
		t.Fatalf("GetBalance() error = %v, want authorization expired", err)
	}
	if env.f.refreshCalls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", env.f.refreshCalls.Load())
	}
	if got := len(env.f.idsFor("/payments/balance")); got != 2 {
		t.Errorf("balance attempts = %d, want 2", got)
	}
	if env.terminated.Load() != 0 {
		t.Errorf("terminations = %d, want 0", env.terminated.Load())
	}
}

func TestManager_ConcurrentExpiryRefreshesOnce(t *testing.T) {
	env := newTestEnv(t, true)
	env.login(t)
	env.f.refreshDelay.Store(int64(100 * time.Millisecond))
	env.f.expire()

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.m.Ledger.GetBalance(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("GetBalance() error = %v", err)
		}
	}
	if env.f.refreshCalls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", env.f.refreshCalls.Load())
	}
	if env.f.balanceCalls.Load() != callers {
		t.Errorf("successful balance calls = %d, want %d", env.f.balanceCalls.Load(), callers)
	}
	if env.terminated.Load() != 0 {
		t.Errorf("terminations = %d, want 0", env.terminated.Load())
	}
}

func TestManager_LoginFailureDoesNotRefresh(t *testing.T) {
	env := newTestEnv(t, true)
	env.login(t)

	_, err := env.m.Identity.Login(context.Background(), domain.Credentials{Email: "a@b.com", Password: "wrong-pass"})
	if !errors.Is(err, domain.ErrAuthorizationExpired) {
		t.Fatalf("Login() error = %v, want 401 mapping", err)
	}
	var de *domain.DomainError
	if !errors.As(err, &de) || de.Details != "Invalid credentials" {
		t.Errorf("error = %v, want server message in details", err)
	}
	if env.f.refreshCalls.Load() != 0 || env.terminated.Load() != 0 || env.store.logouts.Load() != 0 {
		t.Errorf("login 401 triggered recovery: refresh=%d terminated=%d logouts=%d",
			env.f.refreshCalls.Load(), env.terminated.Load(), env.store.logouts.Load())
	}
}

func TestManager_Identity(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	if _, err := env.m.Identity.Register(ctx, domain.Registration{Email: "c@d.com", Password: "short", Name: "Cy"}); !errors.Is(err, domain.ErrWeakPassword) {
		t.Errorf("Register(weak) error = %v", err)
	}
	if _, err := env.m.Identity.Register(ctx, domain.Registration{Email: "a@b.com", Password: "secret123", Name: "Ann"}); !errors.Is(err, domain.ErrServiceConflict) {
		t.Errorf("Register(duplicate) error = %v", err)
	}
	res, err := env.m.Identity.Register(ctx, domain.Registration{Email: "c@d.com", Password: "secret123", Name: "Cy"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := res.Validate(); err != nil {
		t.Errorf("Register() result invalid: %v", err)
	}
	if _, err := env.m.Identity.Refresh(ctx, ""); !errors.Is(err, domain.ErrMissingField) {
		t.Errorf("Refresh(\"\") error = %v", err)
	}

	env.login(t)
	u, err := env.m.Identity.Me(ctx)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if u.ID != testUser.ID || u.Email != testUser.Email {
		t.Errorf("Me() = %+v", u)
	}
}

func TestManager_Ledger(t *testing.T) {
	env := newTestEnv(t, true)
	env.login(t)
	ctx := context.Background()

	txs, err := env.m.Ledger.GetHistory(ctx)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(txs) != 2 || txs[0].ID != "tx-2" || txs[1].FromAccountID != nil {
		t.Errorf("history = %+v", txs)
	}

	rec, err := env.m.Ledger.Transfer(ctx, domain.TransferRequest{ToEmail: "c@d.com", Amount: 12.5, Description: "lunch"})
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if rec.TransactionID != "tx-9" || rec.Status != domain.StatusPending {
		t.Errorf("receipt = %+v", rec)
	}
	if sent := env.f.lastTransfer.Load(); sent == nil || sent.Amount != 12.5 || sent.Description != "lunch" {
		t.Errorf("sent transfer = %+v", sent)
	}

	if _, err := env.m.Ledger.Transfer(ctx, domain.TransferRequest{ToEmail: "nobody@b.com", Amount: 1}); !errors.Is(err, domain.ErrServiceNotFound) {
		t.Errorf("Transfer(unknown) error = %v", err)
	}

	env.f.lastTransfer.Store(nil)
	if _, err := env.m.Ledger.Transfer(ctx, domain.TransferRequest{ToEmail: "c@d.com", Amount: 0}); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("Transfer(0) error = %v", err)
	}
	if env.f.lastTransfer.Load() != nil {
		t.Error("invalid transfer reached the ledger")
	}
}

func TestManager_NetworkError(t *testing.T) {
	dead := httptest.NewServer(nil)
	url := dead.URL
	dead.Close()

	m := metric.NewRegistry()
	mgr, err := NewManager(Config{IdentityURL: url, LedgerURL: url, Timeout: 2 * time.Second, SingleFlight: true},
		&memSession{}, WithMetrics(m), WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	_, err = mgr.Ledger.GetBalance(context.Background())
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("GetBalance() error = %v, want network error", err)
	}
	if v := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(ServiceLedger, "GET", "error")); v != 1 {
		t.Errorf("error requests = %v, want 1", v)
	}

	_, err = mgr.Identity.Refresh(context.Background(), "rt")
	if !errors.Is(err, domain.ErrNetwork) {
		t.Errorf("Refresh() error = %v, want network error", err)
	}
}

func TestManager_CanceledContext(t *testing.T) {
	env := newTestEnv(t, true)
	env.login(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.m.Ledger.GetBalance(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("GetBalance() error = %v, want context.Canceled", err)
	}
}
