package connection

import (
	"context"
	"time"

	"github.com/yndnr/dogpay-go/internal/core/domain"
	"github.com/yndnr/dogpay-go/internal/telemetry/logger"
	"github.com/yndnr/dogpay-go/internal/telemetry/metric"
	"github.com/yndnr/dogpay-go/internal/telemetry/tracer"
)

// Default service locations.
const (
	DefaultIdentityURL = "http://localhost:8001"
	DefaultLedgerURL   = "http://localhost:8002"
)

// Config describes how to reach both services.
type Config struct {
	IdentityURL  string
	LedgerURL    string
	Timeout      time.Duration
	CAFile       string
	SingleFlight bool
	UserAgent    string
}

// DefaultConfig returns a config for services on localhost.
func DefaultConfig() Config {
	return Config{
		IdentityURL:  DefaultIdentityURL,
		LedgerURL:    DefaultLedgerURL,
		Timeout:      DefaultTimeout,
		SingleFlight: true,
		UserAgent:    "dogpay-cli",
	}
}

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	metrics      *metric.Registry
	tracer       *tracer.Provider
	logger       logger.Logger
	onTerminating func(ctx context.Context)
	onTerminated  func(ctx context.Context)
}

// WithMetrics records requests and refresh outcomes on m.
func WithMetrics(m *metric.Registry) Option {
	return func(o *managerOptions) { o.metrics = m }
}

// WithTracer traces requests and refresh exchanges.
func WithTracer(p *tracer.Provider) Option {
	return func(o *managerOptions) { o.tracer = p }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *managerOptions) { o.logger = l }
}

// WithOnTerminating runs fn when an unrecoverable 401 is about to clear
// the session, before the credentials are removed.
func WithOnTerminating(fn func(ctx context.Context)) Option {
	return func(o *managerOptions) { o.onTerminating = fn }
}

// WithOnTerminated runs fn after an unrecoverable 401 cleared the session.
func WithOnTerminated(fn func(ctx context.Context)) Option {
	return func(o *managerOptions) { o.onTerminated = fn }
}

// Manager owns the authenticated clients for both services. Both share one
// interceptor chain and one refresh coordinator.
type Manager struct {
	Identity    *IdentityClient
	Ledger      *LedgerClient
	Coordinator *RefreshCoordinator

	chain *Chain
}

// NewManager wires the interceptor chain around store:
//
//	request metadata -> credential injector -> transport -> metrics -> refresh coordinator
func NewManager(cfg Config, store SessionWriter, opts ...Option) (*Manager, error) {
	o := managerOptions{logger: logger.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.IdentityURL == "" {
		cfg.IdentityURL = DefaultIdentityURL
	}
	if cfg.LedgerURL == "" {
		cfg.LedgerURL = DefaultLedgerURL
	}

	client, err := NewTransport(cfg.Timeout, cfg.CAFile)
	if err != nil {
		return nil, err
	}

	chain := NewChain(client)
	clientOpts := []ClientOption{
		WithClientTracer(o.tracer),
		WithClientLogger(o.logger),
		WithUserAgent(cfg.UserAgent),
	}
	identity := NewIdentityClient(NewHTTPClient(ServiceIdentity, cfg.IdentityURL, chain, clientOpts...))
	ledger := NewLedgerClient(NewHTTPClient(ServiceLedger, cfg.LedgerURL, chain, clientOpts...))

	refresher := RefresherFunc(func(ctx context.Context, token string) (*domain.AuthResult, error) {
		return identity.Refresh(ctx, token)
	})
	coordinator := NewRefreshCoordinator(store, refresher,
		WithSingleFlight(cfg.SingleFlight),
		WithResetHook(o.onTerminating),
		WithTerminationHook(o.onTerminated),
		WithRefreshMetrics(o.metrics),
		WithRefreshTracer(o.tracer),
		WithRefreshLogger(o.logger),
	)

	chain.UseRequest(RequestMetadata(cfg.UserAgent), NewCredentialInjector(store))
	chain.UseResponse(NewMetricsInterceptor(o.metrics, o.logger), coordinator)

	return &Manager{
		Identity:    identity,
		Ledger:      ledger,
		Coordinator: coordinator,
		chain:       chain,
	}, nil
}

// Chain returns the shared interceptor chain.
func (m *Manager) Chain() *Chain {
	return m.chain
}
