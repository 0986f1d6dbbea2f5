package connection

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/yndnr/dogpay-go/internal/core/domain"
	"github.com/yndnr/dogpay-go/internal/telemetry/logger"
	"github.com/yndnr/dogpay-go/internal/telemetry/metric"
	"github.com/yndnr/dogpay-go/internal/telemetry/tracer"
	"github.com/yndnr/dogpay-go/pkg/token"
)

// SessionWriter is the session store as seen by the coordinator.
type SessionWriter interface {
	Get() domain.Session
	SetAuth(ctx context.Context, accessToken, refreshToken string, user *domain.User) error
	Logout(ctx context.Context) error
}

// Refresher exchanges a refresh token for a new session.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (*domain.AuthResult, error)

// Refresh calls f.
func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	return f(ctx, refreshToken)
}

// State is the coordinator's refresh state.
type State int32

const (
	StateIdle State = iota
	StateRefreshing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Termination reasons.
const (
	reasonNoRefreshToken = "no_refresh_token"
	reasonRefreshFailed  = "refresh_failed"
)

// RefreshOption configures a RefreshCoordinator.
type RefreshOption func(*RefreshCoordinator)

// WithSingleFlight controls whether concurrent 401s share one exchange.
// Enabled by default.
func WithSingleFlight(enabled bool) RefreshOption {
	return func(c *RefreshCoordinator) { c.singleFlight = enabled }
}

// WithResetHook registers fn to run when the session cannot be recovered,
// before the store is cleared. State derived from the session is dropped
// here so nothing reads it without credentials behind it.
func WithResetHook(fn func(ctx context.Context)) RefreshOption {
	return func(c *RefreshCoordinator) { c.onReset = fn }
}

// WithTerminationHook registers fn to run after the session has been
// cleared because it could not be recovered.
func WithTerminationHook(fn func(ctx context.Context)) RefreshOption {
	return func(c *RefreshCoordinator) { c.onTerminated = fn }
}

// WithRefreshMetrics records refresh outcomes, replays and terminations.
func WithRefreshMetrics(m *metric.Registry) RefreshOption {
	return func(c *RefreshCoordinator) { c.metrics = m }
}

// WithRefreshTracer traces each exchange.
func WithRefreshTracer(p *tracer.Provider) RefreshOption {
	return func(c *RefreshCoordinator) { c.tracer = p }
}

// WithRefreshLogger sets the logger.
func WithRefreshLogger(l logger.Logger) RefreshOption {
	return func(c *RefreshCoordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// RefreshCoordinator recovers calls that failed with 401.
//
// For a call that has not been retried it exchanges the refresh token,
// stores the new session and replays the call once. If there is no
// refresh token or the exchange fails, the session is cleared, the
// termination hook runs and the caller receives the original 401.
type RefreshCoordinator struct {
	store     SessionWriter
	refresher Refresher

	singleFlight bool
	group        singleflight.Group

	inflight atomic.Int32
	failed   atomic.Bool

	onReset      func(ctx context.Context)
	onTerminated func(ctx context.Context)
	metrics      *metric.Registry
	tracer       *tracer.Provider
	logger       logger.Logger
}

// NewRefreshCoordinator creates a coordinator.
func NewRefreshCoordinator(store SessionWriter, refresher Refresher, opts ...RefreshOption) *RefreshCoordinator {
	c := &RefreshCoordinator{
		store:        store,
		refresher:    refresher,
		singleFlight: true,
		logger:       logger.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "refresh")
	return c
}

// State reports REFRESHING while an exchange is in flight, FAILED while a
// failed exchange is being settled, and IDLE otherwise.
func (c *RefreshCoordinator) State() State {
	if c.failed.Load() {
		return StateFailed
	}
	if c.inflight.Load() > 0 {
		return StateRefreshing
	}
	return StateIdle
}

// InterceptResponse implements ResponseInterceptor.
func (c *RefreshCoordinator) InterceptResponse(ctx context.Context, call *Call, resp *http.Response, replay Replayer) (*http.Response, error) {
	if resp.StatusCode != http.StatusUnauthorized || call.Retried || call.SkipRefresh {
		return resp, nil
	}
	call.Retried = true
	log := logger.ForSpan(ctx, c.logger).With("service", call.Service, "request_id", call.RequestID)

	sess := c.store.Get()
	if sess.RefreshToken == "" {
		log.Info("401 without refresh token, ending session")
		c.record(metric.RefreshNoRefreshToken)
		c.terminate(ctx, reasonNoRefreshToken)
		return resp, nil
	}

	if c.singleFlight && sess.AccessToken != "" && !token.Equal(sess.AccessToken, call.AccessToken) {
		log.Debug("access token rotated since request was sent, replaying")
		c.record(metric.RefreshStaleReplay)
		return c.replay(ctx, call, resp, replay)
	}

	if err := c.refresh(ctx, sess.RefreshToken); err != nil {
		log.Warn("refresh failed, returning original response",
			"token_fp", token.Fingerprint(sess.RefreshToken),
			"error", err,
		)
		return resp, nil
	}
	return c.replay(ctx, call, resp, replay)
}

func (c *RefreshCoordinator) refresh(ctx context.Context, refreshToken string) error {
	if !c.singleFlight {
		return c.exchange(ctx, refreshToken)
	}

	// The shared exchange must not die with the first caller's context.
	shared := context.WithoutCancel(ctx)
	_, err, wasShared := c.group.Do(token.Fingerprint(refreshToken), func() (any, error) {
		// A flight for this token may have completed between the caller
		// reading the session and joining the group.
		if cur := c.store.Get(); cur.Complete() && !token.Equal(cur.RefreshToken, refreshToken) {
			c.record(metric.RefreshStaleReplay)
			return nil, nil
		}
		return nil, c.exchange(shared, refreshToken)
	})
	if wasShared {
		c.record(metric.RefreshShared)
	}
	return err
}

// exchange performs one refresh and settles it: store update on success,
// session termination on failure.
func (c *RefreshCoordinator) exchange(ctx context.Context, refreshToken string) error {
	c.inflight.Add(1)
	defer c.inflight.Add(-1)

	ctx, span := c.tracer.StartSpan(ctx, "session.refresh", attribute.Bool("single_flight", c.singleFlight))
	defer span.End()

	res, err := c.refresher.Refresh(ctx, refreshToken)
	if err == nil {
		err = res.Validate()
	}
	if err == nil {
		err = c.store.SetAuth(ctx, res.AccessToken, res.RefreshToken, res.User)
	}
	if err != nil {
		tracer.RecordError(span, err)
		c.failed.Store(true)
		c.record(metric.RefreshFailure)
		c.terminate(ctx, reasonRefreshFailed)
		c.failed.Store(false)
		return domain.ErrRefreshFailed.WithCause(err)
	}

	c.record(metric.RefreshSuccess)
	logger.ForSpan(ctx, c.logger).Debug("session refreshed",
		"user_id", res.User.ID,
		"token_fp", token.Fingerprint(res.RefreshToken),
	)
	return nil
}

func (c *RefreshCoordinator) replay(ctx context.Context, call *Call, original *http.Response, replay Replayer) (*http.Response, error) {
	io.Copy(io.Discard, original.Body)
	original.Body.Close()

	if c.metrics != nil {
		c.metrics.ReplaysTotal.Inc()
	}
	return replay(ctx, call)
}

func (c *RefreshCoordinator) terminate(ctx context.Context, reason string) {
	if c.onReset != nil {
		c.onReset(ctx)
	}
	if err := c.store.Logout(ctx); err != nil {
		c.logger.Warn("failed to clear session", "error", err)
	}
	if c.metrics != nil {
		c.metrics.TerminationsTotal.WithLabelValues(reason).Inc()
	}
	if c.onTerminated != nil {
		c.onTerminated(ctx)
	}
}

func (c *RefreshCoordinator) record(outcome string) {
	if c.metrics != nil {
		c.metrics.RefreshTotal.WithLabelValues(outcome).Inc()
	}
}
