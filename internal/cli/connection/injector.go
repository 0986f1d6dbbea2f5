package connection

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/propagation"

	"github.com/yndnr/dogpay-go/internal/core/domain"
	"github.com/yndnr/dogpay-go/internal/telemetry/logger"
	"github.com/yndnr/dogpay-go/internal/telemetry/metric"
)

// SessionReader is the read side of the session store.
type SessionReader interface {
	Get() domain.Session
}

// CredentialInjector stamps the current access token on every attempt.
type CredentialInjector struct {
	store SessionReader
}

// NewCredentialInjector creates an injector reading from store.
func NewCredentialInjector(store SessionReader) *CredentialInjector {
	return &CredentialInjector{store: store}
}

// InterceptRequest sets Authorization when a token is present and leaves
// the request unauthenticated otherwise. It never fails.
func (i *CredentialInjector) InterceptRequest(ctx context.Context, call *Call) error {
	token := i.store.Get().AccessToken
	call.AccessToken = token
	if token == "" {
		call.Request.Header.Del("Authorization")
		return nil
	}
	call.Request.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// RequestMetadata stamps X-Request-ID, User-Agent and W3C trace context.
// Replays keep the request ID of the original attempt.
func RequestMetadata(userAgent string) RequestInterceptor {
	tc := propagation.TraceContext{}
	return RequestInterceptorFunc(func(ctx context.Context, call *Call) error {
		if call.RequestID == "" {
			id, err := domain.NewRequestID()
			if err != nil {
				return err
			}
			call.RequestID = id
		}
		call.Request.Header.Set("X-Request-ID", call.RequestID)
		if userAgent != "" {
			call.Request.Header.Set("User-Agent", userAgent)
		}
		tc.Inject(ctx, propagation.HeaderCarrier(call.Request.Header))
		return nil
	})
}

// metricsInterceptor records every attempt.
type metricsInterceptor struct {
	m   *metric.Registry
	log logger.Logger
}

// NewMetricsInterceptor records request counts and latency on m.
func NewMetricsInterceptor(m *metric.Registry, log logger.Logger) ResponseInterceptor {
	if log == nil {
		log = logger.Default()
	}
	return &metricsInterceptor{m: m, log: log}
}

func (i *metricsInterceptor) InterceptResponse(ctx context.Context, call *Call, resp *http.Response, _ Replayer) (*http.Response, error) {
	i.observe(call, strconv.Itoa(resp.StatusCode))
	i.log.Debug("response received",
		"service", call.Service,
		"method", call.Request.Method,
		"path", call.Request.URL.Path,
		"status", resp.StatusCode,
		"request_id", call.RequestID,
		"retried", call.Retried,
	)
	return resp, nil
}

func (i *metricsInterceptor) ObserveTransportError(ctx context.Context, call *Call, err error) {
	i.observe(call, "error")
	i.log.Warn("request failed",
		"service", call.Service,
		"path", call.Request.URL.Path,
		"request_id", call.RequestID,
		"error", err,
	)
}

func (i *metricsInterceptor) observe(call *Call, code string) {
	if i.m == nil {
		return
	}
	i.m.RequestsTotal.WithLabelValues(call.Service, call.Request.Method, code).Inc()
	i.m.RequestDuration.WithLabelValues(call.Service).Observe(time.Since(call.SentAt).Seconds())
}
