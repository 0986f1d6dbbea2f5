package tracer

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/yndnr/dogpay-go/internal/core/domain"
)

const instrumentationName = "github.com/yndnr/dogpay-go"

// Attribute keys for the current user.
const (
	AttrUserID    = attribute.Key("enduser.id")
	AttrUserEmail = attribute.Key("enduser.email")
)

// Config holds tracer configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is an OTLP/HTTP URL such as http://localhost:4318.
	// Empty disables export.
	Endpoint string
}

// Option customizes the provider.
type Option func(*options)

type options struct {
	processors []sdktrace.SpanProcessor
}

// WithSpanProcessor registers an extra span processor (e.g. a
// tracetest.SpanRecorder).
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.processors = append(o.processors, sp) }
}

// Provider owns the SDK tracer provider and the current user identity.
// A nil *Provider is valid and traces nothing.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
	user   atomic.Pointer[[]attribute.KeyValue]
}

// New creates a tracer provider.
func New(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "dogpay-cli"
	}
	res := resource.NewWithAttributes("",
		attribute.String("service.name", name),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.Endpoint != "" {
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
		if err != nil {
			return nil, fmt.Errorf("tracer: create otlp exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	for _, sp := range o.processors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	return &Provider{
		tp:     tp,
		tracer: tp.Tracer(instrumentationName),
	}, nil
}

func (p *Provider) activeTracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// StartSpan starts a client span carrying the current user attributes.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if p != nil {
		if u := p.user.Load(); u != nil {
			attrs = append(attrs, (*u)...)
		}
	}
	return p.activeTracer().Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// SetUser attaches the user's identity to subsequent spans.
func (p *Provider) SetUser(user *domain.User) {
	if p == nil || user == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrUserID.String(user.ID),
		AttrUserEmail.String(user.Email),
	}
	p.user.Store(&attrs)
}

// ClearUser removes the user identity.
func (p *Provider) ClearUser() {
	if p == nil {
		return
	}
	p.user.Store(nil)
}

// CurrentUserID returns the identity attached by SetUser, if any.
func (p *Provider) CurrentUserID() string {
	if p == nil {
		return ""
	}
	u := p.user.Load()
	if u == nil {
		return ""
	}
	for _, kv := range *u {
		if kv.Key == AttrUserID {
			return kv.Value.AsString()
		}
	}
	return ""
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// RecordError marks span as failed with err.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
