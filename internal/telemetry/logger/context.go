package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// ForSpan returns l with the trace and span IDs of the span active in ctx,
// so log lines can be joined with exported traces. l is returned as is
// when ctx carries no span. A nil l means Default().
func ForSpan(ctx context.Context, l Logger) Logger {
	if l == nil {
		l = Default()
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}
