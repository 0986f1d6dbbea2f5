// Package tracer provides OpenTelemetry tracing for the DogPay client.
//
// A Provider creates one span per outbound service call and per
// credential refresh. The user hooks SetUser and ClearUser attach or
// remove the authenticated user's identity on subsequent spans. Spans
// are exported over OTLP/HTTP when an endpoint is configured and dropped
// otherwise.
package tracer
