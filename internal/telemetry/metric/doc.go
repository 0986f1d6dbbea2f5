// Package metric provides Prometheus metrics for the DogPay client.
//
// Metrics cover outbound requests per service, the outcome of every
// credential refresh, replays and forced session terminations, and
// derived-cache lookups. They are exposed by `dogpay-cli watch
// --metrics-addr` on /metrics.
package metric
