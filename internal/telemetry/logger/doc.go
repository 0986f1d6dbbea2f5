// Package logger provides structured logging for the DogPay client.
//
// It wraps log/slog:
//
//   - logger.go: Logger interface, handler construction, global level
//   - context.go: span trace IDs on log lines
//   - redact.go: masking of bearer credentials and secrets
//
// The CLI logs to stderr in text format at warn level by default so that
// command output on stdout stays clean.
package logger
