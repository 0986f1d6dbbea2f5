package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is what the client components log through. Implementations
// redact credentials before anything reaches the handler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// Config mirrors the log section of the CLI config.
type Config struct {
	Level  string    // debug, info, warn or error
	Format string    // text or json
	Output io.Writer // stderr when nil
}

// DefaultConfig keeps stdout free for command output.
func DefaultConfig() Config {
	return Config{
		Level:  "warn",
		Format: "text",
		Output: os.Stderr,
	}
}

type slogLogger struct {
	*slog.Logger
}

func (l slogLogger) With(args ...any) Logger {
	return slogLogger{l.Logger.With(args...)}
}

// level is shared by every logger so `watch` can follow config edits.
var level = new(slog.LevelVar)

// New builds a redacting slog logger. An empty format means text.
func New(cfg Config) (Logger, error) {
	level.Set(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slogLogger{slog.New(slog.NewTextHandler(out, opts))}, nil
	case "json":
		return slogLogger{slog.New(slog.NewJSONHandler(out, opts))}, nil
	default:
		return nil, fmt.Errorf("logger: unknown format %q", cfg.Format)
	}
}

// Discard drops everything.
func Discard() Logger {
	return slogLogger{slog.New(slog.DiscardHandler)}
}

// SetLevel changes the level of every logger built by New.
func SetLevel(lvl string) {
	level.Set(parseLevel(lvl))
}

// GetLevel reports the active level in config spelling.
func GetLevel() string {
	return strings.ToLower(level.Level().String())
}

func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

var defaultLogger atomic.Value

func init() {
	l, _ := New(DefaultConfig())
	defaultLogger.Store(&l)
}

// SetDefault replaces the logger components fall back to when none is
// injected.
func SetDefault(l Logger) {
	if l != nil {
		defaultLogger.Store(&l)
	}
}

// Default returns the fallback logger.
func Default() Logger {
	return *defaultLogger.Load().(*Logger)
}
