// Package logging builds the process logger on top of slog-logfilter. Output
// is text on a terminal and JSON otherwise unless a format is given, and the
// request id carried in a context is exposed to log filters.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	logfilter "github.com/jmylchreest/slog-logfilter"
)

type contextKey string

const requestIDKey contextKey = "log_request_id"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(requestIDKey).(string); ok {
		return s
	}
	return ""
}

// FromContext returns logger with the request id from ctx attached.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := RequestID(ctx); id != "" {
		return logger.With("request_id", id)
	}
	return logger
}

var registerOnce sync.Once

func registerContextExtractors() {
	registerOnce.Do(func() {
		logfilter.RegisterContextExtractor("request_id", func(ctx context.Context) (string, bool) {
			id := RequestID(ctx)
			return id, id != ""
		})
	})
}

// New creates a logger writing to out. An empty format picks text for a
// terminal and JSON otherwise.
func New(level, format string, out io.Writer) *slog.Logger {
	if out == nil {
		out = os.Stdout
	}
	if format == "" {
		format = "json"
		if f, ok := out.(*os.File); ok && isatty(f) {
			format = "text"
		}
	}

	registerContextExtractors()

	return logfilter.New(
		logfilter.WithLevel(ParseLevel(level)),
		logfilter.WithFormat(strings.ToLower(format)),
		logfilter.WithOutput(out),
		logfilter.WithSource(true),
	)
}

// ParseLevel converts debug/info/warn/error to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the global log level at runtime.
func SetLevel(level slog.Level) {
	logfilter.SetLevel(level)
}

func isatty(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
