// Package logging builds the daemon's slog logger on top of slog-logfilter.
//
// LOG_FORMAT selects text or json output (text when stdout is a terminal and
// LOG_FORMAT is unset) and LOG_LEVEL selects debug/info/warn/error.
// Request and environment IDs carried in a context can be used as filter keys.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	logfilter "github.com/jmylchreest/slog-logfilter"
	"github.com/mattn/go-isatty"
)

// ContextKey is a type for context keys used in logging.
type ContextKey string

const (
	RequestIDKey     ContextKey = "log_request_id"
	EnvironmentIDKey ContextKey = "log_environment_id"
)

// WithRequestID adds a request ID to the context for logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithEnvironmentID tags the context with the environment an operation targets.
func WithEnvironmentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, EnvironmentIDKey, id)
}

// GetRequestID extracts the request ID from context.
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// GetEnvironmentID extracts the environment ID from context.
func GetEnvironmentID(ctx context.Context) string {
	return stringValue(ctx, EnvironmentIDKey)
}

func stringValue(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

// FromContext returns logger with the context's request and environment IDs attached.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if ctx == nil {
		return logger
	}

	var attrs []any
	if id := GetRequestID(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if id := GetEnvironmentID(ctx); id != "" {
		attrs = append(attrs, "environment_id", id)
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(attrs...)
}

func registerContextExtractors() {
	for name, key := range map[string]ContextKey{
		"request_id":     RequestIDKey,
		"environment_id": EnvironmentIDKey,
	} {
		logfilter.RegisterContextExtractor(name, func(ctx context.Context) (string, bool) {
			s := stringValue(ctx, key)
			return s, s != ""
		})
	}
}

// New creates a configured logger.
func New() *slog.Logger {
	format := "json"
	if f := os.Getenv("LOG_FORMAT"); f == "text" || (f == "" && isatty.IsTerminal(os.Stdout.Fd())) {
		format = "text"
	}

	registerContextExtractors()

	return logfilter.New(
		logfilter.WithLevel(parseLogLevel(os.Getenv("LOG_LEVEL"))),
		logfilter.WithFormat(format),
		logfilter.WithOutput(os.Stdout),
		logfilter.WithSource(true),
	)
}

func parseLogLevel(level string) slog.Level {
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

// SetDefault creates a new logger and installs it as the slog default.
func SetDefault() *slog.Logger {
	logger := New()
	slog.SetDefault(logger)
	return logger
}

// SetLevel changes the global log level at runtime.
func SetLevel(level slog.Level) {
	logfilter.SetLevel(level)
}

// GetLevel returns the current global log level.
func GetLevel() slog.Level {
	return logfilter.GetLevel()
}

// SetFilters replaces all log filters.
func SetFilters(filters []logfilter.LogFilter) {
	logfilter.SetFilters(filters)
}

// GetFilters returns a copy of the current filters.
func GetFilters() []logfilter.LogFilter {
	return logfilter.GetFilters()
}
