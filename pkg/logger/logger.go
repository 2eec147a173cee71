// Package logger builds the service's slog loggers and carries request
// identity (correlation id, user, trace) through context.Context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type (
	correlationIDKey struct{}
	userIDKey        struct{}
	loggerKey        struct{}
)

// Options controls how a logger renders records.
type Options struct {
	Level string // debug, info, warn or error; anything else means info
	// Environment "development" switches from JSON to logfmt-style text.
	Environment string
	Writer      io.Writer // os.Stdout when nil
}

// New returns a JSON logger on stdout tagged with service.
func New(service, level string) *slog.Logger {
	return NewWithOptions(service, Options{Level: level})
}

// NewWithWriter is New writing to w.
func NewWithWriter(service, level string, w io.Writer) *slog.Logger {
	return NewWithOptions(service, Options{Level: level, Writer: w})
}

// NewWithOptions returns a logger tagged with service. Debug level also adds
// source locations.
func NewWithOptions(service string, opts Options) *slog.Logger {
	out := opts.Writer
	if out == nil {
		out = os.Stdout
	}
	level := ParseLevel(opts.Level)
	ho := &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug}

	var h slog.Handler = slog.NewJSONHandler(out, ho)
	if opts.Environment == "development" {
		h = slog.NewTextHandler(out, ho)
	}
	return slog.New(h).With(slog.String("service", service))
}

// ParseLevel maps a level name to slog.Level, ignoring case and surrounding
// space. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Component tags l with a pipeline stage such as optimizer or storage.
func Component(l *slog.Logger, name string) *slog.Logger {
	return l.With(slog.String("component", name))
}

func stringValue[K any](ctx context.Context) string {
	s, _ := ctx.Value(*new(K)).(string)
	return s
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue[correlationIDKey](ctx)
}

// WithUserID records the authenticated subject for log lines.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

func UserIDFromContext(ctx context.Context) string {
	return stringValue[userIDKey](ctx)
}

// NewContext stores l as the request logger.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the request logger, or slog.Default() if none is set.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// WithContext adds whichever of correlation_id, user_id, trace_id and
// span_id ctx carries.
func WithContext(ctx context.Context, l *slog.Logger) *slog.Logger {
	var attrs []any
	if id := CorrelationIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	if id := UserIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("user_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}
