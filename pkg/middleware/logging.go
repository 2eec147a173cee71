package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vetclinic/sitemedia/pkg/logger"
)

// CorrelationHeader carries the request correlation ID in both directions.
const CorrelationHeader = "X-Correlation-ID"

// RequestLogging assigns a correlation ID (taken from the request header when
// present) and logs one line per request. Probe and scrape paths are logged
// at debug level so they do not drown upload traffic.
func RequestLogging(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(CorrelationHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(CorrelationHeader, id)
			ctx := logger.WithCorrelationID(r.Context(), id)

			sw := wrapWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			level := slog.LevelInfo
			if r.URL.Path == "/metrics" || strings.HasPrefix(r.URL.Path, "/health/") {
				level = slog.LevelDebug
			}
			l.Log(ctx, level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.Status()),
				slog.Int("bytes", sw.bytes),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
				slog.String("correlation_id", id),
			)
		})
	}
}
