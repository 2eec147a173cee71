package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/vetclinic/sitemedia/pkg/logger"
)

// RequestLogger stores a request-scoped logger carrying the correlation and
// trace IDs in the context, for retrieval with logger.FromContext. Mount it
// after RequestLogging and Tracing. Auth adds user_id once the caller is known.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// withSubject records the authenticated subject for logging and, when
// RequestLogger stored a logger, tags that logger with user_id too.
func withSubject(ctx context.Context, subject string) context.Context {
	ctx = logger.WithUserID(ctx, subject)
	if l := logger.FromContext(ctx); l != slog.Default() {
		ctx = logger.NewContext(ctx, l.With(slog.String("user_id", subject)))
	}
	return ctx
}
