package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recovery turns handler panics into a logged 500 response. http.ErrAbortHandler
// is re-raised so the server can abort the connection.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					l.ErrorContext(r.Context(), "panic recovered",
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					)

					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
