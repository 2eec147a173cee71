package middleware

import (
	"fmt"
	"net/http"
	"time"
)

// CacheControl sets Cache-Control on GET and HEAD responses. Stored media
// keys are never overwritten, so immutable may be set for them.
func CacheControl(maxAge time.Duration, immutable bool) func(http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds()))
	if immutable {
		value += ", immutable"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
