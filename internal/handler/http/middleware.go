package http

import (
	"net/http"
	"strings"
)

// RequireMultipart rejects POST requests whose body is not multipart/form-data.
func RequireMultipart(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "multipart/form-data") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be multipart/form-data"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
