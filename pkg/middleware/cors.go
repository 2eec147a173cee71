package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin access for the clinic site front end.
type CORSConfig struct {
	// AllowedOrigins lists exact origins. "*" allows any origin.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	// ExposedHeaders are readable by browser scripts, e.g. the image
	// dimension headers of the optimize endpoint.
	ExposedHeaders []string
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge           int
	AllowCredentials bool
	// Environment "development" allows any origin regardless of the list.
	Environment string
}

// DefaultCORSConfig allows any origin and the methods the image API serves.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		ExposedHeaders: []string{CorrelationHeader},
		Environment:    "development",
	}
}

// CORS sets the Access-Control-* headers and answers OPTIONS preflights with
// 204. Origins not in the list receive no Allow-Origin header, so the browser
// blocks the response.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodDelete, http.MethodOptions}
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = []string{"Accept", "Authorization", "Content-Type", CorrelationHeader}
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 3600
	}
	anyOrigin := cfg.Environment == "development" || slices.Contains(cfg.AllowedOrigins, "*")

	static := http.Header{}
	static.Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowedMethods, ", "))
	static.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", "))
	static.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
	if len(cfg.ExposedHeaders) > 0 {
		static.Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposedHeaders, ", "))
	}
	if cfg.AllowCredentials {
		static.Set("Access-Control-Allow-Credentials", "true")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")
			switch {
			case anyOrigin:
				h.Set("Access-Control-Allow-Origin", "*")
			case origin != "" && slices.Contains(cfg.AllowedOrigins, origin):
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			for k, v := range static {
				h[k] = v
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
