package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-client token buckets.
type RateLimitConfig struct {
	// RPS is the sustained number of requests per second per client.
	RPS float64
	// Burst is the bucket size.
	Burst int
	// TTL evicts clients idle for longer than this. Defaults to 3 minutes.
	TTL time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client key. Authenticated
// requests are keyed by subject, anonymous ones by client IP.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	cfg      RateLimitConfig
	logger   *slog.Logger
	nowFunc  func() time.Time
}

// NewRateLimiter creates a limiter. Idle buckets are evicted in the
// background until ctx is cancelled.
func NewRateLimiter(ctx context.Context, cfg RateLimitConfig, logger *slog.Logger) *RateLimiter {
	if cfg.TTL <= 0 {
		cfg.TTL = 3 * time.Minute
	}
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		cfg:      cfg,
		logger:   logger,
		nowFunc:  time.Now,
	}
	go rl.cleanupLoop(ctx)
	return rl
}

// Middleware returns the HTTP middleware. Exceeding the limit yields 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := UserIDFromContext(r.Context())
		if key == "" {
			key = "ip:" + clientIP(r)
		} else {
			key = "sub:" + key
		}

		if !rl.limiter(key).AllowN(rl.nowFunc(), 1) {
			rl.logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("client", key),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFunc()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(rl.cfg.TTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFunc()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.cfg.TTL {
			delete(rl.visitors, key)
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// clientIP prefers the first valid X-Forwarded-For hop, then X-Real-IP, then
// the connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip.String()
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
