// Package health serves liveness and readiness probes backed by dependency
// checks.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Checker is a function that checks the health of a dependency.
type Checker func(ctx context.Context) error

// Status represents the health status of a component.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Response is the JSON response returned by the health endpoint.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the result of a single health check.
type CheckResult struct {
	Status    Status `json:"status"`
	Critical  bool   `json:"critical"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type registration struct {
	check    Checker
	critical bool
}

// Handler provides HTTP health check endpoints.
type Handler struct {
	mu       sync.RWMutex
	checkers map[string]registration
}

// NewHandler creates a new health check handler.
func NewHandler() *Handler {
	return &Handler{
		checkers: make(map[string]registration),
	}
}

// RegisterCritical adds a checker whose failure makes the service not ready.
func (h *Handler) RegisterCritical(name string, checker Checker) {
	h.register(name, checker, true)
}

// RegisterNonCritical adds a checker whose failure only degrades the service.
func (h *Handler) RegisterNonCritical(name string, checker Checker) {
	h.register(name, checker, false)
}

func (h *Handler) register(name string, checker Checker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = registration{check: checker, critical: critical}
}

func (h *Handler) snapshot() map[string]registration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return maps.Clone(h.checkers)
}

// Check runs every registered checker concurrently and aggregates the result.
func (h *Handler) Check(ctx context.Context) Response {
	regs := h.snapshot()

	var mu sync.Mutex
	var wg sync.WaitGroup
	checks := make(map[string]CheckResult, len(regs))
	for name, reg := range regs {
		wg.Add(1)
		go func(name string, reg registration) {
			defer wg.Done()
			start := time.Now()
			err := reg.check(ctx)
			res := CheckResult{Status: StatusUp, Critical: reg.critical, LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = StatusDown
				res.Error = err.Error()
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
		}(name, reg)
	}
	wg.Wait()

	overall := StatusUp
	for _, res := range checks {
		if res.Status != StatusDown {
			continue
		}
		if res.Critical {
			overall = StatusDown
			break
		}
		overall = StatusDegraded
	}

	return Response{Status: overall, Timestamp: time.Now().UTC(), Checks: checks}
}

// LivenessHandler returns a simple liveness check (always 200 if the process is running).
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, http.StatusOK, Response{
			Status:    StatusUp,
			Timestamp: time.Now().UTC(),
		})
	}
}

// ReadinessHandler checks all registered dependencies. It answers 503 when a
// critical dependency is down and 200 otherwise (status "degraded" when only
// non-critical ones fail).
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := h.Check(ctx)
		status := http.StatusOK
		if resp.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeResponse(w, status, resp)
	}
}

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// WaitReady polls the critical checkers until they all pass, giving up after
// attempts tries. The wait between tries starts at base and doubles, with
// ±25% jitter.
func (h *Handler) WaitReady(ctx context.Context, attempts int, base time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	wait := base
	for attempt := 1; attempt <= attempts; attempt++ {
		resp := h.Check(ctx)
		if resp.Status != StatusDown {
			return nil
		}
		lastErr = failedCritical(resp)

		if attempt == attempts {
			break
		}
		jittered := wait + time.Duration((rand.Float64()*0.5-0.25)*float64(wait))
		select {
		case <-time.After(jittered):
		case <-ctx.Done():
			return ctx.Err()
		}
		wait *= 2
	}
	return fmt.Errorf("dependencies not ready after %d attempts: %w", attempts, lastErr)
}

func failedCritical(resp Response) error {
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(resp.Checks)) {
		res := resp.Checks[name]
		if res.Critical && res.Status == StatusDown {
			errs = append(errs, fmt.Errorf("%s: %s", name, res.Error))
		}
	}
	return errors.Join(errs...)
}
