package httpclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the breaker rejects requests.
var ErrCircuitOpen = gobreaker.ErrOpenState

var breakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "http_client_circuit_breaker_state",
		Help: "Circuit breaker state per upstream (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

// CircuitBreakerConfig tunes when the breaker trips and how it recovers.
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs and metrics.
	Name string
	// MaxRequests is the number of probes let through while half-open.
	MaxRequests uint32
	// Interval clears the closed-state counters; zero never clears them.
	Interval time.Duration
	// Timeout is the time spent open before probing.
	Timeout time.Duration
	// FailureRatio trips the breaker once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultCircuitBreakerConfig trips at 50% failures over at least five
// requests and probes again after 30 seconds.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// CircuitBreakerClient fails fast once an upstream keeps answering with 5xx
// or transport errors. 4xx responses pass through and do not count.
type CircuitBreakerClient struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	name    string
}

// NewCircuitBreakerClient wraps client in a breaker configured by cfg.
func NewCircuitBreakerClient(client *Client, cfg CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerClient {
	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &CircuitBreakerClient{
		client: client,
		name:   cfg.Name,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: cfg.MaxRequests,
			Interval:    cfg.Interval,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.Requests >= cfg.MinRequests &&
					float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRatio
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
				breakerState.WithLabelValues(name).Set(stateValue(to))
			},
		}),
	}
}

// Do sends req through the breaker. A 5xx response is returned as the parsed
// error and its body is closed.
func (c *CircuitBreakerClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, ParseResponseError(resp, c.name)
		}
		return resp, nil
	})
}

// Get sends a GET request through the breaker.
func (c *CircuitBreakerClient) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.send(ctx, http.MethodGet, url)
}

// Delete sends a DELETE request through the breaker.
func (c *CircuitBreakerClient) Delete(ctx context.Context, url string) (*http.Response, error) {
	return c.send(ctx, http.MethodDelete, url)
}

func (c *CircuitBreakerClient) send(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	return c.Do(ctx, req)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}
