// Package httpclient is the outbound HTTP stack used by the remote storage
// backends: pooled connections, static auth headers, bounded retries and a
// circuit breaker.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// Config holds HTTP client configuration.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int
}

// DefaultConfig returns the defaults used for storage API calls.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    time.Second,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
	}
}

// Client sends requests with retry on transport errors and 5xx responses.
type Client struct {
	http    *http.Client
	cfg     Config
	headers http.Header
}

// New builds a Client with its own pooled transport.
func New(cfg Config) *Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           dialer.DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
				MaxConnsPerHost:       cfg.MaxConnsPerHost,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: time.Second,
			},
		},
		cfg:     cfg,
		headers: http.Header{},
	}
}

// WithHeader returns a copy of c that adds key: value to every request that
// does not set key itself.
func (c *Client) WithHeader(key, value string) *Client {
	next := *c
	next.headers = c.headers.Clone()
	next.headers.Set(key, value)
	return &next
}

// Do sends req. A request whose body cannot be rewound (no GetBody) is never
// retried, since the first attempt consumed it.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	for key, values := range c.headers {
		if req.Header.Get(key) == "" {
			req.Header[key] = values
		}
	}

	retries := c.cfg.MaxRetries
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		retries = 0
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := c.wait(ctx, attempt); err != nil {
				return nil, err
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("rewind request body: %w", err)
				}
				req.Body = body
			}
		}

		last := attempt >= retries
		resp, err := c.http.Do(req)
		switch {
		case err != nil && (last || !retryable(err)):
			return nil, fmt.Errorf("%s %s failed after %d attempts: %w", req.Method, req.URL.Path, attempt+1, err)
		case err != nil:
			continue
		case !last && resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented:
			_ = resp.Body.Close()
			continue
		}
		return resp, nil
	}
}

// Get sends a GET request to url.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.send(ctx, http.MethodGet, url)
}

// Delete sends a DELETE request to url.
func (c *Client) Delete(ctx context.Context, url string) (*http.Response, error) {
	return c.send(ctx, http.MethodDelete, url)
}

func (c *Client) send(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	return c.Do(ctx, req)
}

// wait sleeps for the exponential backoff of attempt, capped at RetryWaitMax
// and spread by up to 25% either way.
func (c *Client) wait(ctx context.Context, attempt int) error {
	d := min(c.cfg.RetryWaitMin<<(attempt-1), c.cfg.RetryWaitMax)
	if d > 0 {
		d += time.Duration((rand.Float64()*2 - 1) * 0.25 * float64(d))
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
