// Package supabase stores objects through the Supabase Storage REST API.
package supabase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vetclinic/sitemedia/internal/storage"
	apperrors "github.com/vetclinic/sitemedia/pkg/errors"
	"github.com/vetclinic/sitemedia/pkg/httpclient"
)

const serviceName = "supabase-storage"

// Config holds the project URL, API key and bucket name.
type Config struct {
	URL     string
	Key     string
	Bucket  string
	Timeout time.Duration
}

// Storage implements storage.Storage against one Supabase bucket. Requests
// are sent once; repeated 5xx responses open the circuit breaker.
type Storage struct {
	client  *httpclient.CircuitBreakerClient
	baseURL string
	bucket  string
	logger  *slog.Logger
}

// New creates a Supabase storage client.
func New(cfg Config, logger *slog.Logger) *Storage {
	httpCfg := httpclient.DefaultConfig()
	httpCfg.MaxRetries = 0
	httpCfg.MaxConnsPerHost = 16
	if cfg.Timeout > 0 {
		httpCfg.Timeout = cfg.Timeout
	}

	client := httpclient.New(httpCfg).
		WithHeader("Authorization", "Bearer "+cfg.Key).
		WithHeader("apikey", cfg.Key)

	return &Storage{
		client:  httpclient.NewCircuitBreakerClient(client, httpclient.DefaultCircuitBreakerConfig(serviceName), logger),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		bucket:  cfg.Bucket,
		logger:  logger,
	}
}

// Upload sends the object with x-upsert set from input.Upsert.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(input.Key), bytes.NewReader(input.Data))
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", input.ContentType)
	req.Header.Set("x-upsert", strconv.FormatBool(input.Upsert))
	if input.CacheControl != "" {
		req.Header.Set("cache-control", "max-age="+input.CacheControl)
	}

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", input.Key, err)
	}
	if err := checkResponse(resp); err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %s", storage.ErrObjectExists, input.Key)
		}
		return fmt.Errorf("upload %s: %w", input.Key, err)
	}
	return nil
}

// PublicURL returns the public-bucket URL of key.
func (s *Storage) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, url.PathEscape(s.bucket), escapeKey(key))
}

// Delete removes an object.
func (s *Storage) Delete(ctx context.Context, key string) error {
	resp, err := s.client.Delete(ctx, s.objectURL(key))
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if err := checkResponse(resp); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Ping fetches the bucket metadata.
func (s *Storage) Ping(ctx context.Context) error {
	resp, err := s.client.Get(ctx, fmt.Sprintf("%s/storage/v1/bucket/%s", s.baseURL, url.PathEscape(s.bucket)))
	if err != nil {
		return fmt.Errorf("ping bucket %s: %w", s.bucket, err)
	}
	if err := checkResponse(resp); err != nil {
		return fmt.Errorf("ping bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *Storage) objectURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, url.PathEscape(s.bucket), escapeKey(key))
}

// checkResponse drains and closes a 2xx response, or parses the error body of
// any other status.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.Body.Close()
	}
	return httpclient.ParseResponseError(resp, serviceName)
}

// isDuplicate recognises both the 409 status and the 400 + "Duplicate" body
// shape used by the storage API.
func isDuplicate(err error) bool {
	if errors.Is(err, apperrors.ErrConflict) || errors.Is(err, apperrors.ErrAlreadyExists) {
		return true
	}
	var appErr *apperrors.AppError
	return errors.As(err, &appErr) && strings.EqualFold(appErr.Code, "Duplicate")
}

func escapeKey(key string) string {
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
