// Package redis stores objects in Redis so several service instances can
// share uploads without external object storage.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vetclinic/sitemedia/internal/storage"
)

const keyPrefix = "media:object:"

// Storage implements storage.Storage and storage.Opener on Redis strings.
type Storage struct {
	client  *redis.Client
	baseURL string
	ttl     time.Duration
	nowFunc func() time.Time
}

// New creates a Redis-backed object store. A zero ttl keeps objects forever.
func New(client *redis.Client, baseURL string, ttl time.Duration) *Storage {
	return &Storage{
		client:  client,
		baseURL: baseURL,
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Upload writes the object with SET NX unless input.Upsert is set.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) error {
	data, err := json.Marshal(&storage.Object{
		Key:          input.Key,
		ContentType:  input.ContentType,
		CacheControl: input.CacheControl,
		Data:         input.Data,
		ModTime:      s.nowFunc().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal object: %w", err)
	}

	key := keyPrefix + input.Key
	if input.Upsert {
		if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
			return fmt.Errorf("redis set object: %w", err)
		}
		return nil
	}

	ok, err := s.client.SetNX(ctx, key, data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx object: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrObjectExists, input.Key)
	}
	return nil
}

// PublicURL returns the URL under which the media route serves key.
func (s *Storage) PublicURL(key string) string {
	return storage.JoinURL(s.baseURL, "media/"+key)
}

// Open loads an object.
func (s *Storage) Open(ctx context.Context, key string) (*storage.Object, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("redis get object: %w", err)
	}

	var obj storage.Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	return &obj, nil
}

// Delete removes an object.
func (s *Storage) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, keyPrefix+key).Result()
	if err != nil {
		return fmt.Errorf("redis del object: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}
	return nil
}

// Ping checks the connection with PING.
func (s *Storage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
