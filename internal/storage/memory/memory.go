package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vetclinic/sitemedia/internal/storage"
)

// Storage implements storage.Storage and storage.Opener using an in-memory
// map. Objects live until the process exits.
type Storage struct {
	mu      sync.RWMutex
	objects map[string]*storage.Object
	baseURL string
	nowFunc func() time.Time
}

// New creates a new in-memory storage instance. Public URLs are
// "<baseURL>/media/<key>".
func New(baseURL string) *Storage {
	return &Storage{
		objects: make(map[string]*storage.Object),
		baseURL: baseURL,
		nowFunc: time.Now,
	}
}

// Upload stores a copy of the object bytes.
func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[input.Key]; exists && !input.Upsert {
		return fmt.Errorf("%w: %s", storage.ErrObjectExists, input.Key)
	}

	s.objects[input.Key] = &storage.Object{
		Key:          input.Key,
		ContentType:  input.ContentType,
		CacheControl: input.CacheControl,
		Data:         append([]byte(nil), input.Data...),
		ModTime:      s.nowFunc().UTC(),
	}
	return nil
}

// PublicURL returns the URL under which the media route serves key.
func (s *Storage) PublicURL(key string) string {
	return storage.JoinURL(s.baseURL, "media/"+key)
}

// Open returns a copy of the stored object.
func (s *Storage) Open(_ context.Context, key string) (*storage.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, exists := s.objects[key]
	if !exists {
		return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}

	cp := *obj
	cp.Data = append([]byte(nil), obj.Data...)
	return &cp, nil
}

// Delete removes an object from memory.
func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[key]; !exists {
		return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}

	delete(s.objects, key)
	return nil
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored objects.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
