package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Backend-independent failures. Implementations wrap or return these so the
// uploader can tell a path collision apart from a transport failure.
var (
	ErrObjectExists   = errors.New("storage: object already exists")
	ErrObjectNotFound = errors.New("storage: object not found")
)

// Storage defines the interface for object storage operations.
type Storage interface {
	// Upload stores an object. With Upsert false an existing object at the
	// same key is left untouched and ErrObjectExists is returned.
	Upload(ctx context.Context, input *UploadInput) error

	// PublicURL returns the public address of key. It never fails and the
	// result may or may not carry a scheme.
	PublicURL(key string) string

	// Delete removes an object by its key.
	Delete(ctx context.Context, key string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// Opener is implemented by backends whose objects this service serves itself.
type Opener interface {
	Open(ctx context.Context, key string) (*Object, error)
}

// UploadInput holds the parameters for storing an object.
type UploadInput struct {
	Key          string
	ContentType  string
	CacheControl string // max-age in seconds, e.g. "3600"
	Upsert       bool
	Data         []byte
}

// Object is a stored object as returned by Opener.
type Object struct {
	Key          string    `json:"key"`
	ContentType  string    `json:"content_type"`
	CacheControl string    `json:"cache_control"`
	Data         []byte    `json:"data"`
	ModTime      time.Time `json:"mod_time"`
}

// CacheControlHeader renders the stored max-age as a Cache-Control value.
func (o *Object) CacheControlHeader() string {
	if o.CacheControl == "" {
		return ""
	}
	return "public, max-age=" + o.CacheControl
}

// JoinURL joins a base URL and a key with exactly one slash between them.
func JoinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
