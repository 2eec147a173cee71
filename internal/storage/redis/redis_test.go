package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetclinic/sitemedia/internal/storage"
)

var frozen = time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)

func setupTestRedis(t *testing.T, ttl time.Duration) (*Storage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	s := New(client, "http://localhost:8011", ttl)
	s.nowFunc = func() time.Time { return frozen }
	return s, mr
}

func sampleInput() *storage.UploadInput {
	return &storage.UploadInput{
		Key:          "pets/pets-1.webp",
		ContentType:  "image/webp",
		CacheControl: "3600",
		Data:         []byte{0x52, 0x49, 0x46, 0x46, 0x00, 0xff},
	}
}

// ---------------------------------------------------------------------------
// Upload / Open
// ---------------------------------------------------------------------------

func TestUpload_RoundTrip(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, sampleInput()))
	assert.True(t, mr.Exists("media:object:pets/pets-1.webp"))

	obj, err := s.Open(ctx, "pets/pets-1.webp")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", obj.ContentType)
	assert.Equal(t, "3600", obj.CacheControl)
	assert.Equal(t, sampleInput().Data, obj.Data)
	assert.True(t, frozen.Equal(obj.ModTime))
}

func TestUpload_ExistingKeyWithoutUpsert(t *testing.T) {
	s, _ := setupTestRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, sampleInput()))
	in := sampleInput()
	in.Data = []byte("other")
	err := s.Upload(ctx, in)

	require.ErrorIs(t, err, storage.ErrObjectExists)
	obj, err := s.Open(ctx, "pets/pets-1.webp")
	require.NoError(t, err)
	assert.Equal(t, sampleInput().Data, obj.Data)
}

func TestUpload_Upsert(t *testing.T) {
	s, _ := setupTestRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, sampleInput()))
	in := sampleInput()
	in.Upsert = true
	in.Data = []byte("other")
	require.NoError(t, s.Upload(ctx, in))

	obj, err := s.Open(ctx, "pets/pets-1.webp")
	require.NoError(t, err)
	assert.Equal(t, []byte("other"), obj.Data)
}

func TestUpload_TTL(t *testing.T) {
	s, mr := setupTestRedis(t, time.Hour)

	require.NoError(t, s.Upload(context.Background(), sampleInput()))
	assert.Equal(t, time.Hour, mr.TTL("media:object:pets/pets-1.webp"))

	mr.FastForward(2 * time.Hour)
	_, err := s.Open(context.Background(), "pets/pets-1.webp")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestUpload_ConnectionError(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	mr.Close()

	err := s.Upload(context.Background(), sampleInput())

	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrObjectExists)
	assert.Contains(t, err.Error(), "redis setnx object")
}

func TestOpen_Missing(t *testing.T) {
	s, _ := setupTestRedis(t, 0)

	_, err := s.Open(context.Background(), "nope")

	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestOpen_CorruptPayload(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	require.NoError(t, mr.Set("media:object:bad", "{not json"))

	_, err := s.Open(context.Background(), "bad")

	assert.ErrorContains(t, err, "unmarshal object")
}

// ---------------------------------------------------------------------------
// Delete / Ping / PublicURL
// ---------------------------------------------------------------------------

func TestDelete(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	ctx := context.Background()
	require.NoError(t, s.Upload(ctx, sampleInput()))

	require.NoError(t, s.Delete(ctx, "pets/pets-1.webp"))
	assert.False(t, mr.Exists("media:object:pets/pets-1.webp"))
	assert.ErrorIs(t, s.Delete(ctx, "pets/pets-1.webp"), storage.ErrObjectNotFound)
}

func TestPing(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	assert.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}

func TestPublicURL(t *testing.T) {
	s, _ := setupTestRedis(t, 0)

	assert.Equal(t, "http://localhost:8011/media/pets/pets-1.webp", s.PublicURL("pets/pets-1.webp"))
}
