package uploader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vetclinic/sitemedia/internal/domain"
	"github.com/vetclinic/sitemedia/internal/optimizer"
	"github.com/vetclinic/sitemedia/internal/storage"
	"github.com/vetclinic/sitemedia/internal/storage/memory"
	apperrors "github.com/vetclinic/sitemedia/pkg/errors"
)

// --- Mocks ---

type mockOptimizer struct {
	mock.Mock
}

func (m *mockOptimizer) Optimize(ctx context.Context, src domain.SourceImage, opts domain.Options) (*domain.OptimizedImage, error) {
	args := m.Called(ctx, src, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OptimizedImage), args.Error(1)
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Upload(ctx context.Context, input *storage.UploadInput) error {
	return m.Called(ctx, input).Error(0)
}

func (m *mockStorage) PublicURL(key string) string {
	return m.Called(key).String(0)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockStorage) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// --- Helpers ---

var frozen = time.UnixMilli(1760000000000)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func webpResult() *domain.OptimizedImage {
	return &domain.OptimizedImage{
		Name:        "dog-optimized-1760000000000.webp",
		ContentType: "image/webp",
		Data:        []byte("RIFFxxxxWEBP"),
		Width:       1200,
		Height:      800,
		ModTime:     frozen,
	}
}

func blank(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func newTestUploader(opt ImageOptimizer, store storage.Storage) *Uploader {
	return New(opt, store, time.Hour, testLogger()).WithClock(func() time.Time { return frozen })
}

var src = domain.SourceImage{Name: "dog.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}}

// --- Tests ---

func TestUploadOptimized_Success(t *testing.T) {
	opt := new(mockOptimizer)
	store := new(mockStorage)
	ctx := context.Background()

	opt.On("Optimize", ctx, src, domain.Options{}).Return(webpResult(), nil)
	store.On("Upload", ctx, mock.MatchedBy(func(in *storage.UploadInput) bool {
		return in.Key == "pets/pets-1760000000000.webp" &&
			in.ContentType == "image/webp" &&
			in.CacheControl == "3600" &&
			!in.Upsert &&
			string(in.Data) == "RIFFxxxxWEBP"
	})).Return(nil)
	store.On("PublicURL", "pets/pets-1760000000000.webp").
		Return("https://abc.supabase.co/storage/v1/object/public/images/pets/pets-1760000000000.webp")

	res, err := newTestUploader(opt, store).UploadOptimized(ctx, src, "pets", domain.Options{})

	require.NoError(t, err)
	assert.Equal(t, "pets/pets-1760000000000.webp", res.Path)
	assert.Equal(t, "https://abc.supabase.co/storage/v1/object/public/images/pets/pets-1760000000000.webp", res.URL)
	assert.Equal(t, "image/webp", res.ContentType)
	assert.Equal(t, int64(12), res.Size)
	assert.Equal(t, 1200, res.Width)
	assert.Equal(t, 800, res.Height)
	opt.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestUploadOptimized_DefaultFolder(t *testing.T) {
	opt := new(mockOptimizer)
	store := new(mockStorage)
	ctx := context.Background()

	opt.On("Optimize", ctx, src, mock.Anything).Return(webpResult(), nil)
	store.On("Upload", ctx, mock.MatchedBy(func(in *storage.UploadInput) bool {
		return in.Key == "general/general-1760000000000.webp"
	})).Return(nil)
	store.On("PublicURL", "general/general-1760000000000.webp").Return("https://cdn/general/general-1760000000000.webp")

	res, err := newTestUploader(opt, store).UploadOptimized(ctx, src, "", domain.Options{})

	require.NoError(t, err)
	assert.Equal(t, "general/general-1760000000000.webp", res.Path)
}

func TestUploadOptimized_ExtensionFollowsOutputType(t *testing.T) {
	opt := new(mockOptimizer)
	store := new(mockStorage)
	ctx := context.Background()
	opts := domain.Options{OutputType: domain.FormatJPEG}

	out := webpResult()
	out.ContentType = "image/jpeg"
	opt.On("Optimize", ctx, src, opts).Return(out, nil)
	store.On("Upload", ctx, mock.MatchedBy(func(in *storage.UploadInput) bool {
		return in.Key == "team/team-1760000000000.jpeg" && in.ContentType == "image/jpeg"
	})).Return(nil)
	store.On("PublicURL", mock.Anything).Return("https://cdn/x")

	res, err := newTestUploader(opt, store).UploadOptimized(ctx, src, "team", opts)

	require.NoError(t, err)
	assert.Equal(t, "team/team-1760000000000.jpeg", res.Path)
}

func TestUploadOptimized_OptimizerErrorPropagatesUnchanged(t *testing.T) {
	opt := new(mockOptimizer)
	store := new(mockStorage)
	ctx := context.Background()
	optErr := domain.DecodeError(errors.New("truncated"))

	opt.On("Optimize", ctx, src, domain.Options{}).Return(nil, optErr)

	res, err := newTestUploader(opt, store).UploadOptimized(ctx, src, "pets", domain.Options{})

	assert.Nil(t, res)
	assert.Same(t, optErr, err)
	store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestUploadOptimized_ConflictIsDuplicateObjectError(t *testing.T) {
	opt := new(mockOptimizer)
	store := new(mockStorage)
	ctx := context.Background()

	opt.On("Optimize", ctx, src, domain.Options{}).Return(webpResult(), nil)
	store.On("Upload", ctx, mock.Anything).Return(storage.ErrObjectExists)

	_, err := newTestUploader(opt, store).UploadOptimized(ctx, src, "pets", domain.Options{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateObject)
	assert.Equal(t, 409, apperrors.HTTPStatus(err))
	store.AssertNotCalled(t, "PublicURL", mock.Anything)
}

func TestUploadOptimized_TransportFailureIsUploadError(t *testing.T) {
	opt := new(mockOptimizer)
	store := new(mockStorage)
	ctx := context.Background()
	cause := errors.New("dial tcp: connection refused")

	opt.On("Optimize", ctx, src, domain.Options{}).Return(webpResult(), nil)
	store.On("Upload", ctx, mock.Anything).Return(cause).Once()

	_, err := newTestUploader(opt, store).UploadOptimized(ctx, src, "pets", domain.Options{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpload)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, domain.ErrDuplicateObject)
	store.AssertNumberOfCalls(t, "Upload", 1)
}

func TestUploadOptimized_InvalidFolder(t *testing.T) {
	opt := new(mockOptimizer)
	store := new(mockStorage)
	opt.On("Optimize", mock.Anything, src, domain.Options{}).Return(webpResult(), nil)

	for _, folder := range []string{"../etc", "a/b", "with space", "ñ"} {
		_, err := newTestUploader(opt, store).UploadOptimized(context.Background(), src, folder, domain.Options{})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, folder)
		assert.Contains(t, err.Error(), "folder", folder)
	}
	store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestUploadOptimized_OptimizerErrorWinsOverBadFolder(t *testing.T) {
	opt := new(mockOptimizer)
	store := new(mockStorage)
	pdf := domain.SourceImage{Name: "invoice.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}
	notImage := domain.NotAnImage("application/pdf")
	opt.On("Optimize", mock.Anything, pdf, domain.Options{}).Return(nil, notImage)

	_, err := newTestUploader(opt, store).UploadOptimized(context.Background(), pdf, "../etc", domain.Options{})

	require.Error(t, err)
	assert.Same(t, notImage, err)
	store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestUploadOptimized_HTTPURLIsUpgraded(t *testing.T) {
	opt := new(mockOptimizer)
	ctx := context.Background()
	opt.On("Optimize", ctx, src, domain.Options{}).Return(webpResult(), nil)

	store := memory.New("http://localhost:8011")

	res, err := newTestUploader(opt, store).UploadOptimized(ctx, src, "pets", domain.Options{})

	require.NoError(t, err)
	assert.Equal(t, "https://localhost:8011/media/pets/pets-1760000000000.webp", res.URL)
}

func TestUploadOptimized_SameMillisecondCollides(t *testing.T) {
	store := memory.New("https://media.clinic.example")
	opt := optimizer.New(domain.Options{}).
		WithDecoder(func([]byte) (image.Image, error) { return blank(20, 10), nil })
	u := newTestUploader(opt, store)
	ctx := context.Background()

	first, err := u.UploadOptimized(ctx, src, "blog", domain.Options{OutputType: domain.FormatPNG})
	require.NoError(t, err)
	assert.Equal(t, "blog/blog-1760000000000.png", first.Path)

	_, err = u.UploadOptimized(ctx, src, "blog", domain.Options{OutputType: domain.FormatPNG})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateObject)
	assert.Equal(t, 1, store.Len())
}

func TestUploadOptimized_DistinctMillisecondsDoNotCollide(t *testing.T) {
	store := memory.New("https://media.clinic.example")
	opt := optimizer.New(domain.Options{}).
		WithDecoder(func([]byte) (image.Image, error) { return blank(20, 10), nil })

	var tick atomic.Int64
	u := New(opt, store, 0, nil).WithClock(func() time.Time {
		return frozen.Add(time.Duration(tick.Add(1)) * time.Millisecond)
	})

	for range 3 {
		_, err := u.UploadOptimized(context.Background(), src, "blog", domain.Options{OutputType: domain.FormatPNG})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, store.Len())
}

func TestNew_DefaultCacheControl(t *testing.T) {
	u := New(new(mockOptimizer), new(mockStorage), 0, nil)
	assert.Equal(t, "3600", u.cacheControl)

	u = New(new(mockOptimizer), new(mockStorage), 90*time.Second+500*time.Millisecond, nil)
	assert.Equal(t, "90", u.cacheControl)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://host/path", "https://host/path"},
		{"https://host/path", "https://host/path"},
		{"host/path", "https://host/path"},
		{"//host/path", "https://host/path"},
		{"http://host/http://inner", "https://host/http://inner"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestUploadOptimized_ConcurrentCallsAreIndependent(t *testing.T) {
	const n = 16
	store := memory.New("https://media.clinic.example")
	folders := []string{"pets", "blog", "team", "services"}

	var wg sync.WaitGroup
	results := make([]*domain.UploadResult, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			width := 100 + i*10
			opt := optimizer.New(domain.Options{MaxWidth: 120}).
				WithDecoder(func([]byte) (image.Image, error) { return blank(width, 50), nil })
			u := New(opt, store, time.Hour, testLogger()).
				WithClock(func() time.Time { return frozen.Add(time.Duration(i) * time.Millisecond) })
			results[i], errs[i] = u.UploadOptimized(context.Background(), src, folders[i%len(folders)],
				domain.Options{OutputType: domain.FormatPNG})
		}()
	}
	wg.Wait()

	paths := make(map[string]bool, n)
	for i := range n {
		require.NoError(t, errs[i], "call %d", i)
		res := results[i]
		assert.Equal(t, min(100+i*10, 120), res.Width, "call %d", i)
		assert.Equal(t, fmt.Sprintf("%s/%s-%d.png", folders[i%len(folders)], folders[i%len(folders)], frozen.UnixMilli()+int64(i)), res.Path)
		paths[res.Path] = true
	}
	assert.Len(t, paths, n)
	assert.Equal(t, n, store.Len())
}
