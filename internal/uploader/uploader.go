// Package uploader stores optimized images in object storage.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/vetclinic/sitemedia/internal/domain"
	"github.com/vetclinic/sitemedia/internal/storage"
	apperrors "github.com/vetclinic/sitemedia/pkg/errors"
	"github.com/vetclinic/sitemedia/pkg/logger"
	"github.com/vetclinic/sitemedia/pkg/validator"
)

// ImageOptimizer is the optimization step the uploader runs first.
type ImageOptimizer interface {
	Optimize(ctx context.Context, src domain.SourceImage, opts domain.Options) (*domain.OptimizedImage, error)
}

// DefaultCacheControl is the max-age sent with every upload.
const DefaultCacheControl = time.Hour

// Uploader optimizes an image and stores it under a timestamped path. It
// never retries and never overwrites an existing object.
type Uploader struct {
	optimizer    ImageOptimizer
	storage      storage.Storage
	cacheControl string
	logger       *slog.Logger
	nowFunc      func() time.Time
}

// New creates an uploader. cacheControl is rounded down to whole seconds;
// a non-positive value selects DefaultCacheControl.
func New(optimizer ImageOptimizer, store storage.Storage, cacheControl time.Duration, log *slog.Logger) *Uploader {
	if cacheControl <= 0 {
		cacheControl = DefaultCacheControl
	}
	if log == nil {
		log = slog.Default()
	}
	return &Uploader{
		optimizer:    optimizer,
		storage:      store,
		cacheControl: strconv.FormatInt(int64(cacheControl/time.Second), 10),
		logger:       logger.Component(log, "uploader"),
		nowFunc:      time.Now,
	}
}

// WithClock returns a copy of the uploader that stamps paths using now.
func (u *Uploader) WithClock(now func() time.Time) *Uploader {
	cp := *u
	cp.nowFunc = now
	return &cp
}

// UploadOptimized optimizes src, uploads it to "<folder>/<folder>-<millis>.<ext>"
// with overwrite disabled and returns the HTTPS public URL. Optimizer errors
// are returned unchanged and take precedence over a bad folder. An empty
// folder means "general". Storage conflicts become DuplicateObjectError and
// any other storage failure UploadError.
func (u *Uploader) UploadOptimized(ctx context.Context, src domain.SourceImage, folder string, opts domain.Options) (*domain.UploadResult, error) {
	if folder == "" {
		folder = domain.DefaultFolder
	}

	optimized, err := u.optimizer.Optimize(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	if err := validator.Var(folder, "folder"); err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("folder %q may only contain letters, digits, '_' and '-'", folder))
	}

	format := domain.Format(strings.TrimPrefix(optimized.ContentType, "image/"))
	path := domain.StoragePath(folder, format, u.nowFunc())

	err = u.storage.Upload(ctx, &storage.UploadInput{
		Key:          path,
		ContentType:  optimized.ContentType,
		CacheControl: u.cacheControl,
		Upsert:       false,
		Data:         optimized.Data,
	})
	switch {
	case errors.Is(err, storage.ErrObjectExists):
		logger.WithContext(ctx, u.logger).WarnContext(ctx, "storage path already taken",
			slog.String("path", path),
		)
		return nil, domain.DuplicateObjectError(path)
	case err != nil:
		return nil, domain.UploadError(path, err)
	}

	return &domain.UploadResult{
		URL:         NormalizeURL(u.storage.PublicURL(path)),
		Path:        path,
		ContentType: optimized.ContentType,
		Size:        optimized.Size(),
		Width:       optimized.Width,
		Height:      optimized.Height,
	}, nil
}

// NormalizeURL forces an https scheme: "http://" is rewritten, a URL without
// a scheme is prefixed and "https://" is returned unchanged.
func NormalizeURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "https://"):
		return raw
	case strings.HasPrefix(raw, "http://"):
		return "https://" + strings.TrimPrefix(raw, "http://")
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	default:
		return "https://" + raw
	}
}
