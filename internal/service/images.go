package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vetclinic/sitemedia/internal/domain"
	"github.com/vetclinic/sitemedia/internal/repository"
	"github.com/vetclinic/sitemedia/internal/storage"
	apperrors "github.com/vetclinic/sitemedia/pkg/errors"
	"github.com/vetclinic/sitemedia/pkg/logger"
	"github.com/vetclinic/sitemedia/pkg/pagination"
	"github.com/vetclinic/sitemedia/pkg/validator"
)

// Optimizer runs the optimize-only pipeline.
type Optimizer interface {
	Optimize(ctx context.Context, src domain.SourceImage, opts domain.Options) (*domain.OptimizedImage, error)
}

// Uploader optimizes and stores an image.
type Uploader interface {
	UploadOptimized(ctx context.Context, src domain.SourceImage, folder string, opts domain.Options) (*domain.UploadResult, error)
}

// EventPublisher emits image ledger events.
type EventPublisher interface {
	PublishImageUploaded(ctx context.Context, img *domain.ImageRecord) error
	PublishImageDeleted(ctx context.Context, img *domain.ImageRecord) error
}

// ImageService implements the business logic for image operations.
type ImageService struct {
	optimizer Optimizer
	uploader  Uploader
	repo      repository.ImageRepository
	storage   storage.Storage
	events    EventPublisher
	logger    *slog.Logger
	nowFunc   func() time.Time
}

// NewImageService creates a new image service.
func NewImageService(
	optimizer Optimizer,
	uploader Uploader,
	repo repository.ImageRepository,
	store storage.Storage,
	events EventPublisher,
	logger *slog.Logger,
) *ImageService {
	return &ImageService{
		optimizer: optimizer,
		uploader:  uploader,
		repo:      repo,
		storage:   store,
		events:    events,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// UploadImageInput holds the parameters for uploading an image.
type UploadImageInput struct {
	Source     domain.SourceImage
	Folder     string
	Options    domain.Options
	UploadedBy string
}

func checkSourceSize(src domain.SourceImage) error {
	if len(src.Data) == 0 {
		return apperrors.InvalidInput("file is empty")
	}
	if int64(len(src.Data)) > domain.MaxFileSize {
		return apperrors.InvalidInput(fmt.Sprintf("file size %d exceeds maximum allowed size of %d bytes", len(src.Data), domain.MaxFileSize))
	}
	return nil
}

// UploadImage optimizes and stores the image, then records it in the ledger.
// A ledger failure removes the stored object again. Event publishing is
// best effort.
func (s *ImageService) UploadImage(ctx context.Context, input *UploadImageInput) (*domain.ImageRecord, error) {
	if err := checkSourceSize(input.Source); err != nil {
		return nil, err
	}

	folder := input.Folder
	if folder == "" {
		folder = domain.DefaultFolder
	}

	result, err := s.uploader.UploadOptimized(ctx, input.Source, folder, input.Options)
	if err != nil {
		return nil, fmt.Errorf("upload optimized image: %w", err)
	}

	img := &domain.ImageRecord{
		ID:           uuid.New(),
		Folder:       folder,
		Path:         result.Path,
		URL:          result.URL,
		OriginalName: input.Source.Name,
		ContentType:  result.ContentType,
		Size:         result.Size,
		Width:        result.Width,
		Height:       result.Height,
		UploadedBy:   input.UploadedBy,
		CreatedAt:    s.nowFunc().UTC(),
	}

	log := logger.WithContext(ctx, s.logger)

	if err := s.repo.Create(ctx, img); err != nil {
		if delErr := s.storage.Delete(ctx, result.Path); delErr != nil {
			log.ErrorContext(ctx, "failed to clean up storage after db error",
				slog.String("path", result.Path),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("create image record: %w", err)
	}

	if err := s.events.PublishImageUploaded(ctx, img); err != nil {
		log.ErrorContext(ctx, "failed to publish image.uploaded event",
			slog.String("image_id", img.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	log.InfoContext(ctx, "image uploaded",
		slog.String("image_id", img.ID.String()),
		slog.String("path", img.Path),
		slog.String("content_type", img.ContentType),
		slog.Int64("size", img.Size),
		slog.Int("source_size", len(input.Source.Data)),
		slog.Int("width", img.Width),
		slog.Int("height", img.Height),
	)

	return img, nil
}

// PreviewImage optimizes the image without storing it.
func (s *ImageService) PreviewImage(ctx context.Context, src domain.SourceImage, opts domain.Options) (*domain.OptimizedImage, error) {
	if err := checkSourceSize(src); err != nil {
		return nil, err
	}

	out, err := s.optimizer.Optimize(ctx, src, opts)
	if err != nil {
		return nil, fmt.Errorf("optimize image: %w", err)
	}
	return out, nil
}

// GetImage retrieves a ledger entry by its ID.
func (s *ImageService) GetImage(ctx context.Context, id uuid.UUID) (*domain.ImageRecord, error) {
	img, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get image by id: %w", err)
	}
	return img, nil
}

// ListImages returns a page of ledger entries, optionally for one folder.
func (s *ImageService) ListImages(ctx context.Context, folder string, page, perPage int) ([]domain.ImageRecord, int, error) {
	if folder != "" {
		if err := validator.Var(folder, "folder"); err != nil {
			return nil, 0, apperrors.InvalidInput(fmt.Sprintf("folder %q may only contain letters, digits, '_' and '-'", folder))
		}
	}

	params := pagination.New(page, perPage)
	images, total, err := s.repo.List(ctx, folder, params.Offset, params.PerPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list images: %w", err)
	}

	return images, total, nil
}

// DeleteImage removes an image from storage and the ledger. A storage
// failure is logged and the ledger row is removed regardless.
func (s *ImageService) DeleteImage(ctx context.Context, id uuid.UUID) error {
	img, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get image for delete: %w", err)
	}

	log := logger.WithContext(ctx, s.logger)

	if err := s.storage.Delete(ctx, img.Path); err != nil {
		level := slog.LevelError
		if errors.Is(err, storage.ErrObjectNotFound) {
			level = slog.LevelWarn
		}
		log.Log(ctx, level, "failed to delete from storage",
			slog.String("image_id", id.String()),
			slog.String("path", img.Path),
			slog.String("error", err.Error()),
		)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}

	if err := s.events.PublishImageDeleted(ctx, img); err != nil {
		log.ErrorContext(ctx, "failed to publish image.deleted event",
			slog.String("image_id", id.String()),
			slog.String("error", err.Error()),
		)
	}

	log.InfoContext(ctx, "image deleted",
		slog.String("image_id", id.String()),
		slog.String("path", img.Path),
	)

	return nil
}
