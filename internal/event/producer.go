package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vetclinic/sitemedia/internal/domain"
	pkgkafka "github.com/vetclinic/sitemedia/pkg/kafka"
	"github.com/vetclinic/sitemedia/pkg/logger"
)

// Kafka topics for image ledger events.
var (
	TopicImageUploaded = pkgkafka.Topic("image", "uploaded")
	TopicImageDeleted  = pkgkafka.Topic("image", "deleted")
)

// Aggregate type constant.
const AggregateTypeImage = "image"

// Source identifier for events originating from the media service.
const SourceMediaService = "media-service"

// ImageUploadedData is the payload for an image.uploaded event.
type ImageUploadedData struct {
	ID           string `json:"id"`
	Folder       string `json:"folder"`
	Path         string `json:"path"`
	URL          string `json:"url"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	UploadedBy   string `json:"uploaded_by,omitempty"`
}

// ImageDeletedData is the payload for an image.deleted event.
type ImageDeletedData struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// Publisher is the broker surface the producer needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes image domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the media service.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishImageUploaded publishes an image.uploaded event.
func (p *Producer) PublishImageUploaded(ctx context.Context, img *domain.ImageRecord) error {
	data := ImageUploadedData{
		ID:           img.ID.String(),
		Folder:       img.Folder,
		Path:         img.Path,
		URL:          img.URL,
		OriginalName: img.OriginalName,
		ContentType:  img.ContentType,
		Size:         img.Size,
		Width:        img.Width,
		Height:       img.Height,
		UploadedBy:   img.UploadedBy,
	}

	return p.publish(ctx, TopicImageUploaded, img, data)
}

// PublishImageDeleted publishes an image.deleted event.
func (p *Producer) PublishImageDeleted(ctx context.Context, img *domain.ImageRecord) error {
	return p.publish(ctx, TopicImageDeleted, img, ImageDeletedData{ID: img.ID.String(), Path: img.Path})
}

// publish keys the event by image ID and tags it with the image folder.
func (p *Producer) publish(ctx context.Context, topic string, img *domain.ImageRecord, data any) error {
	id := img.ID.String()
	evt, err := pkgkafka.NewEvent(topic, pkgkafka.Aggregate{Type: AggregateTypeImage, ID: id}, SourceMediaService, data,
		pkgkafka.WithCorrelationID(logger.CorrelationIDFromContext(ctx)),
		pkgkafka.WithMetadata("folder", img.Folder),
	)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published image event",
		slog.String("topic", topic),
		slog.String("image_id", id),
	)

	return nil
}
