package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/vetclinic/sitemedia/internal/domain"
)

// ImageRepository defines the interface for upload ledger persistence.
type ImageRepository interface {
	// Create inserts a new ledger row.
	Create(ctx context.Context, image *domain.ImageRecord) error

	// GetByID retrieves a ledger row by its identifier.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ImageRecord, error)

	// List returns rows newest first, optionally restricted to one folder,
	// together with the total number of matching rows.
	List(ctx context.Context, folder string, offset, limit int) ([]domain.ImageRecord, int, error)

	// Delete removes a ledger row by its identifier.
	Delete(ctx context.Context, id uuid.UUID) error

	// Ping checks the database connection.
	Ping(ctx context.Context) error
}
