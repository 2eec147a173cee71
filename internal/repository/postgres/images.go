package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vetclinic/sitemedia/internal/domain"
	"github.com/vetclinic/sitemedia/pkg/database"
	apperrors "github.com/vetclinic/sitemedia/pkg/errors"
)

const uniqueViolation = "23505"

const imageColumns = `id, folder, path, url, original_name, content_type, size, width, height, uploaded_by, created_at`

// ImageRepository implements repository.ImageRepository using PostgreSQL.
type ImageRepository struct {
	db database.DBTX
}

// NewImageRepository creates a new PostgreSQL-backed upload ledger.
func NewImageRepository(db database.DBTX) *ImageRepository {
	return &ImageRepository{db: db}
}

// Create inserts a new ledger row. A second row for the same storage path
// is reported as AlreadyExists.
func (r *ImageRepository) Create(ctx context.Context, img *domain.ImageRecord) (err error) {
	query := `
		INSERT INTO images (` + imageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	ctx, end := database.TraceQuery(ctx, "CreateImage", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		img.ID,
		img.Folder,
		img.Path,
		img.URL,
		img.OriginalName,
		img.ContentType,
		img.Size,
		img.Width,
		img.Height,
		img.UploadedBy,
		img.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.AlreadyExists("image", "path", img.Path)
		}
		return fmt.Errorf("insert image: %w", err)
	}

	return nil
}

// GetByID retrieves a ledger row by its ID.
func (r *ImageRepository) GetByID(ctx context.Context, id uuid.UUID) (_ *domain.ImageRecord, err error) {
	query := `
		SELECT ` + imageColumns + `
		FROM images
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetImage", query)
	defer func() { end(err) }()

	var img domain.ImageRecord
	err = r.db.QueryRow(ctx, query, id).Scan(scanTargets(&img)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("image", id.String())
		}
		return nil, fmt.Errorf("scan image: %w", err)
	}

	return &img, nil
}

// List returns ledger rows newest first. An empty folder matches every row.
func (r *ImageRepository) List(ctx context.Context, folder string, offset, limit int) (_ []domain.ImageRecord, _ int, err error) {
	query := `
		SELECT ` + imageColumns + `,
			   count(*) OVER() AS total_count
		FROM images
		WHERE ($1 = '' OR folder = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListImages", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, folder, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var (
		images     []domain.ImageRecord
		totalCount int
	)

	for rows.Next() {
		var img domain.ImageRecord
		if err := rows.Scan(append(scanTargets(&img), &totalCount)...); err != nil {
			return nil, 0, fmt.Errorf("scan image row: %w", err)
		}
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate image rows: %w", err)
	}

	if images == nil {
		images = []domain.ImageRecord{}
	}

	return images, totalCount, nil
}

// Delete removes a ledger row by its ID.
func (r *ImageRepository) Delete(ctx context.Context, id uuid.UUID) (err error) {
	query := `DELETE FROM images WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteImage", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("image", id.String())
	}

	return nil
}

// Ping runs a trivial query.
func (r *ImageRepository) Ping(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("ping images db: %w", err)
	}
	return nil
}

func scanTargets(img *domain.ImageRecord) []any {
	return []any{
		&img.ID,
		&img.Folder,
		&img.Path,
		&img.URL,
		&img.OriginalName,
		&img.ContentType,
		&img.Size,
		&img.Width,
		&img.Height,
		&img.UploadedBy,
		&img.CreatedAt,
	}
}
