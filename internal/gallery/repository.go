package gallery

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by the store when no image matches.
var ErrNotFound = errors.New("gallery: image not found")

// Repository persists gallery images.
type Repository interface {
	Create(ctx context.Context, img Image) (Image, error)
	Get(ctx context.Context, id int64) (Image, error)
	List(ctx context.Context, filter ListFilter) ([]Image, error)
	Update(ctx context.Context, img Image) (Image, error)
	Delete(ctx context.Context, id int64) (Image, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const imageColumns = `id, title, description, image_path, is_active, sort_order, created_by, created_at, updated_at`

func scanImage(row pgx.Row) (Image, error) {
	var img Image
	err := row.Scan(&img.ID, &img.Title, &img.Description, &img.ImagePath, &img.IsActive, &img.Order,
		&img.CreatedBy, &img.CreatedAt, &img.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Image{}, ErrNotFound
	}
	return img, err
}

// Create inserts an image row.
func (r *PGRepository) Create(ctx context.Context, img Image) (Image, error) {
	return scanImage(r.pool.QueryRow(ctx, `INSERT INTO gallery_images (title, description, image_path, is_active, sort_order, created_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+imageColumns, img.Title, img.Description, img.ImagePath, img.IsActive, img.Order, img.CreatedBy))
}

// Get fetches an image by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (Image, error) {
	return scanImage(r.pool.QueryRow(ctx, `SELECT `+imageColumns+` FROM gallery_images WHERE id = $1`, id))
}

// List returns images by display order, newest first within the same order.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Image, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+imageColumns+` FROM gallery_images
WHERE ($1::boolean IS NULL OR is_active = $1)
ORDER BY sort_order ASC, created_at DESC, id DESC`, filter.IsActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// Update replaces the mutable columns of an image.
func (r *PGRepository) Update(ctx context.Context, img Image) (Image, error) {
	return scanImage(r.pool.QueryRow(ctx, `UPDATE gallery_images
SET title = $2, description = $3, image_path = $4, is_active = $5, sort_order = $6, updated_at = NOW()
WHERE id = $1
RETURNING `+imageColumns, img.ID, img.Title, img.Description, img.ImagePath, img.IsActive, img.Order))
}

// Delete removes an image row and returns it.
func (r *PGRepository) Delete(ctx context.Context, id int64) (Image, error) {
	return scanImage(r.pool.QueryRow(ctx, `DELETE FROM gallery_images WHERE id = $1 RETURNING `+imageColumns, id))
}

var _ Repository = (*PGRepository)(nil)
