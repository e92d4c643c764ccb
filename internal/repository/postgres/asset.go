package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/internal/repository"
	"github.com/nexlane/solutionhub/pkg/database"
	apperrors "github.com/nexlane/solutionhub/pkg/errors"
)

const assetColumns = `id, name, slug, description, rating_total::text, avg_rating::text, reviews_count, upvotes_count, created_at, updated_at`

// AssetRepository implements repository.AssetRepository using PostgreSQL.
type AssetRepository struct {
	pool database.DBTX
}

// NewAssetRepository creates a new PostgreSQL-backed asset repository.
func NewAssetRepository(pool database.DBTX) *AssetRepository {
	return &AssetRepository{pool: pool}
}

// GetByIDOrSlug retrieves an asset by UUID or slug.
func (r *AssetRepository) GetByIDOrSlug(ctx context.Context, idOrSlug string) (*domain.Asset, error) {
	query := fmt.Sprintf(`SELECT %s FROM assets WHERE id::text = $1 OR slug = $1`, assetColumns)

	a, err := scanAsset(r.pool.QueryRow(ctx, query, idOrSlug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("asset", idOrSlug)
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

// List returns assets with the total count.
func (r *AssetRepository) List(ctx context.Context, filter repository.ListFilter) ([]domain.Asset, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assets`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count assets: %w", err)
	}

	offset := (filter.Page - 1) * filter.PerPage
	query := fmt.Sprintf(`SELECT %s FROM assets ORDER BY created_at DESC LIMIT $1 OFFSET $2`, assetColumns)

	rows, err := r.pool.Query(ctx, query, filter.PerPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	assets := []domain.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate assets: %w", err)
	}

	return assets, total, nil
}

// scanAsset scans an asset row in assetColumns order.
func scanAsset(row pgx.Row) (*domain.Asset, error) {
	var a domain.Asset
	err := row.Scan(
		&a.ID, &a.Name, &a.Slug, &a.Description,
		&a.RatingTotal, &a.AvgRating, &a.ReviewsCount, &a.UpvotesCount,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
