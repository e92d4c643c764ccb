package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/internal/repository"
)

// CatalogService serves the read side of the directory. Reads trust the
// stored counters; nothing here recomputes an aggregate.
type CatalogService struct {
	assets    repository.AssetRepository
	solutions repository.SolutionRepository
	logger    *slog.Logger
}

// NewCatalogService creates a new catalog read service.
func NewCatalogService(assets repository.AssetRepository, solutions repository.SolutionRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		assets:    assets,
		solutions: solutions,
		logger:    logger,
	}
}

// GetAsset retrieves an asset by UUID or slug.
func (s *CatalogService) GetAsset(ctx context.Context, idOrSlug string) (*domain.Asset, error) {
	asset, err := s.assets.GetByIDOrSlug(ctx, idOrSlug)
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// ListAssets returns a paginated list of assets.
func (s *CatalogService) ListAssets(ctx context.Context, filter repository.ListFilter) ([]domain.Asset, int, error) {
	clampListFilter(&filter)

	assets, total, err := s.assets.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list assets: %w", err)
	}
	return assets, total, nil
}

// GetSolution retrieves a solution by UUID or slug.
func (s *CatalogService) GetSolution(ctx context.Context, idOrSlug string) (*domain.Solution, error) {
	solution, err := s.solutions.GetByIDOrSlug(ctx, idOrSlug)
	if err != nil {
		return nil, fmt.Errorf("get solution: %w", err)
	}
	return solution, nil
}

// ListSolutions returns a paginated list of solutions.
func (s *CatalogService) ListSolutions(ctx context.Context, filter repository.ListFilter) ([]domain.Solution, int, error) {
	clampListFilter(&filter)

	solutions, total, err := s.solutions.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list solutions: %w", err)
	}
	return solutions, total, nil
}
