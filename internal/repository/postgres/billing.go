package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/pkg/database"
	apperrors "github.com/nexlane/solutionhub/pkg/errors"
)

// BillingRepository implements repository.BillingRepository using PostgreSQL.
// All writes are upserts keyed by the provider's external id so replayed and
// reordered webhook deliveries converge on the same state.
type BillingRepository struct {
	pool database.DBTX
}

// NewBillingRepository creates a new PostgreSQL-backed billing repository.
func NewBillingRepository(pool database.DBTX) *BillingRepository {
	return &BillingRepository{pool: pool}
}

// UpsertProduct stores the product mirror.
func (r *BillingRepository) UpsertProduct(ctx context.Context, p *domain.Product) (bool, error) {
	query := `
		INSERT INTO products (ref, name, description, active, livemode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (ref) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description,
		    active = EXCLUDED.active, livemode = EXCLUDED.livemode, updated_at = NOW()
		RETURNING (xmax = 0) AS was_created`

	var wasCreated bool
	err := r.pool.QueryRow(ctx, query, p.Ref, p.Name, p.Description, p.Active, p.Livemode).Scan(&wasCreated)
	if err != nil {
		return false, fmt.Errorf("upsert product: %w", err)
	}
	return wasCreated, nil
}

// UpsertPrice stores the price mirror.
func (r *BillingRepository) UpsertPrice(ctx context.Context, p *domain.Price) (bool, error) {
	query := `
		INSERT INTO prices (ref, product_ref, unit_amount, currency, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (ref) DO UPDATE
		SET product_ref = EXCLUDED.product_ref, unit_amount = EXCLUDED.unit_amount,
		    currency = EXCLUDED.currency, active = EXCLUDED.active, updated_at = NOW()
		RETURNING (xmax = 0) AS was_created`

	var wasCreated bool
	err := r.pool.QueryRow(ctx, query, p.Ref, p.ProductRef, p.UnitAmount, p.Currency, p.Active).Scan(&wasCreated)
	if err != nil {
		return false, fmt.Errorf("upsert price: %w", err)
	}
	return wasCreated, nil
}

// DeletePrice removes the price mirror. The solutions FK clears any primary
// price reference pointing at it.
func (r *BillingRepository) DeletePrice(ctx context.Context, ref string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM prices WHERE ref = $1`, ref); err != nil {
		return fmt.Errorf("delete price: %w", err)
	}
	return nil
}

// GetPrice retrieves a price mirror by its provider reference.
func (r *BillingRepository) GetPrice(ctx context.Context, ref string) (*domain.Price, error) {
	query := `
		SELECT ref, product_ref, unit_amount, currency, active, created_at, updated_at
		FROM prices WHERE ref = $1`

	var p domain.Price
	err := r.pool.QueryRow(ctx, query, ref).Scan(
		&p.Ref, &p.ProductRef, &p.UnitAmount, &p.Currency, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("price", ref)
		}
		return nil, fmt.Errorf("get price: %w", err)
	}
	return &p, nil
}

// UpsertSubscription stores the subscription mirror.
func (r *BillingRepository) UpsertSubscription(ctx context.Context, s *domain.Subscription) (bool, error) {
	query := `
		INSERT INTO subscriptions (ref, customer_ref, price_ref, status, current_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (ref) DO UPDATE
		SET customer_ref = EXCLUDED.customer_ref, price_ref = EXCLUDED.price_ref,
		    status = EXCLUDED.status, current_period_end = EXCLUDED.current_period_end, updated_at = NOW()
		RETURNING (xmax = 0) AS was_created`

	var wasCreated bool
	err := r.pool.QueryRow(ctx, query, s.Ref, s.CustomerRef, s.PriceRef, s.Status, s.CurrentPeriodEnd).Scan(&wasCreated)
	if err != nil {
		return false, fmt.Errorf("upsert subscription: %w", err)
	}
	return wasCreated, nil
}
