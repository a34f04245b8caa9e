package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/paysvc/internal/domain/errors"
	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProductRepository implements fin.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func (r *ProductRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*fin.Product, error) {
	var (
		p     fin.Product
		orgID *uuid.UUID
		typ   string
	)
	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, organisation_id, name, description, type, category
		 FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &orgID, &p.Name, &p.Description, &typ, &p.Category)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	if orgID != nil {
		p.OrganisationID = *orgID
	}
	p.Type = fin.ProductType(typ)
	return &p, nil
}

// MerchantName returns the name of the organisation owning the product.
func (r *ProductRepository) MerchantName(ctx context.Context, productID uuid.UUID) (string, error) {
	var name *string
	err := r.db(ctx).QueryRow(ctx,
		`SELECT o.name
		 FROM products p
		 LEFT JOIN organisations o ON o.id = p.organisation_id
		 WHERE p.id = $1`, productID,
	).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domainErrors.ErrProductNotFound
		}
		return "", fmt.Errorf("get merchant name: %w", err)
	}
	if name == nil {
		return "", nil
	}
	return *name, nil
}

// PlanRepository implements fin.PlanRepository using PostgreSQL.
type PlanRepository struct {
	pool *pgxpool.Pool
}

func NewPlanRepository(pool *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{pool: pool}
}

func (r *PlanRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *PlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*fin.SubscriptionPlan, error) {
	return r.scanPlan(r.db(ctx).QueryRow(ctx,
		`SELECT id, product_id, name, description, status, interval_unit, interval_count,
		        fixed, total_cycles, price::text, currency
		 FROM subscription_plans WHERE id = $1`, id))
}

func (r *PlanRepository) scanPlan(row scanner) (*fin.SubscriptionPlan, error) {
	var (
		p                    fin.SubscriptionPlan
		status, unit, amount string
	)
	err := row.Scan(&p.ID, &p.ProductID, &p.Name, &p.Description, &status, &unit, &p.IntervalCount,
		&p.Fixed, &p.TotalCycles, &amount, &p.Currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrPlanNotFound
		}
		return nil, fmt.Errorf("scan subscription plan: %w", err)
	}
	p.Status = fin.PlanStatus(status)
	p.IntervalUnit = fin.IntervalUnit(unit)
	if p.Price, err = numericToDecimal(amount); err != nil {
		return nil, err
	}
	return &p, nil
}
