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

// RegistrationRepository implements fin.RegistrationRepository. The
// primary keys of the link tables keep one row per (item, service).
type RegistrationRepository struct {
	pool *pgxpool.Pool
}

func NewRegistrationRepository(pool *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{pool: pool}
}

func (r *RegistrationRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *RegistrationRepository) GetProductRegistration(ctx context.Context, productID, serviceID uuid.UUID) (*fin.ProductRegistration, error) {
	reg := fin.ProductRegistration{ProductID: productID, ServiceID: serviceID}
	err := r.db(ctx).QueryRow(ctx,
		`SELECT is_registered, refno FROM product_services
		 WHERE product_id = $1 AND service_id = $2`, productID, serviceID,
	).Scan(&reg.IsRegistered, &reg.RefNo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("get product registration: %w", err)
	}
	return &reg, nil
}

func (r *RegistrationRepository) UpsertProductRegistration(ctx context.Context, reg *fin.ProductRegistration) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO product_services (product_id, service_id, is_registered, refno, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (product_id, service_id)
		 DO UPDATE SET is_registered = EXCLUDED.is_registered, refno = EXCLUDED.refno, updated_at = NOW()`,
		reg.ProductID, reg.ServiceID, reg.IsRegistered, reg.RefNo,
	)
	if err != nil {
		return fmt.Errorf("upsert product registration: %w", err)
	}
	return nil
}

func (r *RegistrationRepository) GetPlanRegistration(ctx context.Context, planID, serviceID uuid.UUID) (*fin.PlanRegistration, error) {
	reg := fin.PlanRegistration{PlanID: planID, ServiceID: serviceID}
	err := r.db(ctx).QueryRow(ctx,
		`SELECT is_registered, refno FROM subscription_plan_services
		 WHERE plan_id = $1 AND service_id = $2`, planID, serviceID,
	).Scan(&reg.IsRegistered, &reg.RefNo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("get plan registration: %w", err)
	}
	return &reg, nil
}

func (r *RegistrationRepository) UpsertPlanRegistration(ctx context.Context, reg *fin.PlanRegistration) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO subscription_plan_services (plan_id, service_id, is_registered, refno, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (plan_id, service_id)
		 DO UPDATE SET is_registered = EXCLUDED.is_registered, refno = EXCLUDED.refno, updated_at = NOW()`,
		reg.PlanID, reg.ServiceID, reg.IsRegistered, reg.RefNo,
	)
	if err != nil {
		return fmt.Errorf("upsert plan registration: %w", err)
	}
	return nil
}
