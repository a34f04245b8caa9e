package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/paysvc/internal/domain/errors"
	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ServiceRepository implements fin.ServiceRepository using PostgreSQL.
type ServiceRepository struct {
	pool *pgxpool.Pool
}

func NewServiceRepository(pool *pgxpool.Pool) *ServiceRepository {
	return &ServiceRepository{pool: pool}
}

func (r *ServiceRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// GetByID returns a snapshot of the service configuration.
func (r *ServiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*fin.ServiceConfig, error) {
	var (
		s       fin.ServiceConfig
		apiType string
		expiry  *time.Time
	)
	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, name, api_type, base_url, use_proxy, proxy, username, password,
		        token_type, access_token, token_expiry_date
		 FROM payment_services WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &apiType, &s.BaseURL, &s.UseProxy, &s.Proxy, &s.Username, &s.Password,
		&s.Token.Type, &s.Token.AccessToken, &expiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrServiceNotFound
		}
		return nil, fmt.Errorf("get payment service: %w", err)
	}
	s.APIType = fin.APIType(apiType)
	if expiry != nil {
		s.Token.Expiry = *expiry
	}
	return &s, nil
}

// SaveToken replaces the token triad of a service.
func (r *ServiceRepository) SaveToken(ctx context.Context, id uuid.UUID, token fin.Token) error {
	var expiry *time.Time
	if !token.Expiry.IsZero() {
		e := token.Expiry.UTC()
		expiry = &e
	}
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payment_services
		 SET token_type = $1, access_token = $2, token_expiry_date = $3, updated_at = NOW()
		 WHERE id = $4`,
		token.Type, token.AccessToken, expiry, id,
	)
	if err != nil {
		return fmt.Errorf("save access token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrServiceNotFound
	}
	return nil
}
