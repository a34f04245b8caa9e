package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/paysvc/internal/domain/errors"
	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriberRepository resolves organisations and persons to subscriber info.
type SubscriberRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriberRepository(pool *pgxpool.Pool) *SubscriberRepository {
	return &SubscriberRepository{pool: pool}
}

func (r *SubscriberRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// GetSubscriberInfo returns the subscriber's name and its first public
// email address by priority. Organisations carry their name as first name.
func (r *SubscriberRepository) GetSubscriberInfo(ctx context.Context, ref fin.SubscriberRef) (*fin.SubscriberInfo, error) {
	var (
		info fin.SubscriberInfo
		err  error
	)
	switch ref.Type {
	case fin.SubscriberOrganisation:
		err = r.db(ctx).QueryRow(ctx,
			`SELECT name FROM organisations WHERE id = $1`, ref.ID,
		).Scan(&info.FirstName)
	case fin.SubscriberPerson:
		err = r.db(ctx).QueryRow(ctx,
			`SELECT first_name, last_name FROM persons WHERE id = $1`, ref.ID,
		).Scan(&info.FirstName, &info.LastName)
	default:
		return nil, fmt.Errorf("%w %s", domainErrors.ErrInvalidSubscriber, ref.Type)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("get subscriber: %w", err)
	}

	err = r.db(ctx).QueryRow(ctx,
		`SELECT email FROM contact_emails
		 WHERE owner_type = $1 AND owner_id = $2 AND NOT is_private
		 ORDER BY priority
		 LIMIT 1`,
		string(ref.Type), ref.ID,
	).Scan(&info.Email)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get subscriber email: %w", err)
	}

	return &info, nil
}
