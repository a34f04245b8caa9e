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

// SubscriptionRepository implements fin.SubscriptionRepository using PostgreSQL.
type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

func (r *SubscriptionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

const subscriptionColumns = `id, subscriber_type, subscriber_id, plan_id, service_id,
	refno, approval_url, status, status_date, created_at`

// Create inserts a pending subscription.
func (r *SubscriptionRepository) Create(ctx context.Context, s *fin.Subscription) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO subscriptions
		 (id, subscriber_type, subscriber_id, plan_id, service_id, refno, approval_url, status, status_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, string(s.Subscriber.Type), s.Subscriber.ID, s.PlanID, s.ServiceID,
		s.RefNo, s.ApprovalURL, string(s.Status), s.StatusDate, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*fin.Subscription, error) {
	return r.scanSubscription(r.db(ctx).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
}

// Delete removes a subscription, used to roll back failed registrations.
func (r *SubscriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db(ctx).Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrSubscriptionNotFound
	}
	return nil
}

// SetReference stores the payment service reference and approval URL.
func (r *SubscriptionRepository) SetReference(ctx context.Context, id uuid.UUID, refNo, approvalURL string) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE subscriptions SET refno = $1, approval_url = $2 WHERE id = $3`,
		refNo, approvalURL, id,
	)
	if err != nil {
		return fmt.Errorf("set subscription reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrSubscriptionNotFound
	}
	return nil
}

// UpdateStatus stores a checked status. An unclear status is stored as ''.
func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status fin.SubscriptionStatus, at time.Time) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE subscriptions SET status = $1, status_date = $2, checked_at = $2 WHERE id = $3`,
		string(status), at, id,
	)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrSubscriptionNotFound
	}
	return nil
}

// ClaimDue locks up to limit registered, non-terminal subscriptions not
// checked within interval and stamps them as checked. Rows locked by a
// concurrent claim are skipped.
func (r *SubscriptionRepository) ClaimDue(ctx context.Context, limit int, interval time.Duration) ([]uuid.UUID, error) {
	rows, err := r.db(ctx).Query(ctx,
		`UPDATE subscriptions SET checked_at = NOW()
		 WHERE id IN (
		     SELECT id FROM subscriptions
		     WHERE refno <> ''
		       AND status NOT IN ('CANCELLED', 'EXPIRED')
		       AND (checked_at IS NULL OR checked_at < NOW() - make_interval(secs => $1))
		     ORDER BY checked_at NULLS FIRST
		     LIMIT $2
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id`,
		interval.Seconds(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim due subscriptions: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan due subscriptions: %w", err)
	}
	return ids, nil
}

func (r *SubscriptionRepository) scanSubscription(row scanner) (*fin.Subscription, error) {
	var (
		s                      fin.Subscription
		subscriberType, status string
	)
	err := row.Scan(&s.ID, &subscriberType, &s.Subscriber.ID, &s.PlanID, &s.ServiceID,
		&s.RefNo, &s.ApprovalURL, &status, &s.StatusDate, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	s.Subscriber.Type = fin.SubscriberType(subscriberType)
	s.Status = fin.SubscriptionStatus(status)
	return &s, nil
}
