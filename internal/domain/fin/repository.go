package fin

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ServiceRepository stores payment service configurations.
type ServiceRepository interface {
	// GetByID returns errors.ErrServiceNotFound when no service exists.
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceConfig, error)

	// SaveToken updates the token triad of a service in place.
	SaveToken(ctx context.Context, id uuid.UUID, token Token) error
}

// ProductRepository reads products and their owners.
type ProductRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// MerchantName returns the display name of the organisation owning the
	// product, or "" if it has none.
	MerchantName(ctx context.Context, productID uuid.UUID) (string, error)
}

// PlanRepository reads subscription plans.
type PlanRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*SubscriptionPlan, error)
}

// RegistrationRepository stores the product and plan links to services.
// Upserts are keyed by (item, service).
type RegistrationRepository interface {
	GetProductRegistration(ctx context.Context, productID, serviceID uuid.UUID) (*ProductRegistration, error)
	UpsertProductRegistration(ctx context.Context, reg *ProductRegistration) error
	GetPlanRegistration(ctx context.Context, planID, serviceID uuid.UUID) (*PlanRegistration, error)
	UpsertPlanRegistration(ctx context.Context, reg *PlanRegistration) error
}

// SubscriptionRepository stores subscriptions.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetReference(ctx context.Context, id uuid.UUID, refNo, approvalURL string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status SubscriptionStatus, at time.Time) error

	// ClaimDue returns up to limit non-terminal subscriptions with a
	// reference that were not checked within the last interval, and marks
	// them checked. Callers run it inside a transaction.
	ClaimDue(ctx context.Context, limit int, interval time.Duration) ([]uuid.UUID, error)
}

// SubscriberRepository resolves subscriber references.
type SubscriberRepository interface {
	GetSubscriberInfo(ctx context.Context, ref SubscriberRef) (*SubscriberInfo, error)
}

// LogRepository is the durable action log.
type LogRepository interface {
	Append(ctx context.Context, entry *LogEntry) error
	List(ctx context.Context, serviceID uuid.UUID, limit, offset int) ([]*LogEntry, error)
}

// StatusHook is invoked after a subscription status update to trigger
// fulfillment or cancelation.
type StatusHook interface {
	SubscriptionStatusChanged(ctx context.Context, sub *Subscription) error
}
