package registration

import (
	"context"

	"github.com/cassiomorais/paysvc/internal/providers"
	"github.com/google/uuid"
)

// TransactionManager runs fn in a database transaction carried by ctx.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker serializes work on a key across API and worker processes.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// AdapterFactory resolves the payment service adapter of a service record.
type AdapterFactory interface {
	Adapter(ctx context.Context, serviceID uuid.UUID) (providers.PaymentService, error)
}

// CheckQueue hands subscription checks to the worker.
type CheckQueue interface {
	EnqueueCheck(ctx context.Context, subscriptionID uuid.UUID) error
}
