// Package registration drives the payment service adapters: it registers
// catalog items, creates subscriptions and checks their status, each under
// a lock on the (service, item) pair.
package registration

import (
	"context"
	"fmt"

	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/cassiomorais/paysvc/internal/application/registration")

// UseCase bundles the registration triggers.
type UseCase struct {
	factory AdapterFactory
	locker  Locker
	plans   fin.PlanRepository
	subs    fin.SubscriptionRepository
	log     fin.LogRepository
	queue   CheckQueue
	logger  zerolog.Logger
}

func NewUseCase(
	factory AdapterFactory,
	locker Locker,
	plans fin.PlanRepository,
	subs fin.SubscriptionRepository,
	log fin.LogRepository,
	queue CheckQueue,
	logger zerolog.Logger,
) *UseCase {
	return &UseCase{
		factory: factory,
		locker:  locker,
		plans:   plans,
		subs:    subs,
		log:     log,
		queue:   queue,
		logger:  logger.With().Str("component", "registration").Logger(),
	}
}

func lockKey(kind string, serviceID, itemID uuid.UUID) string {
	return fmt.Sprintf("registration:%s:%s:%s", kind, serviceID, itemID)
}

func (uc *UseCase) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "registration."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// RegisterProduct registers the product with the service, or updates it if
// it is already registered.
func (uc *UseCase) RegisterProduct(ctx context.Context, serviceID, productID uuid.UUID) (err error) {
	ctx, span := uc.span(ctx, "RegisterProduct",
		attribute.String("service_id", serviceID.String()),
		attribute.String("product_id", productID.String()))
	defer func() { endSpan(span, err) }()

	svc, err := uc.factory.Adapter(ctx, serviceID)
	if err != nil {
		return err
	}
	return uc.locker.WithLock(ctx, lockKey("product", serviceID, productID), func(ctx context.Context) error {
		return svc.RegisterProduct(ctx, productID)
	})
}

func (uc *UseCase) RetireProduct(ctx context.Context, serviceID, productID uuid.UUID) (err error) {
	ctx, span := uc.span(ctx, "RetireProduct",
		attribute.String("service_id", serviceID.String()),
		attribute.String("product_id", productID.String()))
	defer func() { endSpan(span, err) }()

	svc, err := uc.factory.Adapter(ctx, serviceID)
	if err != nil {
		return err
	}
	return uc.locker.WithLock(ctx, lockKey("product", serviceID, productID), func(ctx context.Context) error {
		return svc.RetireProduct(ctx, productID)
	})
}

// RegisterPlan validates the plan and registers it with the service,
// registering its product first when needed.
func (uc *UseCase) RegisterPlan(ctx context.Context, serviceID, planID uuid.UUID) (err error) {
	ctx, span := uc.span(ctx, "RegisterPlan",
		attribute.String("service_id", serviceID.String()),
		attribute.String("plan_id", planID.String()))
	defer func() { endSpan(span, err) }()

	plan, err := uc.plans.GetByID(ctx, planID)
	if err != nil {
		return err
	}
	if err := plan.Validate(); err != nil {
		return err
	}

	svc, err := uc.factory.Adapter(ctx, serviceID)
	if err != nil {
		return err
	}
	return uc.locker.WithLock(ctx, lockKey("plan", serviceID, planID), func(ctx context.Context) error {
		return svc.RegisterSubscriptionPlan(ctx, planID)
	})
}

// CreateSubscription registers a new subscription and returns it with the
// approval URL the subscriber must visit.
func (uc *UseCase) CreateSubscription(ctx context.Context, serviceID, planID uuid.UUID, subscriber fin.SubscriberRef) (sub *fin.Subscription, err error) {
	ctx, span := uc.span(ctx, "CreateSubscription",
		attribute.String("service_id", serviceID.String()),
		attribute.String("plan_id", planID.String()),
		attribute.String("subscriber", subscriber.String()))
	defer func() { endSpan(span, err) }()

	svc, err := uc.factory.Adapter(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	var id uuid.UUID
	// Subscribing may register the plan, so it holds the plan lock.
	err = uc.locker.WithLock(ctx, lockKey("plan", serviceID, planID), func(ctx context.Context) error {
		var err error
		id, err = svc.RegisterSubscription(ctx, planID, subscriber)
		return err
	})
	if err != nil {
		return nil, err
	}

	return uc.subs.GetByID(ctx, id)
}

// CheckSubscription refreshes the status of a subscription from its service.
func (uc *UseCase) CheckSubscription(ctx context.Context, subscriptionID uuid.UUID) (status fin.SubscriptionStatus, err error) {
	ctx, span := uc.span(ctx, "CheckSubscription",
		attribute.String("subscription_id", subscriptionID.String()))
	defer func() {
		span.SetAttributes(attribute.String("status", string(status)))
		endSpan(span, err)
	}()

	sub, err := uc.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return "", err
	}
	svc, err := uc.factory.Adapter(ctx, sub.ServiceID)
	if err != nil {
		return "", err
	}

	err = uc.locker.WithLock(ctx, lockKey("subscription", sub.ServiceID, sub.ID), func(ctx context.Context) error {
		var err error
		status, err = svc.CheckSubscription(ctx, sub.ID)
		return err
	})
	return status, err
}

// RequestCheck queues a status check of an existing subscription.
func (uc *UseCase) RequestCheck(ctx context.Context, subscriptionID uuid.UUID) error {
	if _, err := uc.subs.GetByID(ctx, subscriptionID); err != nil {
		return err
	}
	if err := uc.queue.EnqueueCheck(ctx, subscriptionID); err != nil {
		return err
	}
	uc.logger.Debug().Str("subscription_id", subscriptionID.String()).Msg("subscription check queued")
	return nil
}

// UserInfo returns the account details the service reports for its
// credentials.
func (uc *UseCase) UserInfo(ctx context.Context, serviceID uuid.UUID) (map[string]any, error) {
	svc, err := uc.factory.Adapter(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return svc.GetUserInfo(ctx)
}

// ActionLog returns the newest action log entries of a service.
func (uc *UseCase) ActionLog(ctx context.Context, serviceID uuid.UUID, limit, offset int) ([]*fin.LogEntry, error) {
	return uc.log.List(ctx, serviceID, limit, offset)
}

// ConfirmSubscription handles the subscriber's return from the approval
// page. Status changes arrive through CheckSubscription, so there is
// nothing to do yet.
func (uc *UseCase) ConfirmSubscription(ctx context.Context, subscriptionID uuid.UUID) error {
	uc.logger.Info().Str("subscription_id", subscriptionID.String()).Msg("subscription confirmation received")
	return nil
}

// CancelSubscription handles the subscriber aborting the approval page.
func (uc *UseCase) CancelSubscription(ctx context.Context, subscriptionID uuid.UUID) error {
	uc.logger.Info().Str("subscription_id", subscriptionID.String()).Msg("subscription cancelation received")
	return nil
}
