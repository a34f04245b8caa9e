// Package providers holds the payment service contract, its adapters and
// the factory that picks an adapter for a stored service configuration.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cassiomorais/paysvc/internal/actionlog"
	"github.com/cassiomorais/paysvc/internal/credentials"
	domainerrors "github.com/cassiomorais/paysvc/internal/domain/errors"
	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/cassiomorais/paysvc/internal/infrastructure/observability"
	"github.com/cassiomorais/paysvc/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// PaymentService is implemented by every payment service adapter.
//
// Registration operations return nil on success. Failures are always
// recorded in the service's action log before the error is returned.
type PaymentService interface {
	ServiceID() uuid.UUID
	APIType() fin.APIType

	// FetchAccessToken obtains and stores a new access token. Adapters
	// without token auth return errors.ErrUnsupported.
	FetchAccessToken(ctx context.Context) (*fin.Token, error)
	// GetUserInfo probes the account behind the credentials.
	GetUserInfo(ctx context.Context) (map[string]any, error)

	RegisterProduct(ctx context.Context, productID uuid.UUID) error
	UpdateProduct(ctx context.Context, productID uuid.UUID) error
	RetireProduct(ctx context.Context, productID uuid.UUID) error

	RegisterSubscriptionPlan(ctx context.Context, planID uuid.UUID) error
	UpdateSubscriptionPlan(ctx context.Context, planID uuid.UUID) error

	// RegisterSubscription returns the id of the new local subscription.
	RegisterSubscription(ctx context.Context, planID uuid.UUID, subscriber fin.SubscriberRef) (uuid.UUID, error)
	// CheckSubscription reconciles the local status with the service.
	CheckSubscription(ctx context.Context, subscriptionID uuid.UUID) (fin.SubscriptionStatus, error)

	Transport() *transport.Client
	HasProduct(ctx context.Context, productID uuid.UUID) bool
	HasSubscriptionPlan(ctx context.Context, planID uuid.UUID) bool
	GetSubscriberInfo(ctx context.Context, ref fin.SubscriberRef) (*fin.SubscriberInfo, error)
	GetMerchantName(ctx context.Context, productID uuid.UUID) string
}

// Store bundles the storage collaborators adapters read and write.
type Store struct {
	Services      fin.ServiceRepository
	Products      fin.ProductRepository
	Plans         fin.PlanRepository
	Registrations fin.RegistrationRepository
	Subscriptions fin.SubscriptionRepository
	Subscribers   fin.SubscriberRepository
	Log           fin.LogRepository
}

// CallbackURLs builds the return and cancel URLs handed to the payment
// service when a subscriber is sent off for approval.
type CallbackURLs struct {
	BaseURL string
}

func (c CallbackURLs) Return(subscriptionID uuid.UUID) string {
	return c.url(subscriptionID, "confirm")
}

func (c CallbackURLs) Cancel(subscriptionID uuid.UUID) string {
	return c.url(subscriptionID, "cancel")
}

func (c CallbackURLs) url(id uuid.UUID, action string) string {
	return fmt.Sprintf("%s/api/v1/subscriptions/%s/%s", strings.TrimRight(c.BaseURL, "/"), id, action)
}

// Deps are the collaborators shared by all adapters.
type Deps struct {
	Store          Store
	Hook           fin.StatusHook
	Callbacks      CallbackURLs
	Logger         zerolog.Logger
	Metrics        *observability.Metrics
	RequestTimeout time.Duration
	Now            func() time.Time
}

// base carries the state and shared utilities of an adapter.
type base struct {
	config    fin.ServiceConfig
	store     Store
	client    *transport.Client
	tokens    *credentials.Manager
	log       *actionlog.Log
	hook      fin.StatusHook
	callbacks CallbackURLs
	logger    zerolog.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func newBase(cfg fin.ServiceConfig, deps Deps, breaker *gobreaker.CircuitBreaker[*transport.Response]) (*base, error) {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger.With().
		Str("component", "payment_service").
		Str("service_id", cfg.ID.String()).
		Str("api_type", string(cfg.APIType)).
		Logger()

	opts := []transport.Option{
		transport.WithTimeout(deps.RequestTimeout),
		transport.WithMetrics(deps.Metrics),
		transport.WithLogger(logger),
	}
	if breaker != nil {
		opts = append(opts, transport.WithBreaker(breaker))
	}
	client, err := transport.New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	tokens := credentials.NewManager(cfg.ID, cfg.Token, nil, deps.Store.Services,
		credentials.WithClock(now),
		credentials.WithMetrics(deps.Metrics),
	)
	client.UseTokenSource(tokens)

	return &base{
		config:    cfg,
		store:     deps.Store,
		client:    client,
		tokens:    tokens,
		log:       actionlog.New(cfg.ID, deps.Store.Log, logger, actionlog.WithMetrics(deps.Metrics), actionlog.WithClock(now)),
		hook:      deps.Hook,
		callbacks: deps.Callbacks,
		logger:    logger,
		metrics:   deps.Metrics,
		now:       now,
	}, nil
}

func (b *base) ServiceID() uuid.UUID {
	return b.config.ID
}

func (b *base) APIType() fin.APIType {
	return b.config.APIType
}

func (b *base) Transport() *transport.Client {
	return b.client
}

// HasProduct reports whether the product is registered with this service.
func (b *base) HasProduct(ctx context.Context, productID uuid.UUID) bool {
	reg, err := b.store.Registrations.GetProductRegistration(ctx, productID, b.config.ID)
	if err != nil {
		if !errors.Is(err, domainerrors.ErrRegistrationNotFound) {
			b.logger.Warn().Err(err).Str("product_id", productID.String()).Msg("product registration lookup failed")
		}
		return false
	}
	return reg.Registered()
}

// HasSubscriptionPlan reports whether the plan is registered with this service.
func (b *base) HasSubscriptionPlan(ctx context.Context, planID uuid.UUID) bool {
	reg, err := b.store.Registrations.GetPlanRegistration(ctx, planID, b.config.ID)
	if err != nil {
		if !errors.Is(err, domainerrors.ErrRegistrationNotFound) {
			b.logger.Warn().Err(err).Str("plan_id", planID.String()).Msg("plan registration lookup failed")
		}
		return false
	}
	return reg.Registered()
}

// GetSubscriberInfo resolves the subscriber's name and preferred email.
func (b *base) GetSubscriberInfo(ctx context.Context, ref fin.SubscriberRef) (*fin.SubscriberInfo, error) {
	switch ref.Type {
	case fin.SubscriberOrganisation, fin.SubscriberPerson:
	default:
		return nil, fmt.Errorf("%w %s", domainerrors.ErrInvalidSubscriber, ref.Type)
	}
	info, err := b.store.Subscribers.GetSubscriberInfo(ctx, ref)
	if err != nil {
		if errors.Is(err, domainerrors.ErrSubscriberNotFound) {
			return nil, fmt.Errorf("unknown subscriber %s: %w", ref, err)
		}
		return nil, fmt.Errorf("look up subscriber %s: %w", ref, err)
	}
	return info, nil
}

// GetMerchantName returns the name of the organisation owning the
// product, or "" when it cannot be determined.
func (b *base) GetMerchantName(ctx context.Context, productID uuid.UUID) string {
	name, err := b.store.Products.MerchantName(ctx, productID)
	if err != nil {
		b.logger.Debug().Err(err).Str("product_id", productID.String()).Msg("merchant lookup failed")
		return ""
	}
	return name
}

// updateStatus stores a checked status and notifies the status hook.
func (b *base) updateStatus(ctx context.Context, sub *fin.Subscription, status fin.SubscriptionStatus) error {
	at := b.now().UTC()
	if err := b.store.Subscriptions.UpdateStatus(ctx, sub.ID, status, at); err != nil {
		return err
	}
	sub.Status = status
	sub.StatusDate = &at

	if b.metrics != nil {
		label := string(status)
		if label == "" {
			label = "UNKNOWN"
		}
		b.metrics.SubscriptionChecks.WithLabelValues(label).Inc()
	}

	if b.hook == nil {
		return nil
	}
	if err := b.hook.SubscriptionStatusChanged(ctx, sub); err != nil {
		b.logger.Error().Err(err).
			Str("subscription_id", sub.ID.String()).
			Str("status", string(status)).
			Msg("subscription status hook failed")
	}
	return nil
}

// reason renders err as an action log reason.
func reason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
