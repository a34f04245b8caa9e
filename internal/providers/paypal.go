package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	domainerrors "github.com/cassiomorais/paysvc/internal/domain/errors"
	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/cassiomorais/paysvc/internal/transport"
	"github.com/cassiomorais/paysvc/pkg/saga"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	paypalTokenPath         = "/v1/oauth2/token"
	paypalUserInfoPath      = "/v1/identity/oauth2/userinfo"
	paypalProductsPath      = "/v1/catalogs/products"
	paypalPlansPath         = "/v1/billing/plans"
	paypalSubscriptionsPath = "/v1/billing/subscriptions"

	// paypalRequestID makes create calls idempotent on the PayPal side.
	paypalRequestID = "PayPal-Request-Id"

	unknownMerchant = "Unknown"
)

// PayPal is the adapter for the PayPal REST API (v1).
type PayPal struct {
	*base
}

var _ PaymentService = (*PayPal)(nil)

// NewPayPal builds a PayPal adapter for the service configuration.
func NewPayPal(cfg fin.ServiceConfig, deps Deps, breaker *gobreaker.CircuitBreaker[*transport.Response]) (*PayPal, error) {
	b, err := newBase(cfg, deps, breaker)
	if err != nil {
		return nil, err
	}
	p := &PayPal{base: b}
	b.tokens.SetFetcher(p)
	return p, nil
}

// FetchAccessToken runs the OAuth2 client credentials grant against the
// service and stores the issued token.
func (p *PayPal) FetchAccessToken(ctx context.Context) (*fin.Token, error) {
	const action = "Get Access Token"

	if !p.config.HasCredentials() {
		p.log.Error(ctx, action, "Lacking client ID/secret to fetch access token")
		return nil, domainerrors.ErrMissingCredentials
	}
	if p.config.BaseURL == "" {
		p.log.Error(ctx, action, "No base URL set")
		return nil, domainerrors.NewConfigurationError("no base URL set", domainerrors.ErrNoBaseURL)
	}

	cc := clientcredentials.Config{
		ClientID:     p.config.Username,
		ClientSecret: p.config.Password,
		TokenURL:     p.client.URL(paypalTokenPath, nil),
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, p.client.HTTPClient()))
	if err != nil {
		err = tokenError(err)
		p.log.Error(ctx, action, reason(err))
		return nil, err
	}

	token := fin.Token{
		AccessToken: tok.AccessToken,
		Type:        tok.Type(),
		Expiry:      tok.Expiry,
	}
	if err := p.tokens.Store(ctx, token); err != nil {
		p.log.Error(ctx, action, reason(err))
		return nil, err
	}

	p.log.Success(ctx, action, "")
	return &token, nil
}

// tokenError maps an oauth2 failure onto the transport error kinds.
func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &domainerrors.ProviderError{StatusCode: re.Response.StatusCode, Body: string(re.Body)}
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return &domainerrors.TransportError{Err: err}
	}
	return fmt.Errorf("%w: %v", domainerrors.ErrNoAccessToken, err)
}

// GetUserInfo returns the PayPal identity of the account owning the
// client credentials.
func (p *PayPal) GetUserInfo(ctx context.Context) (map[string]any, error) {
	const action = "Get User Info"

	var info map[string]any
	_, err := p.client.Send(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   paypalUserInfoPath,
		Query:  url.Values{"schema": {"paypalv1.1"}},
		Auth:   transport.AuthToken,
		Out:    &info,
	})
	if err != nil {
		p.log.Error(ctx, action, reason(err))
		return nil, err
	}

	p.log.Success(ctx, action, "")
	return info, nil
}

// RegisterProduct creates the product in the PayPal catalog, or updates
// it if already registered.
func (p *PayPal) RegisterProduct(ctx context.Context, productID uuid.UUID) error {
	if p.HasProduct(ctx, productID) {
		return p.UpdateProduct(ctx, productID)
	}

	action := fmt.Sprintf("Register product #%s", productID)

	product, err := p.store.Products.GetByID(ctx, productID)
	if err != nil {
		p.log.Error(ctx, action, "Product not found")
		return err
	}

	var created paypalResource
	_, err = p.client.Send(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   paypalProductsPath,
		Body:   newPayPalProduct(product),
		Header: requestID("product", productID),
		Auth:   transport.AuthToken,
		Out:    &created,
	})
	if err != nil {
		p.log.Error(ctx, action, reason(err))
		return err
	}
	if created.ID == "" {
		p.log.Error(ctx, action, "No product reference received")
		return fmt.Errorf("product %s: %w", productID, domainerrors.ErrMissingReference)
	}

	p.log.Success(ctx, action, "")

	if err := p.store.Registrations.UpsertProductRegistration(ctx, &fin.ProductRegistration{
		ProductID:    productID,
		ServiceID:    p.config.ID,
		IsRegistered: true,
		RefNo:        created.ID,
	}); err != nil {
		p.log.Error(ctx, action, "Could not store product reference: "+reason(err))
		return err
	}
	return nil
}

// UpdateProduct is a no-op: the catalog API rejects product patches.
func (p *PayPal) UpdateProduct(ctx context.Context, productID uuid.UUID) error {
	p.log.Info(ctx, fmt.Sprintf("Update product #%s", productID), "Not supported by API")
	return nil
}

// RetireProduct is a no-op: the catalog API cannot delete products.
func (p *PayPal) RetireProduct(ctx context.Context, productID uuid.UUID) error {
	p.log.Info(ctx, fmt.Sprintf("Retire product #%s", productID), "Not supported by API")
	return nil
}

// RegisterSubscriptionPlan creates a billing plan, registering its product
// first if necessary. Registered plans are updated instead.
func (p *PayPal) RegisterSubscriptionPlan(ctx context.Context, planID uuid.UUID) error {
	if p.HasSubscriptionPlan(ctx, planID) {
		return p.UpdateSubscriptionPlan(ctx, planID)
	}

	action := fmt.Sprintf("Register subscription plan #%s", planID)

	plan, err := p.store.Plans.GetByID(ctx, planID)
	if err != nil {
		p.log.Error(ctx, action, "Subscription plan not found")
		return err
	}
	if !plan.IsActive() {
		p.log.Error(ctx, action, "Cannot register inactive subscription plan")
		return domainerrors.ErrPlanInactive
	}
	if !p.HasProduct(ctx, plan.ProductID) {
		if err := p.RegisterProduct(ctx, plan.ProductID); err != nil {
			p.log.Error(ctx, action, "Could not register product with service")
			return err
		}
	}

	product, err := p.store.Registrations.GetProductRegistration(ctx, plan.ProductID, p.config.ID)
	if err != nil || product.RefNo == "" {
		p.log.Error(ctx, action, "Product reference number missing")
		return fmt.Errorf("product %s: %w", plan.ProductID, domainerrors.ErrMissingReference)
	}

	var created paypalResource
	_, err = p.client.Send(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   paypalPlansPath,
		Body:   newPayPalPlan(plan, product.RefNo),
		Header: requestID("plan", planID),
		Auth:   transport.AuthToken,
		Out:    &created,
	})
	if err != nil {
		p.log.Error(ctx, action, reason(err))
		return err
	}
	if created.ID == "" {
		p.log.Error(ctx, action, "No plan reference received")
		return fmt.Errorf("plan %s: %w", planID, domainerrors.ErrMissingReference)
	}

	p.log.Success(ctx, action, "")

	if err := p.store.Registrations.UpsertPlanRegistration(ctx, &fin.PlanRegistration{
		PlanID:       planID,
		ServiceID:    p.config.ID,
		IsRegistered: true,
		RefNo:        created.ID,
	}); err != nil {
		p.log.Error(ctx, action, "Could not store plan reference: "+reason(err))
		return err
	}
	return nil
}

// UpdateSubscriptionPlan does not push plan changes yet.
// TODO: PATCH /v1/billing/plans/{id} for name and description, and
// update-pricing-schemes for price changes.
func (p *PayPal) UpdateSubscriptionPlan(ctx context.Context, planID uuid.UUID) error {
	p.log.Info(ctx, fmt.Sprintf("Update subscription plan #%s", planID), "Not yet implemented")
	return nil
}

// RegisterSubscription creates a pending local subscription and registers
// it with PayPal. The subscriber must then be sent to the approval URL
// stored on the subscription. On failure the local record is removed.
func (p *PayPal) RegisterSubscription(ctx context.Context, planID uuid.UUID, subscriber fin.SubscriberRef) (uuid.UUID, error) {
	action := fmt.Sprintf("Register subscription for subscriber %s with plan #%s", subscriber, planID)

	plan, err := p.store.Plans.GetByID(ctx, planID)
	if err != nil {
		p.log.Fatal(ctx, action, "Subscription plan not found")
		return uuid.Nil, err
	}
	if plan.Status == fin.PlanInactive {
		p.log.Fatal(ctx, action, "Subscription plan not found")
		return uuid.Nil, domainerrors.ErrPlanInactive
	}

	if !p.HasSubscriptionPlan(ctx, planID) {
		if err := p.RegisterSubscriptionPlan(ctx, planID); err != nil {
			p.log.Fatal(ctx, action, fmt.Sprintf("Could not register subscription plan #%s", planID))
			return uuid.Nil, err
		}
	}
	registration, err := p.store.Registrations.GetPlanRegistration(ctx, planID, p.config.ID)
	if err != nil || !registration.Registered() {
		p.log.Fatal(ctx, action, "Subscription plan reference number missing")
		return uuid.Nil, fmt.Errorf("plan %s: %w", planID, domainerrors.ErrMissingReference)
	}

	merchant := p.GetMerchantName(ctx, plan.ProductID)
	if merchant == "" {
		p.log.Warning(ctx, action, "Unknown merchant")
		merchant = unknownMerchant
	}

	info, err := p.GetSubscriberInfo(ctx, subscriber)
	if err != nil {
		p.log.Fatal(ctx, action, reason(err))
		return uuid.Nil, err
	}

	sub := fin.NewSubscription(planID, p.config.ID, subscriber, p.now().UTC())
	var created paypalResource

	err = saga.New("register-subscription").
		AddStep(saga.Step{
			Name: "create pending subscription",
			Execute: func(ctx context.Context) error {
				return p.store.Subscriptions.Create(ctx, sub)
			},
			Compensate: func(ctx context.Context) error {
				return p.store.Subscriptions.Delete(ctx, sub.ID)
			},
		}).
		AddStep(saga.Step{
			Name: "register with payment service",
			Execute: func(ctx context.Context) error {
				_, err := p.client.Send(ctx, transport.Request{
					Method: http.MethodPost,
					Path:   paypalSubscriptionsPath,
					Body:   newPayPalSubscription(registration.RefNo, info, merchant, p.callbacks, sub.ID),
					Header: requestID("subscription", sub.ID),
					Auth:   transport.AuthToken,
					Out:    &created,
				})
				if err != nil {
					p.log.Error(ctx, action, reason(err))
					return err
				}
				if created.ID == "" {
					p.log.Error(ctx, action, "No subscription reference received")
					return domainerrors.ErrMissingReference
				}
				return nil
			},
		}).
		AddStep(saga.Step{
			Name: "store reference",
			Execute: func(ctx context.Context) error {
				return p.store.Subscriptions.SetReference(ctx, sub.ID, created.ID, created.link("approve"))
			},
		}).
		Execute(ctx)
	if err != nil {
		switch saga.FailedStep(err) {
		case 0:
			p.log.Fatal(ctx, action, "Could not create subscription")
		case 2:
			p.log.Error(ctx, action, "Could not store subscription reference")
		}
		var se *saga.StepError
		if errors.As(err, &se) && se.CompensationErr != nil {
			p.logger.Error().Err(se.CompensationErr).
				Str("subscription_id", sub.ID.String()).
				Msg("pending subscription not removed")
		}
		return uuid.Nil, err
	}

	p.log.Success(ctx, action, "")
	return sub.ID, nil
}

// CheckSubscription reads the subscription status from PayPal, stores it
// and notifies the status hook. A subscription unknown to PayPal counts
// as cancelled. The stored status is updated even if PayPal reports none.
func (p *PayPal) CheckSubscription(ctx context.Context, subscriptionID uuid.UUID) (fin.SubscriptionStatus, error) {
	action := fmt.Sprintf("Check subscription #%s", subscriptionID)

	sub, err := p.store.Subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		p.log.Error(ctx, action, "Subscription not found")
		return fin.SubscriptionUnknown, err
	}
	if sub.RefNo == "" {
		p.log.Error(ctx, action, "Subscription reference number missing")
		return fin.SubscriptionUnknown, fmt.Errorf("subscription %s: %w", subscriptionID, domainerrors.ErrMissingReference)
	}

	var status fin.SubscriptionStatus
	var current paypalResource
	code, err := p.client.Send(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   paypalSubscriptionsPath + "/" + url.PathEscape(sub.RefNo),
		Auth:   transport.AuthToken,
		Out:    &current,
	})
	switch {
	case err != nil && code == http.StatusNotFound:
		p.log.Warning(ctx, action, "Subscription not found")
		status = fin.SubscriptionCancelled
	case err != nil:
		p.log.Error(ctx, action, reason(err))
		return fin.SubscriptionUnknown, err
	case current.Status == "":
		p.log.Warning(ctx, action, "Unclear subscription status")
		status = fin.SubscriptionUnknown
	default:
		p.log.Success(ctx, action, "")
		status = fin.SubscriptionStatus(current.Status)
	}

	if err := p.updateStatus(ctx, sub, status); err != nil {
		p.log.Error(ctx, action, "Could not update subscription status: "+reason(err))
		return fin.SubscriptionUnknown, err
	}
	return status, nil
}

func requestID(kind string, id uuid.UUID) http.Header {
	h := http.Header{}
	h.Set(paypalRequestID, kind+"-"+id.String())
	return h
}
