package providers

import (
	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/google/uuid"
)

// PayPal REST API v1 request and response bodies.

type paypalProduct struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Category    string `json:"category"`
}

func newPayPalProduct(p *fin.Product) paypalProduct {
	return paypalProduct{
		Name:        p.Name,
		Description: p.Description,
		Type:        string(p.ProviderType()),
		Category:    p.ProviderCategory(),
	}
}

type paypalFrequency struct {
	IntervalUnit  string `json:"interval_unit"`
	IntervalCount int    `json:"interval_count"`
}

type paypalMoney struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency_code"`
}

type paypalPricingScheme struct {
	FixedPrice paypalMoney `json:"fixed_price"`
}

type paypalBillingCycle struct {
	Frequency     paypalFrequency     `json:"frequency"`
	TenureType    string              `json:"tenure_type"`
	Sequence      int                 `json:"sequence"`
	TotalCycles   int                 `json:"total_cycles"`
	PricingScheme paypalPricingScheme `json:"pricing_scheme"`
}

type paypalPaymentPreferences struct {
	AutoBillOutstanding     bool `json:"auto_bill_outstanding"`
	PaymentFailureThreshold int  `json:"payment_failure_threshold"`
}

type paypalPlan struct {
	ProductID          string                   `json:"product_id"`
	Name               string                   `json:"name"`
	Description        string                   `json:"description,omitempty"`
	QuantitySupported  bool                     `json:"quantity_supported"`
	BillingCycles      []paypalBillingCycle     `json:"billing_cycles"`
	PaymentPreferences paypalPaymentPreferences `json:"payment_preferences"`
}

// newPayPalPlan maps a plan to a single regular billing cycle. Zero total
// cycles means the plan bills until cancelled.
func newPayPalPlan(plan *fin.SubscriptionPlan, productRef string) paypalPlan {
	return paypalPlan{
		ProductID:         productRef,
		Name:              plan.Name,
		Description:       plan.Description,
		QuantitySupported: false,
		BillingCycles: []paypalBillingCycle{{
			Frequency: paypalFrequency{
				IntervalUnit:  string(plan.IntervalUnit),
				IntervalCount: plan.IntervalCount,
			},
			TenureType:  "REGULAR",
			Sequence:    1,
			TotalCycles: plan.BillingCycles(),
			PricingScheme: paypalPricingScheme{
				FixedPrice: paypalMoney{
					Value:        plan.Price.StringFixed(2),
					CurrencyCode: plan.Currency,
				},
			},
		}},
		PaymentPreferences: paypalPaymentPreferences{
			AutoBillOutstanding:     true,
			PaymentFailureThreshold: 0,
		},
	}
}

type paypalName struct {
	GivenName string `json:"given_name"`
	Surname   string `json:"surname,omitempty"`
}

type paypalSubscriber struct {
	Name         paypalName `json:"name"`
	EmailAddress string     `json:"email_address,omitempty"`
}

func newPayPalSubscriber(info *fin.SubscriberInfo) paypalSubscriber {
	return paypalSubscriber{
		Name: paypalName{
			GivenName: info.FirstName,
			Surname:   info.LastName,
		},
		EmailAddress: info.Email,
	}
}

type paypalPaymentMethod struct {
	PayerSelected  string `json:"payer_selected"`
	PayeePreferred string `json:"payee_preferred"`
}

type paypalApplicationContext struct {
	BrandName          string              `json:"brand_name"`
	Locale             string              `json:"locale"`
	ShippingPreference string              `json:"shipping_preference"`
	UserAction         string              `json:"user_action"`
	PaymentMethod      paypalPaymentMethod `json:"payment_method"`
	ReturnURL          string              `json:"return_url"`
	CancelURL          string              `json:"cancel_url"`
}

type paypalSubscription struct {
	PlanID             string                   `json:"plan_id"`
	Subscriber         paypalSubscriber         `json:"subscriber"`
	ApplicationContext paypalApplicationContext `json:"application_context"`
}

// newPayPalSubscription builds the subscription request. SUBSCRIBE_NOW
// activates the subscription as soon as the subscriber approves it.
func newPayPalSubscription(planRef string, info *fin.SubscriberInfo, merchant string, callbacks CallbackURLs, id uuid.UUID) paypalSubscription {
	return paypalSubscription{
		PlanID:     planRef,
		Subscriber: newPayPalSubscriber(info),
		ApplicationContext: paypalApplicationContext{
			BrandName:          merchant,
			Locale:             "en-US",
			ShippingPreference: "NO_SHIPPING",
			UserAction:         "SUBSCRIBE_NOW",
			PaymentMethod: paypalPaymentMethod{
				PayerSelected:  "PAYPAL",
				PayeePreferred: "IMMEDIATE_PAYMENT_REQUIRED",
			},
			ReturnURL: callbacks.Return(id),
			CancelURL: callbacks.Cancel(id),
		},
	}
}

type paypalLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// paypalResource is the common shape of create and read responses.
type paypalResource struct {
	ID     string       `json:"id"`
	Status string       `json:"status,omitempty"`
	Links  []paypalLink `json:"links,omitempty"`
}

func (r *paypalResource) link(rel string) string {
	for _, l := range r.Links {
		if l.Rel == rel {
			return l.Href
		}
	}
	return ""
}
