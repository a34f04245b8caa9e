package testutil

import (
	"time"

	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func NewTestService(baseURL string) *fin.ServiceConfig {
	return &fin.ServiceConfig{
		ID:       uuid.New(),
		Name:     "PayPal Sandbox",
		APIType:  fin.APITypePayPal,
		BaseURL:  baseURL,
		Username: "client-id",
		Password: "client-secret",
	}
}

func NewTestProduct() *fin.Product {
	return &fin.Product{
		ID:             uuid.New(),
		OrganisationID: uuid.New(),
		Name:           "Membership",
		Description:    "Annual club membership",
		Type:           fin.ProductTypeService,
		Category:       "GENERAL",
	}
}

func NewTestPlan(productID uuid.UUID) *fin.SubscriptionPlan {
	return &fin.SubscriptionPlan{
		ID:            uuid.New(),
		ProductID:     productID,
		Name:          "Monthly",
		Description:   "Billed every month",
		Status:        fin.PlanActive,
		IntervalUnit:  fin.IntervalMonth,
		IntervalCount: 1,
		Price:         decimal.RequireFromString("9.50"),
		Currency:      "EUR",
	}
}

func NewFixedTestPlan(productID uuid.UUID, cycles int) *fin.SubscriptionPlan {
	p := NewTestPlan(productID)
	p.Fixed = true
	p.TotalCycles = cycles
	return p
}

// NewTestSubscription returns a subscription already registered under refNo.
func NewTestSubscription(planID, serviceID uuid.UUID, refNo string) *fin.Subscription {
	sub := fin.NewSubscription(planID, serviceID, fin.SubscriberRef{
		Type: fin.SubscriberPerson,
		ID:   uuid.New(),
	}, time.Now())
	sub.RefNo = refNo
	sub.Status = fin.SubscriptionApprovalPending
	return sub
}
