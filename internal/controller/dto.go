package controller

import (
	"time"

	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/google/uuid"
)

// --- Request DTOs ---

// CreateSubscriptionRequest holds the input for subscribing an organisation
// or person to a plan.
type CreateSubscriptionRequest struct {
	PlanID         string `json:"plan_id" validate:"required,uuid"`
	SubscriberType string `json:"subscriber_type" validate:"required,oneof=ORGANISATION PERSON"`
	SubscriberID   string `json:"subscriber_id" validate:"required,uuid"`
}

// --- Response DTOs ---

// SubscriptionResponse represents a subscription in API responses.
type SubscriptionResponse struct {
	ID             string     `json:"id"`
	PlanID         string     `json:"plan_id"`
	ServiceID      string     `json:"service_id"`
	SubscriberType string     `json:"subscriber_type"`
	SubscriberID   string     `json:"subscriber_id"`
	RefNo          string     `json:"refno,omitempty"`
	ApprovalURL    string     `json:"approval_url,omitempty"`
	Status         string     `json:"status"`
	StatusDate     *time.Time `json:"status_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// StatusResponse carries the outcome of a status check.
type StatusResponse struct {
	SubscriptionID string `json:"subscription_id"`
	Status         string `json:"status"`
}

// LogEntryResponse represents an action log entry.
type LogEntryResponse struct {
	ID     string    `json:"id"`
	Date   time.Time `json:"date"`
	Action string    `json:"action"`
	Result string    `json:"result"`
	Reason string    `json:"reason,omitempty"`
}

// ErrorResponse represents an error response. ProviderStatus is the HTTP
// status the payment service answered with, if any.
type ErrorResponse struct {
	Error          string `json:"error"`
	Code           string `json:"code"`
	ProviderStatus int    `json:"provider_status,omitempty"`
}

// --- Conversion helpers ---

func (r CreateSubscriptionRequest) subscriber() fin.SubscriberRef {
	return fin.SubscriberRef{
		Type: fin.SubscriberType(r.SubscriberType),
		ID:   uuid.MustParse(r.SubscriberID),
	}
}

func FromSubscription(s *fin.Subscription) *SubscriptionResponse {
	return &SubscriptionResponse{
		ID:             s.ID.String(),
		PlanID:         s.PlanID.String(),
		ServiceID:      s.ServiceID.String(),
		SubscriberType: string(s.Subscriber.Type),
		SubscriberID:   s.Subscriber.ID.String(),
		RefNo:          s.RefNo,
		ApprovalURL:    s.ApprovalURL,
		Status:         string(s.Status),
		StatusDate:     s.StatusDate,
		CreatedAt:      s.CreatedAt,
	}
}

func FromLogEntries(entries []*fin.LogEntry) []LogEntryResponse {
	out := make([]LogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, LogEntryResponse{
			ID:     e.ID.String(),
			Date:   e.Date,
			Action: e.Action,
			Result: string(e.Result),
			Reason: e.Reason,
		})
	}
	return out
}
