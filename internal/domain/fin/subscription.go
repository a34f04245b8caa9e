package fin

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus mirrors the payment service's subscription status.
// The empty status means the service did not report one.
type SubscriptionStatus string

const (
	// SubscriptionNew is the local pending state before the service knows
	// about the subscription.
	SubscriptionNew             SubscriptionStatus = "NEW"
	SubscriptionApprovalPending SubscriptionStatus = "APPROVAL_PENDING"
	SubscriptionApproved        SubscriptionStatus = "APPROVED"
	SubscriptionActive          SubscriptionStatus = "ACTIVE"
	SubscriptionSuspended       SubscriptionStatus = "SUSPENDED"
	SubscriptionCancelled       SubscriptionStatus = "CANCELLED"
	SubscriptionExpired         SubscriptionStatus = "EXPIRED"
	SubscriptionUnknown         SubscriptionStatus = ""
)

// IsTerminal reports whether no further status change is expected.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionCancelled || s == SubscriptionExpired
}

// SubscriberType names the kind of entity a subscriber reference points to.
type SubscriberType string

const (
	SubscriberOrganisation SubscriberType = "ORGANISATION"
	SubscriberPerson       SubscriberType = "PERSON"
)

// SubscriberRef is a polymorphic reference to the subscribing entity.
type SubscriberRef struct {
	Type SubscriberType
	ID   uuid.UUID
}

func (r SubscriberRef) String() string {
	return fmt.Sprintf("%s #%s", r.Type, r.ID)
}

// SubscriberInfo is the provider-agnostic subscriber identity.
type SubscriberInfo struct {
	FirstName string
	LastName  string
	Email     string
}

// Subscription is a subscriber's enrolment in a plan at a payment service.
type Subscription struct {
	ID          uuid.UUID
	Subscriber  SubscriberRef
	PlanID      uuid.UUID
	ServiceID   uuid.UUID
	RefNo       string
	ApprovalURL string
	Status      SubscriptionStatus
	StatusDate  *time.Time
	CreatedAt   time.Time
}

// NewSubscription creates a pending subscription record.
func NewSubscription(planID, serviceID uuid.UUID, subscriber SubscriberRef, now time.Time) *Subscription {
	return &Subscription{
		ID:         uuid.New(),
		Subscriber: subscriber,
		PlanID:     planID,
		ServiceID:  serviceID,
		Status:     SubscriptionNew,
		CreatedAt:  now,
	}
}
