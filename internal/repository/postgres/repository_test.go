package postgres

import "github.com/cassiomorais/paysvc/internal/domain/fin"

var (
	_ fin.ServiceRepository      = (*ServiceRepository)(nil)
	_ fin.ProductRepository      = (*ProductRepository)(nil)
	_ fin.PlanRepository         = (*PlanRepository)(nil)
	_ fin.RegistrationRepository = (*RegistrationRepository)(nil)
	_ fin.SubscriptionRepository = (*SubscriptionRepository)(nil)
	_ fin.SubscriberRepository   = (*SubscriberRepository)(nil)
	_ fin.LogRepository          = (*LogRepository)(nil)
)
