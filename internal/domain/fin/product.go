package fin

import "github.com/google/uuid"

// ProductType is the provider-side product classification.
type ProductType string

const (
	ProductTypeService  ProductType = "SERVICE"
	ProductTypePhysical ProductType = "PHYSICAL"
	ProductTypeDigital  ProductType = "DIGITAL"
)

const DefaultProductCategory = "GENERAL"

// Product is a billable item owned by an organisation.
type Product struct {
	ID             uuid.UUID
	OrganisationID uuid.UUID
	Name           string
	Description    string
	Type           ProductType
	Category       string
}

// ProviderType returns the product type, defaulting to SERVICE.
func (p *Product) ProviderType() ProductType {
	switch p.Type {
	case ProductTypeService, ProductTypePhysical, ProductTypeDigital:
		return p.Type
	default:
		return ProductTypeService
	}
}

// ProviderCategory returns the product category, defaulting to GENERAL.
func (p *Product) ProviderCategory() string {
	if p.Category == "" {
		return DefaultProductCategory
	}
	return p.Category
}

// ProductRegistration links a product to a payment service.
type ProductRegistration struct {
	ProductID    uuid.UUID
	ServiceID    uuid.UUID
	IsRegistered bool
	RefNo        string
}

// Registered reports whether the link is usable for further registrations.
func (r *ProductRegistration) Registered() bool {
	return r != nil && r.IsRegistered && r.RefNo != ""
}

// PlanRegistration links a subscription plan to a payment service.
type PlanRegistration struct {
	PlanID       uuid.UUID
	ServiceID    uuid.UUID
	IsRegistered bool
	RefNo        string
}

func (r *PlanRegistration) Registered() bool {
	return r != nil && r.IsRegistered && r.RefNo != ""
}
