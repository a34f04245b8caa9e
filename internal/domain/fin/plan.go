package fin

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	domainerrors "github.com/cassiomorais/paysvc/internal/domain/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanStatus is the lifecycle status of a subscription plan.
type PlanStatus string

const (
	PlanActive   PlanStatus = "ACTIVE"
	PlanInactive PlanStatus = "INACTIVE"
)

// IntervalUnit is the unit of a billing interval.
type IntervalUnit string

const (
	IntervalDay   IntervalUnit = "DAY"
	IntervalWeek  IntervalUnit = "WEEK"
	IntervalMonth IntervalUnit = "MONTH"
	IntervalYear  IntervalUnit = "YEAR"
)

// maxInterval caps a billing interval at one year.
var maxInterval = map[IntervalUnit]int{
	IntervalDay:   365,
	IntervalWeek:  52,
	IntervalMonth: 12,
	IntervalYear:  1,
}

var minPrice = decimal.RequireFromString("0.01")

// SubscriptionPlan is a recurring billing scheme for a product.
type SubscriptionPlan struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id" validate:"required"`
	Name          string          `json:"name" validate:"required,max=128"`
	Description   string          `json:"description"`
	Status        PlanStatus      `json:"status" validate:"oneof=ACTIVE INACTIVE"`
	IntervalUnit  IntervalUnit    `json:"interval_unit" validate:"oneof=DAY WEEK MONTH YEAR"`
	IntervalCount int             `json:"interval_count" validate:"min=1,max=365"`
	Fixed         bool            `json:"fixed"`
	TotalCycles   int             `json:"total_cycles" validate:"min=0,max=999"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency" validate:"len=3,uppercase"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field ranges and the one-year interval cap.
func (p *SubscriptionPlan) Validate() error {
	var errs []error

	if err := validate.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = append(errs, domainerrors.NewValidationError(fe.Field(), describe(fe)))
		}
	}

	if limit, ok := maxInterval[p.IntervalUnit]; ok && p.IntervalCount > limit {
		errs = append(errs, domainerrors.NewValidationError("interval_count", "maximum interval is 1 year"))
	}
	if p.Fixed && p.TotalCycles < 1 {
		errs = append(errs, domainerrors.NewValidationError("total_cycles", "number of billing cycles required for fixed-term plans"))
	}
	if p.Price.LessThan(minPrice) {
		errs = append(errs, domainerrors.NewValidationError("price", "must be at least 0.01"))
	}

	return errors.Join(errs...)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return fmt.Sprintf("must be %s characters long", fe.Param())
	default:
		return "failed " + fe.Tag()
	}
}

// IsActive reports whether the plan may be registered or subscribed.
func (p *SubscriptionPlan) IsActive() bool {
	return p.Status == PlanActive
}

// BillingCycles returns the number of billing cycles; 0 means indefinite.
// A stored cycle count is ignored unless the plan is fixed-term.
func (p *SubscriptionPlan) BillingCycles() int {
	if p.Fixed {
		return p.TotalCycles
	}
	return 0
}
