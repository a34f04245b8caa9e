package controller

import (
	"context"
	"net/http"

	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/google/uuid"
)

// Registrar is the set of registration triggers the HTTP API exposes.
type Registrar interface {
	RegisterProduct(ctx context.Context, serviceID, productID uuid.UUID) error
	RetireProduct(ctx context.Context, serviceID, productID uuid.UUID) error
	RegisterPlan(ctx context.Context, serviceID, planID uuid.UUID) error
	CreateSubscription(ctx context.Context, serviceID, planID uuid.UUID, subscriber fin.SubscriberRef) (*fin.Subscription, error)
	RequestCheck(ctx context.Context, subscriptionID uuid.UUID) error
	UserInfo(ctx context.Context, serviceID uuid.UUID) (map[string]any, error)
	ActionLog(ctx context.Context, serviceID uuid.UUID, limit, offset int) ([]*fin.LogEntry, error)
	ConfirmSubscription(ctx context.Context, subscriptionID uuid.UUID) error
	CancelSubscription(ctx context.Context, subscriptionID uuid.UUID) error
}

// RegistrationController handles registration and subscription requests.
type RegistrationController struct {
	registrar Registrar
}

func NewRegistrationController(registrar Registrar) *RegistrationController {
	return &RegistrationController{registrar: registrar}
}

// RegisterProduct handles POST /api/v1/services/{serviceID}/products/{productID}/registration
func (h *RegistrationController) RegisterProduct(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := uuidParam(w, r, "serviceID")
	if !ok {
		return
	}
	productID, ok := uuidParam(w, r, "productID")
	if !ok {
		return
	}

	if err := h.registrar.RegisterProduct(r.Context(), serviceID, productID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RetireProduct handles DELETE /api/v1/services/{serviceID}/products/{productID}/registration
func (h *RegistrationController) RetireProduct(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := uuidParam(w, r, "serviceID")
	if !ok {
		return
	}
	productID, ok := uuidParam(w, r, "productID")
	if !ok {
		return
	}

	if err := h.registrar.RetireProduct(r.Context(), serviceID, productID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterPlan handles POST /api/v1/services/{serviceID}/plans/{planID}/registration
func (h *RegistrationController) RegisterPlan(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := uuidParam(w, r, "serviceID")
	if !ok {
		return
	}
	planID, ok := uuidParam(w, r, "planID")
	if !ok {
		return
	}

	if err := h.registrar.RegisterPlan(r.Context(), serviceID, planID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateSubscription handles POST /api/v1/services/{serviceID}/subscriptions
func (h *RegistrationController) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := uuidParam(w, r, "serviceID")
	if !ok {
		return
	}

	var req CreateSubscriptionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sub, err := h.registrar.CreateSubscription(r.Context(), serviceID, uuid.MustParse(req.PlanID), req.subscriber())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FromSubscription(sub))
}

// UserInfo handles GET /api/v1/services/{serviceID}/userinfo
func (h *RegistrationController) UserInfo(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := uuidParam(w, r, "serviceID")
	if !ok {
		return
	}

	info, err := h.registrar.UserInfo(r.Context(), serviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ActionLog handles GET /api/v1/services/{serviceID}/log?limit=&offset=
func (h *RegistrationController) ActionLog(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := uuidParam(w, r, "serviceID")
	if !ok {
		return
	}

	entries, err := h.registrar.ActionLog(r.Context(), serviceID, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromLogEntries(entries))
}

// RequestCheck handles POST /api/v1/subscriptions/{id}/check
func (h *RegistrationController) RequestCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.registrar.RequestCheck(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, StatusResponse{SubscriptionID: id.String(), Status: "queued"})
}

// Confirm handles GET /api/v1/subscriptions/{id}/confirm, the return URL
// of the approval page.
func (h *RegistrationController) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.registrar.ConfirmSubscription(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// Cancel handles GET /api/v1/subscriptions/{id}/cancel, the cancel URL of
// the approval page.
func (h *RegistrationController) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.registrar.CancelSubscription(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
