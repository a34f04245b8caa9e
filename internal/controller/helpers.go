package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	domainErrors "github.com/cassiomorais/paysvc/internal/domain/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrServiceNotFound, http.StatusNotFound, "service_not_found"},
	{domainErrors.ErrProductNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrPlanNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrSubscriptionNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrSubscriberNotFound, http.StatusNotFound, "subscriber_not_found"},
	{domainErrors.ErrInvalidSubscriber, http.StatusBadRequest, "invalid_subscriber"},
	{domainErrors.ErrPlanInactive, http.StatusUnprocessableEntity, "plan_inactive"},
	{domainErrors.ErrMissingCredentials, http.StatusUnprocessableEntity, "missing_credentials"},
	{domainErrors.ErrMissingReference, http.StatusConflict, "not_registered"},
	{domainErrors.ErrLockAcquisitionFailed, http.StatusConflict, "registration_in_progress"},
	{domainErrors.ErrUnsupported, http.StatusNotImplemented, "unsupported"},
	{domainErrors.ErrProviderUnavailable, http.StatusServiceUnavailable, "provider_unavailable"},
	{domainErrors.ErrNoAccessToken, http.StatusBadGateway, "provider_error"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			writeJSON(w, m.status, resp)
			return
		}
	}

	var configErr *domainErrors.ConfigurationError
	if errors.As(err, &configErr) {
		resp.Code = "service_misconfigured"
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	// The service answered, but not with success.
	var providerErr *domainErrors.ProviderError
	if errors.As(err, &providerErr) {
		resp.Code = "provider_error"
		resp.ProviderStatus = providerErr.StatusCode
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	var transportErr *domainErrors.TransportError
	var decodeErr *domainErrors.DecodeError
	if errors.As(err, &transportErr) || errors.As(err, &decodeErr) {
		resp.Code = "provider_unreachable"
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}

// uuidParam parses the named URL parameter, writing a 400 if it is not a UUID.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid " + name, Code: "invalid_id"})
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}
