package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeDeliveryFailed    = "DELIVERY_FAILED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}

// WriteDomainError maps the domain error taxonomy onto HTTP responses.
// Anything unrecognised is logged and reported as a 500 without leaking
// the underlying message.
func WriteDomainError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	var notFoundErr *NotFoundError
	var deliveryErr *DeliveryError

	switch {
	case stderrors.As(err, &validationErr):
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidInput, validationErr.Error(), validationErr.Fields)
	case stderrors.As(err, &notFoundErr):
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, notFoundErr.Error(), nil)
	case stderrors.As(err, &deliveryErr):
		WriteError(w, http.StatusBadGateway, ErrCodeDeliveryFailed, deliveryErr.Error(), nil)
	default:
		log.Error().Err(err).Msg("unhandled error")
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "Internal server error", nil)
	}
}
