// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/eventharmony/eventharmony/internal/policy"
	"github.com/eventharmony/eventharmony/internal/shared"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807. Policy
// denials keep their reason code in the problem title; registration business
// rules surface as 400 rather than 403.
func RespondError(w http.ResponseWriter, err error) {
	var denied *policy.DeniedError
	if errors.As(err, &denied) {
		if denied.Reason.BusinessRule() {
			Problem(w, http.StatusBadRequest, string(denied.Reason), registrationDetail(denied.Reason))
			return
		}
		Problem(w, http.StatusForbidden, string(denied.Reason), "You do not have permission to perform this action")
		return
	}
	var invalid *policy.InvalidModuleError
	if errors.As(err, &invalid) {
		Problem(w, http.StatusBadRequest, "Invalid Module", err.Error())
		return
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "The requested resource does not exist")
	case errors.Is(err, ErrDuplicate), errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "You do not have permission to perform this action")
	case errors.Is(err, ErrUnauthorized), errors.Is(err, shared.ErrUnauthenticated), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "Not authorized to access this route")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func registrationDetail(reason policy.Reason) string {
	switch reason {
	case policy.ReasonRegistrationClosed:
		return "Registration for this event is closed"
	case policy.ReasonAtCapacity:
		return "This event is at capacity"
	case policy.ReasonAlreadyRegistered:
		return "You are already registered for this event"
	}
	return ""
}
