package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"chainvault/internal/errs"
)

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func WriteError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse{
		Status:  "error",
		Message: message,
	})
}

// StatusFor maps the error taxonomy onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrInsufficientBalance),
		errors.Is(err, errs.ErrInvalidToken),
		errors.Is(err, errs.ErrUnsupportedToken),
		errors.Is(err, errs.ErrUnsupportedChain),
		errors.Is(err, errs.ErrInvalidAmount),
		errors.Is(err, errs.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidStatusTransition):
		return http.StatusConflict
	case errors.Is(err, errs.ErrUpstreamPriceUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// WriteAppError writes err with the status of its taxonomy class. Unclassified
// errors are logged and reported as a generic internal error.
func WriteAppError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		Logger.WithError(err).Error("request failed")
		WriteError(w, "internal server error", status)
		return
	}
	WriteError(w, err.Error(), status)
}
