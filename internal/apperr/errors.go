package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error categories surfaced to callers of the order subsystem
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("resource not found")
	ErrConflict        = errors.New("stale write rejected")
	ErrPersistence     = errors.New("persistence failure")
	ErrExternalService = errors.New("external service failure")

	// ErrPermissionDenied and ErrInvalidTransition are validation failures:
	// both are rejected before any mutation.
	ErrPermissionDenied  = fmt.Errorf("%w: permission denied", ErrValidation)
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrValidation)
)

// Validation returns a validation error describing the offending field
func Validation(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}

// NotFound returns a not-found error for an entity
func NotFound(entity string, id interface{}) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
}

// Denied returns a permission error for a resource/action pair
func Denied(resource, action string) error {
	return fmt.Errorf("%w: %s on %s", ErrPermissionDenied, action, resource)
}

// Persistence wraps a store failure
func Persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

// External wraps a failure of the document store or the notification channel
func External(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrExternalService, op, err)
}

// HTTPStatus maps an error onto the response status used by the API
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
