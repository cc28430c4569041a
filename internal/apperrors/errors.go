// Package apperrors defines the domain error classes shared by services and
// handlers. Services wrap these sentinels with fmt.Errorf and %w; handlers
// match them with errors.Is to choose a response code.
package apperrors

import "errors"

var (
	// ErrNotFound: a referenced entity (project, node, issue, role,
	// permission, sub-role) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict: duplicate name within scope, or an entity still in use.
	ErrConflict = errors.New("conflict")

	// ErrInvalidState: the operation is not legal from the current state,
	// e.g. escalating from a root node.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation: malformed or missing input.
	ErrValidation = errors.New("validation error")

	// ErrInternal: unexpected persistence failure; retryable.
	ErrInternal = errors.New("internal error")
)

// Code maps an error to the API error code used in the response envelope.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}
