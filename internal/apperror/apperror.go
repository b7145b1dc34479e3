// Package apperror defines the error taxonomy shared by every layer.
//
// Repositories and services return these kinds; only the HTTP handlers
// translate them into status codes (see handler/response.go).
//
//	Validation       → a malformed value (missing values are defaulted, never errors)
//	NotFound         → unknown id, or an id owned by somebody else
//	Conflict         → duplicate username/email on signup
//	Forbidden        → authenticated but not allowed
//	Unauthorized     → wrong credentials
//	AuthRequired     → no active session; mutations are refused
//	Persistence      → the storage backend failed; surfaced, never retried
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrAuthRequired = errors.New("authentication required")
	ErrPersistence  = errors.New("persistence failure")
)

type AppError struct {
	Err     error  // sentinel kind, matched with errors.Is
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying failure, logged but never shown to clients
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized reports rejected credentials (wrong password, unknown account).
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// AuthRequired reports that the operation needs an active session.
func AuthRequired() *AppError {
	return &AppError{
		Err:     ErrAuthRequired,
		Message: "an active session is required",
	}
}

// Persistence wraps a backend failure. op names what was being attempted,
// e.g. "save item". The cause stays reachable through the Cause field.
func Persistence(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrPersistence,
		Message: fmt.Sprintf("failed to %s", op),
		Cause:   cause,
	}
}
