package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON/writeError so the API has one
// shape for success and one for failure:
//
//	{"error": "not_found", "message": "item not found with id abc123"}
//
// The error kinds come from internal/apperror; this file is the only place
// that knows which HTTP status each kind becomes.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/manhwee/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be set before the body is written.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
//
//	ErrValidation                    → 400 validation_error
//	ErrAuthRequired, ErrUnauthorized → 401 unauthorized
//	ErrForbidden                     → 403 forbidden
//	ErrNotFound                      → 404 not_found
//	ErrConflict                      → 409 conflict
//	ErrPersistence                   → 503 persistence_error
//	anything else                    → 500 internal_error
//
// The Cause of a persistence failure is logged, never sent.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError

	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest // 400
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrAuthRequired), errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized // 401
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden // 403
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound // 404
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict // 409
			errorType = "conflict"
		case errors.Is(err, apperror.ErrPersistence):
			status = http.StatusServiceUnavailable // 503
			errorType = "persistence_error"
			if appErr.Cause != nil {
				slog.Error("storage backend failure",
					slog.String("message", appErr.Message),
					slog.String("error", appErr.Cause.Error()),
				)
			}
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error: the raw message might contain SQL or file paths.
	slog.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a JSON request body into dst. A malformed body, or a
// value that cannot be read as its field's type, is a validation error.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "Invalid JSON body: "+err.Error())
	}
	return nil
}
