package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/veridocs/veridocs-core/internal/auth"
	"github.com/veridocs/veridocs-core/internal/document"
	"github.com/veridocs/veridocs-core/internal/project"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeQuotaExceeded  = "quota_exceeded"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeConflict writes a 409 error response.
func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps a domain error to the matching HTTP response.
//
// Handlers call this for errors bubbling up from the auth engine and the
// repositories so the status mapping lives in one place. Unknown errors
// become a 500 with a generic message; the underlying error is logged by
// the caller, never echoed to the client.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrValidation),
		errors.Is(err, project.ErrValidation),
		errors.Is(err, document.ErrValidation):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenRevoked),
		errors.Is(err, auth.ErrTokenReuse):
		writeUnauthorized(w, err.Error())

	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, project.ErrAccessDenied):
		writeForbidden(w, err.Error())

	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, auth.ErrCompanyNotFound),
		errors.Is(err, project.ErrProjectNotFound),
		errors.Is(err, project.ErrPermissionNotFound),
		errors.Is(err, document.ErrNotFound):
		writeNotFound(w, err.Error())

	case errors.Is(err, auth.ErrCompanyEmailExists),
		errors.Is(err, auth.ErrUserEmailExists),
		errors.Is(err, document.ErrVersionConflict):
		writeConflict(w, err.Error())

	case errors.Is(err, document.ErrQuotaExceeded):
		writeError(w, http.StatusConflict, ErrCodeQuotaExceeded, err.Error())

	default:
		s.logger.Error("unhandled error in HTTP handler",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, "internal server error")
	}
}
