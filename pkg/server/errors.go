package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"mercator-hq/mixpolicy/pkg/policy/mix"
)

// Error codes carried in error bodies.
const (
	codeMalformedInput   = "malformed_input"
	codeInvalidCriteria  = "invalid_criteria"
	codeCapacityExceeded = "capacity_exceeded"
	codeDuplicate        = "duplicate_registration"
	codeNotFound         = "not_found"
	codePermissionDenied = "permission_denied"
	codeUnauthorized     = "unauthorized"
	codeTooLarge         = "request_too_large"
	codeInternal         = "internal_error"
)

// errMissingToken reports a request without a usable owner token.
var errMissingToken = errors.New("owner token required")

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failure.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, codeTooLarge
	case errors.Is(err, errMissingToken):
		return http.StatusUnauthorized, codeUnauthorized
	case errors.Is(err, mix.ErrMalformedInput):
		return http.StatusBadRequest, codeMalformedInput
	case errors.Is(err, mix.ErrInvalidCriteria):
		return http.StatusUnprocessableEntity, codeInvalidCriteria
	case errors.Is(err, mix.ErrCapacityExceeded):
		return http.StatusInsufficientStorage, codeCapacityExceeded
	case errors.Is(err, mix.ErrDuplicateRegistration):
		return http.StatusConflict, codeDuplicate
	case errors.Is(err, mix.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, mix.ErrPermissionDenied):
		return http.StatusForbidden, codePermissionDenied
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// writeError writes err as a JSON error body. Internal errors are logged
// and their message is not exposed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "error", err)
		msg = "an internal error occurred"
	}
	writeErrorBody(w, status, code, msg)
}

func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
