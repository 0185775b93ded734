package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"schoolhub/internal/apperr"
	"schoolhub/internal/constants"
)

const (
	ErrCodeInvalidRequest     = constants.ErrCodeInvalidRequest
	ErrCodeInvalidCredentials = constants.ErrCodeInvalidCredentials
	ErrCodeUnauthenticated    = constants.ErrCodeUnauthenticated
	ErrCodeNotFound           = constants.ErrCodeNotFound
	ErrCodeInternal           = constants.ErrCodeInternal
	ErrCodeRateLimited        = constants.ErrCodeRateLimited
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, message)
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthenticated, message)
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, "An internal error occurred")
}

// writeAppError maps a manager error to its HTTP status. Errors without a
// kind are logged and reported as internal errors.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "component", "api", "method", r.Method, "path", r.URL.Path, "error", err)
		internalError(w)
		return
	}
	writeError(w, status, string(kind), apperr.MessageOf(err))
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindDuplicateUsername:
		return http.StatusConflict
	case apperr.KindInvalidCredentials, apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
