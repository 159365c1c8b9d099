package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"menu-planner/internal/usecase"
)

type errorResponse struct {
	Error   string           `json:"error"`
	Message string           `json:"message"`
	Details []usecase.Detail `json:"details,omitempty"`
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorUnauthorized:
		return http.StatusUnauthorized
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorConflict:
		return http.StatusConflict
	case usecase.ErrorValidationFailed:
		return http.StatusUnprocessableEntity
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorCode returns the use-case code carried by err, INTERNAL_ERROR otherwise.
func errorCode(err error) string {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		return string(ucErr.Code)
	}
	return string(usecase.ErrorInternal)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		slog.ErrorContext(r.Context(), "unhandled error", "err", err, "path", r.URL.Path)
		writeErrorCode(w, http.StatusInternalServerError, usecase.ErrorInternal, "internal_error", nil)
		return
	}

	status := statusFor(ucErr.Code)
	switch {
	case status >= http.StatusInternalServerError:
		slog.ErrorContext(r.Context(), "request failed", "code", ucErr.Code, "reason", ucErr.Reason, "err", ucErr.Err)
	case ucErr.Code == usecase.ErrorUpstream || ucErr.Code == usecase.ErrorRateLimited || ucErr.Code == usecase.ErrorValidationFailed:
		slog.WarnContext(r.Context(), "upstream request failed", "code", ucErr.Code, "reason", ucErr.Reason, "err", ucErr.Err)
	}

	var details []usecase.Detail
	if ucErr.Code == usecase.ErrorValidationFailed {
		details = ucErr.Details
	}
	writeErrorCode(w, status, ucErr.Code, ucErr.Reason, details)
}

func writeErrorCode(w http.ResponseWriter, status int, code usecase.ErrorCode, reason string, details []usecase.Detail) {
	writeJSON(w, status, errorResponse{Error: string(code), Message: reason, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "err", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"INTERNAL_ERROR","message":"encode_error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
