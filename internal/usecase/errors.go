package usecase

import (
	"errors"
	"fmt"
	"net/http"

	"menu-planner/internal/integrations/upstream"
)

type ErrorCode string

const (
	ErrorInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrorUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrorNotFound         ErrorCode = "NOT_FOUND"
	ErrorConflict         ErrorCode = "CONFLICT"
	ErrorValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrorRateLimited      ErrorCode = "RATE_LIMITED"
	ErrorUpstream         ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal         ErrorCode = "INTERNAL_ERROR"
)

// Detail is one structured validation failure reported by an upstream engine.
type Detail struct {
	Location string `json:"location"`
	Message  string `json:"message"`
	Kind     string `json:"kind"`
}

type Error struct {
	Code    ErrorCode
	Reason  string
	Details []Detail
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// upstreamError classifies a recommender or discussion engine failure.
func upstreamError(reason string, err error) *Error {
	var valErr *upstream.ValidationError
	if errors.As(err, &valErr) {
		details := make([]Detail, 0, len(valErr.Details))
		for _, d := range valErr.Details {
			details = append(details, Detail{Location: d.Location, Message: d.Message, Kind: d.Kind})
		}
		return &Error{Code: ErrorValidationFailed, Reason: reason, Details: details, Err: err}
	}
	if status, ok := upstream.StatusCode(err); ok && status == http.StatusTooManyRequests {
		return newError(ErrorRateLimited, reason, err)
	}
	return newError(ErrorUpstream, reason, err)
}
