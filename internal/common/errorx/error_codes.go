package errorx

import (
	"fmt"
	"net/http"

	"github.com/devnovikov/algoroom/internal/protocol"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// APIError is a REST error carried through gin's error chain. It is rendered
// on the wire as protocol.APIError.
type APIError struct {
	Code       string
	Message    string
	Severity   Severity
	HTTPStatus int
	Details    map[string]any
	TraceID    string
	cause      error
}

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// Body returns the wire representation of the error.
func (e *APIError) Body() protocol.APIError {
	return protocol.APIError{
		Message: e.Message,
		Code:    e.Code,
		Status:  e.HTTPStatus,
	}
}

// WithDetail adds a log-only detail to a copy of the error
func (e *APIError) WithDetail(key string, value any) *APIError {
	cp := e.clone()
	cp.Details[key] = value
	return cp
}

// WithCause attaches the underlying error to a copy of the error
func (e *APIError) WithCause(err error) *APIError {
	cp := e.clone()
	cp.cause = err
	return cp
}

// WithMessage overrides the client-facing message on a copy of the error
func (e *APIError) WithMessage(format string, args ...any) *APIError {
	cp := e.clone()
	cp.Message = fmt.Sprintf(format, args...)
	return cp
}

func (e *APIError) clone() *APIError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	return &cp
}

var (
	ErrSessionNotFound = &APIError{
		Code:       protocol.CodeSessionNotFound,
		Message:    "Session not found",
		Severity:   SeverityInfo,
		HTTPStatus: http.StatusNotFound,
	}

	ErrInvalidRequest = &APIError{
		Code:       protocol.CodeInvalidRequest,
		Message:    "Invalid request",
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInternal = &APIError{
		Code:       protocol.CodeInternalError,
		Message:    "Internal server error",
		Severity:   SeverityCritical,
		HTTPStatus: http.StatusInternalServerError,
	}
)

// NotFound returns a not-found error naming the session
func NotFound(sessionID string, cause error) *APIError {
	return ErrSessionNotFound.
		WithMessage("Session %s not found", sessionID).
		WithDetail("session_id", sessionID).
		WithCause(cause)
}

// InvalidRequest returns a validation error with a client-facing reason
func InvalidRequest(reason string, cause error) *APIError {
	return ErrInvalidRequest.WithMessage("%s", reason).WithCause(cause)
}
