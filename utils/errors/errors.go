package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// APIError represents a custom error type for API responses
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

// Error returns the error message
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code, message string, status int, details ...string) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput = NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest)
	ErrNotFound     = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrInternal     = NewAPIError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrConflict     = NewAPIError("CONFLICT", "Resource conflict", http.StatusConflict)
	ErrUnavailable  = NewAPIError("UNAVAILABLE", "Dependency unavailable", http.StatusServiceUnavailable)
)

func Wrap(err error, code, message string, status int) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return NewAPIError(code, message, status, err.Error())
}

// Kind classifies a failure on the client side of the record service.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindHTTP
	KindDecode
	KindValidation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindHTTP:
		return "http"
	case KindDecode:
		return "decode"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// SyncError is returned by remote operations. Status is only set for KindHTTP.
type SyncError struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (e *SyncError) Error() string {
	switch {
	case e.Kind == KindHTTP:
		return fmt.Sprintf("%s: %s error: status %d", e.Op, e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
}

func (e *SyncError) Unwrap() error { return e.Err }

// Is matches another *SyncError by Kind, so sentinels like ErrTransport work with errors.Is.
func (e *SyncError) Is(target error) bool {
	t, ok := target.(*SyncError)
	if !ok {
		return false
	}
	return t.Op == "" && t.Kind == e.Kind
}

var (
	ErrTransport  = &SyncError{Kind: KindTransport}
	ErrHTTP       = &SyncError{Kind: KindHTTP}
	ErrDecode     = &SyncError{Kind: KindDecode}
	ErrValidation = &SyncError{Kind: KindValidation}
	ErrNoMatch    = &SyncError{Kind: KindNotFound}
)

func Transport(op string, err error) *SyncError {
	return &SyncError{Kind: KindTransport, Op: op, Err: err}
}

func HTTPStatus(op string, status int) *SyncError {
	return &SyncError{Kind: KindHTTP, Op: op, Status: status}
}

func Decode(op string, err error) *SyncError {
	return &SyncError{Kind: KindDecode, Op: op, Err: err}
}

func Validation(op string, err error) *SyncError {
	return &SyncError{Kind: KindValidation, Op: op, Err: err}
}

// KindOf reports the Kind of err, or 0 if err is not a *SyncError.
func KindOf(err error) Kind {
	var se *SyncError
	if stderrors.As(err, &se) {
		return se.Kind
	}
	return 0
}
