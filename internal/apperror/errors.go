package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies a failure for the HTTP layer.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindValidation
	KindConflict
	KindRateLimited
)

var (
	ErrInvalidCredential = New(KindAuthentication, "Invalid login credentials!", nil)
	ErrNoToken           = New(KindAuthentication, "No token provided", nil)
	ErrInvalidToken      = New(KindAuthentication, "Invalid token", nil)
	ErrForbidden         = New(KindAuthorization, "You do not have permission to access this resource", nil)
	ErrDeviceMismatch    = New(KindAuthorization, "You can't log in different device", nil)
	ErrSessionSuperseded = New(KindAuthorization, "Session is no longer active", nil)
	ErrRateLimitExceeded = New(KindRateLimited, "Too many requests, please try again later", nil)
)

// AppError carries a kind, a client-facing message and an optional cause.
type AppError struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on kind and message so sentinel values survive wrapping.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func New(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func NotFound(message string) *AppError {
	return New(KindNotFound, message, nil)
}

func Conflict(message string) *AppError {
	return New(KindConflict, message, nil)
}

func Internal(err error) *AppError {
	return New(KindInternal, "Internal server error", err)
}

// Validation builds a field-keyed validation failure.
func Validation(fields map[string]string) *AppError {
	return &AppError{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
