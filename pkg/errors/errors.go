package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError independently of its transport status.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindConflict       Kind = "conflict"
	KindNotFound       Kind = "not_found"
	KindDependency     Kind = "dependency"
	KindInternal       Kind = "internal"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Kind       Kind   `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches AppErrors sharing the same code so wrapped copies still compare equal.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError carrying a different client message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	ErrUnauthorized = &AppError{
		Kind:       KindAuthentication,
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrInvalidCredentials = &AppError{
		Kind:       KindAuthentication,
		Code:       "INVALID_CREDENTIALS",
		Message:    "Invalid credentials",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Kind:       KindAuthorization,
		Code:       "FORBIDDEN",
		Message:    "Permission denied",
		StatusCode: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Kind:       KindNotFound,
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Kind:       KindValidation,
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrMissingFields = &AppError{
		Kind:       KindValidation,
		Code:       "MISSING_FIELDS",
		Message:    "All fields are required",
		StatusCode: http.StatusBadRequest,
	}

	ErrConflict = &AppError{
		Kind:       KindConflict,
		Code:       "CONFLICT",
		Message:    "Resource conflict",
		StatusCode: http.StatusConflict,
	}

	ErrDependency = &AppError{
		Kind:       KindDependency,
		Code:       "DEPENDENCY_FAILED",
		Message:    "A required service is unavailable",
		StatusCode: http.StatusServiceUnavailable,
	}

	ErrInternalServer = &AppError{
		Kind:       KindInternal,
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrRateLimit = &AppError{
		Kind:       KindValidation,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests, please slow down",
		StatusCode: http.StatusTooManyRequests,
	}
)

var kindStatus = map[Kind]int{
	KindValidation:     http.StatusBadRequest,
	KindAuthentication: http.StatusUnauthorized,
	KindAuthorization:  http.StatusForbidden,
	KindConflict:       http.StatusConflict,
	KindNotFound:       http.StatusNotFound,
	KindDependency:     http.StatusServiceUnavailable,
	KindInternal:       http.StatusInternalServerError,
}

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Kind:       kindForStatus(statusCode),
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewKind builds an application error whose HTTP status follows from its kind.
func NewKind(kind Kind, code, message string) *AppError {
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		StatusCode: status,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Kind:       KindInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// KindOf reports the kind of err, treating unknown errors as internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	appErr := FromError(err)
	if appErr.Kind == "" {
		return kindForStatus(appErr.StatusCode)
	}
	return appErr.Kind
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Kind:       KindValidation,
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthentication
	case status == http.StatusForbidden:
		return KindAuthorization
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusServiceUnavailable, status == http.StatusBadGateway:
		return KindDependency
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindInternal
	}
}
