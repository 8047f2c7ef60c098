package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes an application error so transport layers can pick a
// status code without string-matching messages.
type ErrorCode string

const (
	// ErrCodeUnauthorized means the caller has no resolvable session.
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	// ErrCodeForbidden means the session is valid but lacks the privilege
	// or membership the resource requires.
	ErrCodeForbidden ErrorCode = "forbidden"
	// ErrCodeNotFound means the resource does not exist, or is hidden from
	// this tenant.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict means the request collides with existing data, such
	// as a unique constraint violation.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation means the input failed validation.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeForeignKey means a referenced row does not exist.
	ErrCodeForeignKey ErrorCode = "foreign_key"
	// ErrCodeInternal covers unexpected failures, including middleware
	// contract violations.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout means the operation ran out of time.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled means the caller abandoned the operation.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError is the error type the service layer returns. It carries a code,
// a message safe to show to clients, an optional offending field for
// validation failures, and an optional wrapped cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Field   string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error { return e.Cause }

func newError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Unauthorized builds an unauthorized error.
func Unauthorized(message string) *AppError { return newError(ErrCodeUnauthorized, message) }

// Forbidden builds a forbidden error.
func Forbidden(message string) *AppError { return newError(ErrCodeForbidden, message) }

// NotFound builds a not-found error.
func NotFound(message string) *AppError { return newError(ErrCodeNotFound, message) }

// NotFoundf builds a not-found error with a formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return newError(ErrCodeNotFound, fmt.Sprintf(format, args...))
}

// Conflict builds a conflict error.
func Conflict(message string) *AppError { return newError(ErrCodeConflict, message) }

// Validation builds a validation error.
func Validation(message string) *AppError { return newError(ErrCodeValidation, message) }

// Validationf builds a validation error with a formatted message.
func Validationf(format string, args ...any) *AppError {
	return newError(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// ValidationField builds a validation error attributed to a single field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Internal builds an internal error.
func Internal(message string) *AppError { return newError(ErrCodeInternal, message) }

// Wrap attaches a code and message to an existing error, keeping it
// reachable via Unwrap. Returns nil when err is nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// GetCode extracts the ErrorCode from err, or "" when no AppError is in the
// chain.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField extracts the offending field from a validation error, or "".
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// IsUnauthorized reports whether err carries ErrCodeUnauthorized.
func IsUnauthorized(err error) bool { return GetCode(err) == ErrCodeUnauthorized }

// IsForbidden reports whether err carries ErrCodeForbidden.
func IsForbidden(err error) bool { return GetCode(err) == ErrCodeForbidden }

// IsNotFound reports whether err carries ErrCodeNotFound.
func IsNotFound(err error) bool { return GetCode(err) == ErrCodeNotFound }

// IsConflict reports whether err carries ErrCodeConflict.
func IsConflict(err error) bool { return GetCode(err) == ErrCodeConflict }

// IsValidation reports whether err carries ErrCodeValidation.
func IsValidation(err error) bool { return GetCode(err) == ErrCodeValidation }

// IsInternal reports whether err carries ErrCodeInternal.
func IsInternal(err error) bool { return GetCode(err) == ErrCodeInternal }
