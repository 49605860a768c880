// Package apperror defines the domain errors shared by the service and
// repository layers. HTTP handlers translate them into status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
)

// Messages for the two authentication failures. They are deliberately
// generic: the caller must not learn whether the account exists, whether
// the password was wrong, or why a token was rejected.
const (
	MsgInvalidCredentials = "invalid email or password"
	MsgInvalidToken       = "valid authentication required"
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Code    string // Optional: machine-readable reason, overrides the default for Err
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// EmailExists is returned by registration when the email is already taken,
// whether that was caught by the pre-insert check or by the unique index.
func EmailExists() *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: "Email already exists",
		Field:   "email",
		Code:    "email_exists",
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// InvalidCredentials is the single rejection for every failed login.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: MsgInvalidCredentials,
		Code:    "invalid_credentials",
	}
}

// Unauthorized is the single rejection for a missing or unusable token.
func Unauthorized() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: MsgInvalidToken,
	}
}

// TooManyAttempts is returned while an email is locked out after repeated
// failed logins. It is raised before the user lookup, so it says nothing
// about whether the account exists.
func TooManyAttempts() *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Message: "too many failed login attempts, try again later",
		Code:    "too_many_attempts",
	}
}
