// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrInternal     = errors.New("internal error")
)

const (
	CodeValidation              = "VALIDATION_ERROR"
	CodeBadRequest              = "BAD_REQUEST"
	CodeEmailExists             = "EMAIL_EXISTS"
	CodeInvalidCredentials      = "INVALID_CREDENTIALS"
	CodeTokenRequired           = "TOKEN_REQUIRED"
	CodeTokenInvalid            = "TOKEN_INVALID"
	CodeAuthenticationRequired  = "AUTHENTICATION_REQUIRED"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeNotFound                = "NOT_FOUND"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeInternal                = "INTERNAL_ERROR"
)

// AppError is an expected failure that already knows how it is rendered at
// the HTTP boundary.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Code       string
	Details    any
}

func NewAppError(err error, message string, status int, code string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: status,
		Code:       code,
	}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func BadRequestError(message string) *AppError {
	return NewAppError(ErrInvalidInput, message, http.StatusBadRequest, CodeBadRequest)
}

func ValidationError(details []FieldError) *AppError {
	return NewAppError(
		ErrInvalidInput,
		"validation failed",
		http.StatusBadRequest,
		CodeValidation,
	).WithDetails(details)
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return NewAppError(
		ErrUnauthorized,
		message,
		http.StatusUnauthorized,
		CodeAuthenticationRequired,
	)
}

func InvalidCredentialsError() *AppError {
	return NewAppError(
		ErrUnauthorized,
		"Invalid email or password",
		http.StatusUnauthorized,
		CodeInvalidCredentials,
	)
}

func EmailExistsError() *AppError {
	return NewAppError(
		ErrDuplicateKey,
		"User with this email already exists",
		http.StatusBadRequest,
		CodeEmailExists,
	)
}

func TokenRequiredError() *AppError {
	return NewAppError(
		ErrUnauthorized,
		"Access token required",
		http.StatusUnauthorized,
		CodeTokenRequired,
	)
}

func TokenInvalidError() *AppError {
	return NewAppError(
		ErrTokenInvalid,
		"Invalid or expired token",
		http.StatusForbidden,
		CodeTokenInvalid,
	)
}

func ForbiddenError(message string) *AppError {
	if message == "" {
		message = "Insufficient permissions"
	}
	return NewAppError(
		ErrForbidden,
		message,
		http.StatusForbidden,
		CodeInsufficientPermissions,
	)
}

func NotFoundError(resource string) *AppError {
	code := CodeNotFound
	if resource == "user" {
		code = CodeUserNotFound
	}
	return NewAppError(
		ErrNotFound,
		resource+" not found",
		http.StatusNotFound,
		code,
	)
}

func InternalError() *AppError {
	return NewAppError(
		ErrInternal,
		"Internal server error",
		http.StatusInternalServerError,
		CodeInternal,
	)
}
