package models

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// Error kinds surfaced to API clients as errorKind.
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUpstream     = "UPSTREAM_ERROR"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorResponse is the JSON body written for every failed request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorKind string `json:"errorKind"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
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

// Status maps the error kind to an HTTP status code.
func (e *AppError) Status() int {
	switch e.Code {
	case ErrCodeValidation:
		return fiber.StatusBadRequest
	case ErrCodeUnauthorized:
		return fiber.StatusUnauthorized
	case ErrCodeForbidden:
		return fiber.StatusForbidden
	case ErrCodeNotFound:
		return fiber.StatusNotFound
	case ErrCodeConflict:
		return fiber.StatusConflict
	case ErrCodeRateLimited:
		return fiber.StatusTooManyRequests
	case ErrCodeUpstream:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeForbidden,
		Message: message,
	}
}

func NewConflictError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeConflict,
		Message: message,
		Err:     err,
	}
}

func NewRateLimitedError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeRateLimited,
		Message: message,
	}
}

// NewUpstreamError wraps a failure of an external dependency such as the classifier.
func NewUpstreamError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeUpstream,
		Message: message,
		Err:     err,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// HasCode reports whether err wraps an AppError of the given kind.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// AsAppError returns the AppError in err's chain, or an internal error wrapping err.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(err)
}

// RespondWithError writes the standard error envelope. Internal details never
// leave the process; internal and upstream causes are logged with the request.
func RespondWithError(c *fiber.Ctx, err error) error {
	appErr := AsAppError(err)
	message := appErr.Message
	switch appErr.Code {
	case ErrCodeInternal:
		message = "Internal server error"
		slog.ErrorContext(c.UserContext(), "request failed with internal error",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("error", causeOf(appErr)))
	case ErrCodeUpstream:
		slog.WarnContext(c.UserContext(), "upstream dependency failed",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("error", causeOf(appErr)))
	}
	return c.Status(appErr.Status()).JSON(ErrorResponse{
		Success:   false,
		Message:   message,
		ErrorKind: appErr.Code,
	})
}

func causeOf(appErr *AppError) string {
	if appErr.Err != nil {
		return appErr.Err.Error()
	}
	return appErr.Message
}
