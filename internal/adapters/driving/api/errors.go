package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/logger"
)

// Error is a JSON error response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

// Error implements the error interface.
func (e Error) Error() string {
	return e.Message
}

// NewError creates an error response with the given status.
func NewError(code int, msg string) Error {
	return Error{Code: code, Message: msg}
}

// ErrBadRequest is returned for a body that is not valid JSON.
func ErrBadRequest() Error {
	return NewError(fiber.StatusBadRequest, "invalid JSON request")
}

// ValidationError lists request fields that failed validation.
type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return "validation failed"
}

// NewValidationError creates a 422 response for the failed fields.
func NewValidationError(errs map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errs,
	}
}

// ErrorHandler renders every handler error as JSON. Domain errors map to
// client or availability statuses; anything else is a 500 with a generic
// message, logged with its cause.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}
	var valErr ValidationError
	if errors.As(err, &valErr) {
		return c.Status(valErr.Status).JSON(valErr)
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}

	apiErr = fromDomain(err)
	if apiErr.Code >= fiber.StatusInternalServerError {
		logger.Error("%s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(apiErr.Code).JSON(apiErr)
}

func fromDomain(err error) Error {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery),
		errors.Is(err, domain.ErrNoUserMessage),
		errors.Is(err, domain.ErrInvalidInput):
		return NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrLLMUnavailable),
		errors.Is(err, domain.ErrStoreUnavailable):
		return NewError(fiber.StatusServiceUnavailable, fmt.Sprintf("service unavailable: %v", unwrapSentinel(err)))
	default:
		return NewError(fiber.StatusInternalServerError, "internal server error")
	}
}

// unwrapSentinel hides provider detail behind the matching sentinel.
func unwrapSentinel(err error) error {
	for _, sentinel := range []error{domain.ErrEmbeddingUnavailable, domain.ErrLLMUnavailable, domain.ErrStoreUnavailable} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return err
}
