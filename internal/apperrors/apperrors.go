package apperrors

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies an application error for HTTP mapping.
type Kind int

const (
	KindValidation Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindInvalidState
	KindProviderProtocol
	KindInternal
)

// Error is the application error type shared by services and handlers.
// Expected business-rule rejections (coupon invalid, already paid) are NOT
// modeled as errors; they come back as structured results.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func ProviderProtocol(msg string, cause error) *Error {
	return &Error{Kind: KindProviderProtocol, Message: msg, Err: cause}
}

func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: cause}
}

// HTTPStatus maps an error kind to its response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindInvalidState, KindProviderProtocol:
		return fiber.StatusBadRequest
	case KindUnauthorized:
		return fiber.StatusUnauthorized
	case KindForbidden:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// Respond writes err as a JSON error response. Unknown errors become a
// generic 500; their details are only included when exposeInternal is set
// (never in production).
func Respond(c *fiber.Ctx, err error, exposeInternal bool) error {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return c.Status(appErr.Kind.HTTPStatus()).JSON(fiber.Map{
			"message": appErr.Message,
		})
	}
	body := fiber.Map{"message": "internal server error"}
	if exposeInternal {
		body["error"] = err.Error()
	}
	return c.Status(fiber.StatusInternalServerError).JSON(body)
}
