package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

var (
	// ErrScheduling is a job queue enqueue/remove failure. Terminal for the post.
	ErrScheduling = errors.New("scheduling error")
	// ErrDispatch is a failed call to the publish API.
	ErrDispatch = errors.New("dispatch error")
	// ErrAuthorization means the user's network credentials are missing or invalid.
	ErrAuthorization = errors.New("authorization error")
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	// ErrReconciliation means the network accepted a post but local bookkeeping
	// failed. It must not be retried automatically.
	ErrReconciliation = errors.New("manual reconciliation required")
)

func Wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func Scheduling(format string, args ...any) error    { return Wrap(ErrScheduling, format, args...) }
func Dispatch(format string, args ...any) error      { return Wrap(ErrDispatch, format, args...) }
func Authorization(format string, args ...any) error { return Wrap(ErrAuthorization, format, args...) }
func NotFound(format string, args ...any) error      { return Wrap(ErrNotFound, format, args...) }
func Validation(format string, args ...any) error    { return Wrap(ErrValidation, format, args...) }

// HTTPStatus maps an error onto the status code the API returns for it.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrAuthorization):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrReconciliation):
		return fiber.StatusConflict
	case errors.Is(err, ErrDispatch):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
