package response

import (
	"errors"

	"village-registry/internal/core/domain"

	"github.com/gofiber/fiber/v2"
)

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends a success response
func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Created sends a 201 created response
func Created(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends an error response
func Error(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(Response{
		Success: false,
		Error:   message,
	})
}

// BadRequest sends a 400 bad request response
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

// Unauthorized sends a 401 unauthorized response
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, message)
}

// Forbidden sends a 403 forbidden response
func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusForbidden, message)
}

// NotFound sends a 404 not found response
func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, message)
}

// Conflict sends a 409 conflict response
func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, message)
}

// InternalServerError sends a 500 internal server error response
func InternalServerError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, message)
}

// ServiceUnavailable sends a 503 service unavailable response
func ServiceUnavailable(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusServiceUnavailable, message)
}

// FromError maps a domain error onto its HTTP status. Unknown errors become a
// generic 500 so internal details never leak to the caller.
func FromError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUserInactive):
		return Unauthorized(c, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return Forbidden(c, domain.ErrUnauthorized.Error())
	case errors.Is(err, domain.ErrNotFound):
		return NotFound(c, domain.ErrNotFound.Error())
	case errors.Is(err, domain.ErrDuplicateEntry), errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrSystemRole):
		return Conflict(c, err.Error())
	case errors.Is(err, domain.ErrRender):
		return Error(c, fiber.StatusUnprocessableEntity, domain.ErrRender.Error())
	case errors.Is(err, domain.ErrTransientStore):
		return ServiceUnavailable(c, domain.ErrTransientStore.Error())
	default:
		return InternalServerError(c, "Internal server error")
	}
}
