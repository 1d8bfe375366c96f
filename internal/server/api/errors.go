package api

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// statusFor maps a service outcome to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	var verr validator.ValidationErrors
	var ferr *fiber.Error

	switch {
	case errors.Is(err, common.ErrDuplicateEmail):
		return fiber.StatusConflict, common.ErrDuplicateEmail.Error()
	case errors.Is(err, common.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, common.ErrInvalidCredentials.Error()
	case errors.Is(err, common.ErrWrongOldPassword):
		return fiber.StatusBadRequest, common.ErrWrongOldPassword.Error()
	case errors.Is(err, common.ErrorNotFound):
		return fiber.StatusNotFound, "not found"
	case errors.Is(err, common.ErrNoIdentity):
		return fiber.StatusUnauthorized, "authentication required"
	case errors.Is(err, common.ErrForbidden):
		return fiber.StatusForbidden, common.ErrForbidden.Error()
	case errors.Is(err, common.ErrUploadFailed):
		return fiber.StatusBadGateway, common.ErrUploadFailed.Error()
	case errors.Is(err, common.ErrInvalidRole):
		return fiber.StatusBadRequest, common.ErrInvalidRole.Error()
	case errors.Is(err, common.ErrorValidation), errors.As(err, &verr):
		return fiber.StatusBadRequest, "invalid input"
	case errors.As(err, &ferr):
		return ferr.Code, ferr.Message
	default:
		return fiber.StatusInternalServerError, "internal error"
	}
}

// ErrorHandler is the fiber error handler for the API. Unexpected errors are
// logged; clients only see generic messages for them.
func (h *Handler) ErrorHandler(c *fiber.Ctx, err error) error {
	status, msg := statusFor(err)

	resp := errorResponse{Error: msg}
	if status == fiber.StatusBadRequest && !errors.Is(err, common.ErrWrongOldPassword) {
		resp.Details = err.Error()
	}
	if status >= fiber.StatusInternalServerError {
		h.log.Error(c.UserContext(), "request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(resp)
}
