package http

import (
	"github.com/gofiber/fiber/v2"

	"triage_server/pkg/apperr"
	"triage_server/pkg/response"
)

// AppErrorResponse renders an error through the standard envelope,
// mapping apperr codes and statuses.
func AppErrorResponse(c *fiber.Ctx, err error) error {
	appErr := apperr.AsAppError(err)
	return response.Error(c, appErr.Status, appErr.Code, appErr.Message)
}
