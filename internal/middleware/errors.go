package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tomasdev42/crypto-portfolio/internal/apperr"
)

// ErrorHandler renders every failed request as {"success": false, "msg": ...}.
// Server side failures are logged and reported with a generic message.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := apperr.Status(err)
		msg := apperr.Message(err)

		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			msg = fe.Message
		}

		if status >= http.StatusInternalServerError {
			requestID := RequestIDFrom(c)
			logger.Error("request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("request_id", requestID),
				slog.Any("error", err),
			)
			var ae *apperr.Error
			if fe == nil && !errors.As(err, &ae) {
				msg = "Internal server error"
			}
		}

		return c.Status(status).JSON(fiber.Map{"success": false, "msg": msg})
	}
}
