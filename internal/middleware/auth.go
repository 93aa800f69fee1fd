package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tomasdev42/crypto-portfolio/internal/auth"
)

const userIDKey = "user_id"

// BearerAuth verifies the access token in the Authorization header and stores
// the caller's user id in the request locals. Verification is stateless.
func BearerAuth(tokens *auth.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return fiber.NewError(http.StatusUnauthorized, "Access token is required")
		}
		claims, err := tokens.Verify(token, auth.KindAccess)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "Invalid or expired token")
		}
		c.Locals(userIDKey, claims.UserID)
		return c.Next()
	}
}

// UserID returns the id stored by BearerAuth, or "" outside an
// authenticated route.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}
