package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tomasdev42/crypto-portfolio/internal/auth"
)

// RegisterAuthRoutes wires the /auth endpoints. rateLimiter guards login.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/register", h.Register)
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
	} else {
		group.Post("/login", h.Login)
	}
	group.Get("/logout", h.Logout)
	group.Post("/request-password-reset", h.RequestPasswordReset)
	group.Post("/reset-password", h.ResetPassword)
	group.Post("/refresh-token", h.RefreshToken)
	group.Get("/check-auth", h.CheckAuth)
}
