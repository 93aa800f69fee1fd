package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tomasdev42/crypto-portfolio/internal/profile"
)

// RegisterUploadRoutes wires the authenticated profile picture endpoints.
func RegisterUploadRoutes(r fiber.Router, h *profile.Handler, bearer fiber.Handler) {
	group := r.Group("/upload", bearer)
	group.Post("/profile-picture", h.UploadProfilePicture)
	group.Get("/profile-picture-url", h.ProfilePictureURL)
}
