package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tomasdev42/crypto-portfolio/internal/portfolio"
)

// RegisterPortfolioRoutes wires the authenticated /portfolio endpoints.
func RegisterPortfolioRoutes(r fiber.Router, h *portfolio.Handler, bearer, idempotent fiber.Handler) {
	group := r.Group("/portfolio", bearer)
	group.Get("/all-coins", h.AllCoins)
	group.Get("/portfolio-values", h.PortfolioValues)
	group.Get("/total-value", h.TotalValue)
	group.Post("/add", idempotent, h.Add)
	group.Delete("/delete", idempotent, h.Delete)
	group.Patch("/edit", idempotent, h.Edit)
}
