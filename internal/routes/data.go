package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tomasdev42/crypto-portfolio/internal/market"
)

// RegisterDataRoutes wires the authenticated market data proxy.
func RegisterDataRoutes(r fiber.Router, h *market.Handler, bearer fiber.Handler) {
	group := r.Group("/data", bearer)
	group.Get("/portfolio-coin-data", h.PortfolioCoinData)
	group.Get("/all-coins", h.AllCoins)
	group.Get("/all-coins-with-market-data", h.MarketsPage)
	group.Get("/all-coins-with-market-data-recursive", h.AllMarkets)
	group.Get("/total-market-cap", h.TotalMarketCap)
	group.Get("/search", h.Search)
}
