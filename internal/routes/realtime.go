package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/tomasdev42/crypto-portfolio/internal/auth"
	"github.com/tomasdev42/crypto-portfolio/internal/metrics"
	"github.com/tomasdev42/crypto-portfolio/internal/realtime"
)

const metricsPath = "/metrics"

// RegisterRealtimeRoutes mounts the portfolio update websocket.
func RegisterRealtimeRoutes(app *fiber.App, hub *realtime.Hub, tokens *auth.TokenService) {
	app.Get("/ws", realtime.Upgrade(tokens), hub.Handler())
}

// RegisterMetricsRoute exposes the prometheus registry.
func RegisterMetricsRoute(app *fiber.App, m *metrics.Collectors) {
	app.Get(metricsPath, adaptor.HTTPHandler(m.Handler()))
}
