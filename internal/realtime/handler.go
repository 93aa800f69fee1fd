package realtime

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/tomasdev42/crypto-portfolio/internal/auth"
)

const userIDLocal = "ws_user_id"

// Upgrade authenticates the ?token= access token and only lets websocket
// upgrade requests through.
func Upgrade(tokens *auth.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.NewError(http.StatusUpgradeRequired, "Websocket upgrade required")
		}
		claims, err := tokens.Verify(c.Query("token"), auth.KindAccess)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "Invalid or expired token")
		}
		c.Locals(userIDLocal, claims.UserID)
		return c.Next()
	}
}

// Handler serves an authenticated websocket connection. Frames for the user
// are written as they arrive; inbound messages are read and discarded until
// the client disconnects.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(userIDLocal).(string)
		c, unsubscribe := h.subscribe(userID)
		defer unsubscribe()
		h.logger.Debug("realtime client connected", slog.String("user_id", userID))

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				h.logger.Debug("realtime client disconnected", slog.String("user_id", userID))
				return
			case payload, ok := <-c.send:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					h.logger.Debug("realtime write failed", slog.String("user_id", userID), slog.Any("error", err))
					return
				}
			}
		}
	})
}
