// Package realtime pushes holdings changes to the owner's open websocket
// connections, across instances when redis is available.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/tomasdev42/crypto-portfolio/internal/portfolio"
)

// EventPortfolioUpdated names the frame sent after a holdings mutation.
const EventPortfolioUpdated = "portfolioUpdated"

const sendBuffer = 16

// Frame is the JSON message written to websocket clients.
type Frame struct {
	Event string                    `json:"event"`
	Data  portfolio.HoldingsChanged `json:"data"`
}

// Encode renders the websocket frame for a holdings change.
func Encode(event portfolio.HoldingsChanged) ([]byte, error) {
	if event.Holdings == nil {
		event.Holdings = []portfolio.Holding{}
	}
	return json.Marshal(Frame{Event: EventPortfolioUpdated, Data: event})
}

type client struct {
	send chan []byte
}

// Hub tracks the websocket clients of this instance by user id.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	logger  *slog.Logger
}

// NewHub builds an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{clients: make(map[string]map[*client]struct{}), logger: logger}
}

// PublishHoldingsChanged delivers the event to the user's local connections.
func (h *Hub) PublishHoldingsChanged(_ context.Context, event portfolio.HoldingsChanged) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	h.Deliver(event.UserID, payload)
	return nil
}

// Deliver queues payload on every connection of userID. A connection whose
// buffer is full misses the frame.
func (h *Hub) Deliver(userID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("dropping realtime frame for slow client", slog.String("user_id", userID))
		}
	}
}

// Connections reports how many connections userID has open.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// subscribe registers a client for userID. The returned func unregisters it
// and closes its channel.
func (h *Hub) subscribe(userID string) (*client, func()) {
	c := &client{send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return c, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients[userID], c)
			if len(h.clients[userID]) == 0 {
				delete(h.clients, userID)
			}
			h.mu.Unlock()
			close(c.send)
		})
	}
}
