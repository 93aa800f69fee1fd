package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tomasdev42/crypto-portfolio/internal/portfolio"
)

// DefaultChannel is the redis channel carrying holdings changes.
const DefaultChannel = "portfolio:updates"

// RedisBroker publishes holdings changes on a redis channel and forwards
// every message seen on that channel to the local hub, so each instance
// reaches its own connections.
type RedisBroker struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *slog.Logger
}

// NewRedisBroker builds a broker on channel.
func NewRedisBroker(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisBroker {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroker{client: client, channel: channel, hub: hub, logger: logger}
}

// PublishHoldingsChanged sends the event to every instance.
func (b *RedisBroker) PublishHoldingsChanged(ctx context.Context, event portfolio.HoldingsChanged) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Run forwards channel messages to the hub until ctx is cancelled.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return err
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var frame struct {
				Data struct {
					UserID string `json:"userId"`
				} `json:"data"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil || frame.Data.UserID == "" {
				b.logger.Warn("discarding malformed realtime message", slog.Any("error", err))
				continue
			}
			b.hub.Deliver(frame.Data.UserID, []byte(msg.Payload))
		}
	}
}
