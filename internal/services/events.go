package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"salescoach-backend/internal/models"
)

// EventPublisher pushes session events to Redis pub/sub; the websocket hub
// fans them out to the user's live connections. Publishing is best-effort: a
// missed event never fails the request that produced it.
type EventPublisher struct {
	redis *redis.Client
}

func NewEventPublisher(redisClient *redis.Client) *EventPublisher {
	return &EventPublisher{redis: redisClient}
}

func (p *EventPublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	if p == nil || p.redis == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to marshal ws message: %v", err)
		return
	}
	channel := "user_updates:" + userID.String()
	if err := p.redis.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("failed to publish to %s: %v", channel, err)
	}
}
