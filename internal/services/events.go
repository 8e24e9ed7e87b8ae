package services

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"quizforge-backend/internal/models"
)

// AdminEventsChannel is the Redis channel the admin websocket hub listens on.
const AdminEventsChannel = "admin_events"

type EventPublisher interface {
	Publish(ctx context.Context, msg models.WSMessage)
}

type RedisEventPublisher struct {
	redis *redis.Client
}

func NewRedisEventPublisher(client *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{redis: client}
}

// Publish is fire-and-forget; a lost event only delays the admin UI refresh.
func (p *RedisEventPublisher) Publish(ctx context.Context, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("failed to encode admin event")
		return
	}
	if err := p.redis.Publish(ctx, AdminEventsChannel, data).Err(); err != nil {
		log.Warn().Err(err).Str("type", msg.Type).Msg("failed to publish admin event")
	}
}
