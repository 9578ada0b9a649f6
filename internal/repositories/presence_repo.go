package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tracklight/agent-core/internal/models"
)

const (
	presenceKeyPrefix = "presence:agent:"
	// Presence expires shortly after the agent stops heartbeating (agents
	// heartbeat every 30 seconds).
	presenceTTL = 90 * time.Second
)

type RedisPresenceRepository struct {
	client *redis.Client
}

func NewRedisPresenceRepository(client *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client}
}

// Refresh sets or renews the presence record for a device. Every heartbeat
// calls this; the TTL turns a silent agent into "offline" automatically.
func (r *RedisPresenceRepository) Refresh(ctx context.Context, presence *models.AgentPresence) error {
	presence.LastSeen = time.Now()

	data, err := json.Marshal(presence)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	err = r.client.Set(ctx, presenceKey(presence.DeviceID), data, presenceTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}

	return nil
}

func (r *RedisPresenceRepository) Get(ctx context.Context, deviceID uuid.UUID) (*models.AgentPresence, error) {
	data, err := r.client.Get(ctx, presenceKey(deviceID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}

	var presence models.AgentPresence
	if err := json.Unmarshal([]byte(data), &presence); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence: %w", err)
	}

	return &presence, nil
}

func presenceKey(deviceID uuid.UUID) string {
	return presenceKeyPrefix + deviceID.String()
}
