package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	dedupKeyPrefix = "dedup:batch:"
	// Batch markers outlive any plausible agent retry horizon. The unique
	// key on activity_batches in Postgres is the backstop if Redis is
	// flushed.
	dedupTTL = 30 * 24 * time.Hour
)

type RedisBatchDedupRepository struct {
	client *redis.Client
}

func NewRedisBatchDedupRepository(client *redis.Client) *RedisBatchDedupRepository {
	return &RedisBatchDedupRepository{client: client}
}

func (r *RedisBatchDedupRepository) Seen(ctx context.Context, batchID uuid.UUID) (bool, error) {
	n, err := r.client.Exists(ctx, dedupKey(batchID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check batch dedup key: %w", err)
	}
	return n > 0, nil
}

// Mark records the batch id with SetNX semantics: insert-if-absent is the
// only write this key ever sees.
func (r *RedisBatchDedupRepository) Mark(ctx context.Context, batchID uuid.UUID, deviceID uuid.UUID) error {
	err := r.client.SetNX(ctx, dedupKey(batchID), deviceID.String(), dedupTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to mark batch processed: %w", err)
	}
	return nil
}

func dedupKey(batchID uuid.UUID) string {
	return dedupKeyPrefix + batchID.String()
}
