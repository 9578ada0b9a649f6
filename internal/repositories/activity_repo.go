package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tracklight/agent-core/internal/models"
)

type PostgresActivityRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresActivityRepository(pool *pgxpool.Pool) *PostgresActivityRepository {
	return &PostgresActivityRepository{pool: pool}
}

// InsertBatch writes the batch audit row and every event in one transaction,
// so a batch is applied fully or not at all. The primary key on batch_id is
// the durable replay guard: a second insert of the same batch rolls back as
// ErrDuplicateBatch without touching the events table.
func (r *PostgresActivityRepository) InsertBatch(ctx context.Context, batch *models.ActivityBatch, events []*models.ActivityEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batchQuery := `INSERT INTO activity_batches (batch_id, device_id, event_count, received_at)
	               VALUES ($1, $2, $3, $4)`

	_, err = tx.Exec(ctx, batchQuery,
		batch.BatchID,
		batch.DeviceID,
		batch.EventCount,
		batch.ReceivedAt,
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateBatch
	}
	if err != nil {
		return fmt.Errorf("failed to record batch: %w", err)
	}

	eventQuery := `INSERT INTO activity_events
	               (id, batch_id, device_id, user_id, time_entry_id, event_type, occurred_at, payload)
	               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	queued := &pgx.Batch{}
	for _, event := range events {
		queued.Queue(eventQuery,
			event.ID,
			event.BatchID,
			event.DeviceID,
			event.UserID,
			event.TimeEntryID,
			event.EventType,
			event.OccurredAt,
			event.Payload,
		)
	}

	results := tx.SendBatch(ctx, queued)
	for range events {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert activity event: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to flush event batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}
