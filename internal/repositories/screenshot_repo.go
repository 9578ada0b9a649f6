package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tracklight/agent-core/internal/models"
)

type PostgresScreenshotRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresScreenshotRepository(pool *pgxpool.Pool) *PostgresScreenshotRepository {
	return &PostgresScreenshotRepository{pool: pool}
}

func (r *PostgresScreenshotRepository) Create(ctx context.Context, screenshot *models.Screenshot) error {
	query := `INSERT INTO screenshots (id, time_entry_id, user_id, project_id, storage_key, captured_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		screenshot.ID,
		screenshot.TimeEntryID,
		screenshot.UserID,
		screenshot.ProjectID,
		screenshot.StorageKey,
		screenshot.CapturedAt,
	).Scan(&screenshot.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create screenshot: %w", err)
	}
	return nil
}

func (r *PostgresScreenshotRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Screenshot, error) {
	query := `SELECT id, time_entry_id, user_id, project_id, storage_key, captured_at, created_at, updated_at
	          FROM screenshots
	          WHERE id = $1`

	var s models.Screenshot
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.TimeEntryID,
		&s.UserID,
		&s.ProjectID,
		&s.StorageKey,
		&s.CapturedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get screenshot: %w", err)
	}
	return &s, nil
}

func (r *PostgresScreenshotRepository) PromoteStorageKey(ctx context.Context, id uuid.UUID, key string) error {
	query := `UPDATE screenshots
	          SET storage_key = $1, updated_at = NOW()
	          WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, key, id)
	if err != nil {
		return fmt.Errorf("failed to promote storage key: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
