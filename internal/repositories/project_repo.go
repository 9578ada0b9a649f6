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

type PostgresProjectRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresProjectRepository(pool *pgxpool.Pool) *PostgresProjectRepository {
	return &PostgresProjectRepository{pool: pool}
}

func (r *PostgresProjectRepository) Create(ctx context.Context, project *models.Project) error {
	query := `INSERT INTO projects (id, user_id, name, status, due_date, review_ms)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		project.ID,
		project.UserID,
		project.Name,
		project.Status,
		project.DueDate,
		project.ReviewMs,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (r *PostgresProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `SELECT id, user_id, name, status, due_date, review_started_at, review_ms
	          FROM projects
	          WHERE id = $1`

	var p models.Project
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.Status,
		&p.DueDate,
		&p.ReviewStartedAt,
		&p.ReviewMs,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

func (r *PostgresProjectRepository) UpdateReview(ctx context.Context, project *models.Project) error {
	query := `UPDATE projects
	          SET status = $1, due_date = $2, review_started_at = $3, review_ms = $4
	          WHERE id = $5`

	result, err := r.pool.Exec(ctx, query,
		project.Status,
		project.DueDate,
		project.ReviewStartedAt,
		project.ReviewMs,
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project review state: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
