package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tracklight/agent-core/internal/models"
)

const uniqueViolation = "23505"

type PostgresTimeEntryRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresTimeEntryRepository(pool *pgxpool.Pool) *PostgresTimeEntryRepository {
	return &PostgresTimeEntryRepository{pool: pool}
}

const entryColumns = `id, user_id, project_id, description, status, started_at, ended_at,
	duration_seconds, idle_seconds, last_activity_at, review_started_at, review_ms,
	created_at, updated_at`

func scanEntry(row pgx.Row) (*models.TimeEntry, error) {
	var e models.TimeEntry
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.ProjectID,
		&e.Description,
		&e.Status,
		&e.StartedAt,
		&e.EndedAt,
		&e.DurationSeconds,
		&e.IdleSeconds,
		&e.LastActivityAt,
		&e.ReviewStartedAt,
		&e.ReviewMs,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan time entry: %w", err)
	}
	return &e, nil
}

func (r *PostgresTimeEntryRepository) Create(ctx context.Context, entry *models.TimeEntry) error {
	query := `INSERT INTO time_entries
	          (id, user_id, project_id, description, status, started_at,
	           duration_seconds, idle_seconds, last_activity_at, review_ms)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.UserID,
		entry.ProjectID,
		entry.Description,
		entry.Status,
		entry.StartedAt,
		entry.DurationSeconds,
		entry.IdleSeconds,
		entry.LastActivityAt,
		entry.ReviewMs,
	).Scan(&entry.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrActiveEntryExists
	}
	if err != nil {
		return fmt.Errorf("failed to create time entry: %w", err)
	}
	return nil
}

func (r *PostgresTimeEntryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE id = $1`
	return scanEntry(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresTimeEntryRepository) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries
	          WHERE user_id = $1 AND status <> 'stopped'`
	return scanEntry(r.pool.QueryRow(ctx, query, userID))
}

func (r *PostgresTimeEntryRepository) GetRunningByUser(ctx context.Context, userID uuid.UUID) (*models.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries
	          WHERE user_id = $1 AND status = 'running'`
	return scanEntry(r.pool.QueryRow(ctx, query, userID))
}

func (r *PostgresTimeEntryRepository) GetNonStoppedByProject(ctx context.Context, projectID uuid.UUID) ([]*models.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries
	          WHERE project_id = $1 AND status <> 'stopped'`

	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query time entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.TimeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating time entries: %w", err)
	}

	return entries, nil
}

// UpdateTransition writes the full accounting state of the entry, but only
// if its stored status still matches what the caller read. Zero rows means
// a concurrent writer transitioned the entry first.
func (r *PostgresTimeEntryRepository) UpdateTransition(ctx context.Context, entry *models.TimeEntry, expectedStatus models.EntryStatus) error {
	query := `UPDATE time_entries
	          SET status = $1,
	              ended_at = $2,
	              duration_seconds = $3,
	              idle_seconds = $4,
	              last_activity_at = $5,
	              review_started_at = $6,
	              review_ms = $7,
	              updated_at = NOW()
	          WHERE id = $8 AND status = $9
	          RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		entry.Status,
		entry.EndedAt,
		entry.DurationSeconds,
		entry.IdleSeconds,
		entry.LastActivityAt,
		entry.ReviewStartedAt,
		entry.ReviewMs,
		entry.ID,
		expectedStatus,
	).Scan(&entry.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStatusConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update time entry: %w", err)
	}
	return nil
}
