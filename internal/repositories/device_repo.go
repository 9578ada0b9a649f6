package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tracklight/agent-core/internal/models"
)

type PostgresDeviceRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresDeviceRepository(pool *pgxpool.Pool) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{pool: pool}
}

func (r *PostgresDeviceRepository) Create(ctx context.Context, device *models.Device) error {
	query := `INSERT INTO devices (id, user_id, name, os, client_version, secret_hash)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		device.ID,
		device.UserID,
		device.Name,
		device.OS,
		device.ClientVersion,
		device.SecretHash,
	).Scan(&device.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

func (r *PostgresDeviceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	query := `SELECT id, user_id, name, os, client_version, secret_hash,
	                 last_seen_at, revoked_at, created_at, updated_at
	          FROM devices
	          WHERE id = $1`

	var device models.Device
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&device.ID,
		&device.UserID,
		&device.Name,
		&device.OS,
		&device.ClientVersion,
		&device.SecretHash,
		&device.LastSeenAt,
		&device.RevokedAt,
		&device.CreatedAt,
		&device.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &device, nil
}

func (r *PostgresDeviceRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Device, error) {
	query := `SELECT id, user_id, name, os, client_version, secret_hash,
	                 last_seen_at, revoked_at, created_at, updated_at
	          FROM devices
	          WHERE user_id = $1
	          ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		var device models.Device
		err := rows.Scan(
			&device.ID,
			&device.UserID,
			&device.Name,
			&device.OS,
			&device.ClientVersion,
			&device.SecretHash,
			&device.LastSeenAt,
			&device.RevokedAt,
			&device.CreatedAt,
			&device.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, &device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}

	return devices, nil
}

func (r *PostgresDeviceRepository) TouchLastSeen(ctx context.Context, id uuid.UUID, seenAt time.Time) error {
	query := `UPDATE devices
	          SET last_seen_at = $1, updated_at = NOW()
	          WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, seenAt, id)
	if err != nil {
		return fmt.Errorf("failed to touch device: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Revoke is idempotent: revoking an already-revoked device affects no row
// and still succeeds. Only a missing or foreign device is an error.
func (r *PostgresDeviceRepository) Revoke(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	query := `UPDATE devices
	          SET revoked_at = $1, updated_at = NOW()
	          WHERE id = $2 AND user_id = $3 AND revoked_at IS NULL`

	result, err := r.pool.Exec(ctx, query, time.Now(), id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to revoke device: %w", err)
	}

	if result.RowsAffected() == 0 {
		device, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if device.UserID != ownerID {
			return ErrNotFound
		}
		// Already revoked: no-op success.
	}
	return nil
}
