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

type PostgresPairingCodeRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresPairingCodeRepository(pool *pgxpool.Pool) *PostgresPairingCodeRepository {
	return &PostgresPairingCodeRepository{pool: pool}
}

func (r *PostgresPairingCodeRepository) Create(ctx context.Context, code *models.PairingCode) error {
	query := `INSERT INTO pairing_codes (code, user_id, expires_at)
	          VALUES ($1, $2, $3)
	          RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		code.Code,
		code.UserID,
		code.ExpiresAt,
	).Scan(&code.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create pairing code: %w", err)
	}
	return nil
}

func (r *PostgresPairingCodeRepository) GetByCode(ctx context.Context, code string) (*models.PairingCode, error) {
	query := `SELECT code, user_id, expires_at, used_at, device_id, created_at
	          FROM pairing_codes
	          WHERE code = $1`

	var pc models.PairingCode
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&pc.Code,
		&pc.UserID,
		&pc.ExpiresAt,
		&pc.UsedAt,
		&pc.DeviceID,
		&pc.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pairing code: %w", err)
	}
	return &pc, nil
}

// Consume marks the code used. The WHERE clause makes redemption a single
// atomic check-and-write: the code must still be unused and unexpired, so
// two racing agents cannot both pair with it.
func (r *PostgresPairingCodeRepository) Consume(ctx context.Context, code string, deviceID uuid.UUID, now time.Time) error {
	query := `UPDATE pairing_codes
	          SET used_at = $1, device_id = $2
	          WHERE code = $3 AND used_at IS NULL AND expires_at > $1`

	result, err := r.pool.Exec(ctx, query, now, deviceID, code)
	if err != nil {
		return fmt.Errorf("failed to consume pairing code: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
