package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tracklight/agent-core/internal/models"
)

type DeviceRepository interface {
	Create(ctx context.Context, device *models.Device) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Device, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Device, error)
	TouchLastSeen(ctx context.Context, id uuid.UUID, seenAt time.Time) error
	Revoke(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error
}

type PairingCodeRepository interface {
	Create(ctx context.Context, code *models.PairingCode) error
	GetByCode(ctx context.Context, code string) (*models.PairingCode, error)
	// Consume marks the code used and records the redeeming device. The
	// update is conditional on the code being unused and unexpired, so of two
	// racing redemptions exactly one succeeds; the loser gets ErrNotFound.
	Consume(ctx context.Context, code string, deviceID uuid.UUID, now time.Time) error
}

type TimeEntryRepository interface {
	// Create inserts a new entry. The partial unique index on
	// (user_id) WHERE status <> 'stopped' surfaces a concurrent non-stopped
	// entry as ErrActiveEntryExists.
	Create(ctx context.Context, entry *models.TimeEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.TimeEntry, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.TimeEntry, error)
	GetRunningByUser(ctx context.Context, userID uuid.UUID) (*models.TimeEntry, error)
	GetNonStoppedByProject(ctx context.Context, projectID uuid.UUID) ([]*models.TimeEntry, error)
	// UpdateTransition persists the entry conditional on its stored status
	// still being expectedStatus. ErrStatusConflict when another writer got
	// there first.
	UpdateTransition(ctx context.Context, entry *models.TimeEntry, expectedStatus models.EntryStatus) error
}

type ActivityRepository interface {
	// InsertBatch persists the batch audit row and all its events in one
	// transaction. A replayed batch id is reported as ErrDuplicateBatch and
	// leaves nothing behind.
	InsertBatch(ctx context.Context, batch *models.ActivityBatch, events []*models.ActivityEvent) error
}

type ScreenshotRepository interface {
	Create(ctx context.Context, screenshot *models.Screenshot) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Screenshot, error)
	PromoteStorageKey(ctx context.Context, id uuid.UUID, key string) error
}

type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	UpdateReview(ctx context.Context, project *models.Project) error
}

type BatchDedupRepository interface {
	Seen(ctx context.Context, batchID uuid.UUID) (bool, error)
	Mark(ctx context.Context, batchID uuid.UUID, deviceID uuid.UUID) error
}

type PresenceRepository interface {
	Refresh(ctx context.Context, presence *models.AgentPresence) error
	Get(ctx context.Context, deviceID uuid.UUID) (*models.AgentPresence, error)
}
