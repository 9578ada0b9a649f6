package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tracklight/agent-core/internal/models"
	"github.com/tracklight/agent-core/internal/repositories"
)

// In-memory repository fakes. They mirror the conditional-write semantics of
// the Postgres implementations (single-use consume, status-conditional
// updates, unique active entry) so the services exercise the same paths they
// would against the real store.

type fakeDeviceRepo struct {
	devices map[uuid.UUID]*models.Device
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: make(map[uuid.UUID]*models.Device)}
}

func (r *fakeDeviceRepo) Create(_ context.Context, device *models.Device) error {
	device.CreatedAt = time.Now()
	stored := *device
	r.devices[device.ID] = &stored
	return nil
}

func (r *fakeDeviceRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Device, error) {
	device, ok := r.devices[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *device
	return &copied, nil
}

func (r *fakeDeviceRepo) GetByUserID(_ context.Context, userID uuid.UUID) ([]*models.Device, error) {
	var out []*models.Device
	for _, device := range r.devices {
		if device.UserID == userID {
			copied := *device
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeDeviceRepo) TouchLastSeen(_ context.Context, id uuid.UUID, seenAt time.Time) error {
	device, ok := r.devices[id]
	if !ok {
		return repositories.ErrNotFound
	}
	device.LastSeenAt = &seenAt
	return nil
}

func (r *fakeDeviceRepo) Revoke(_ context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	device, ok := r.devices[id]
	if !ok || device.UserID != ownerID {
		return repositories.ErrNotFound
	}
	if device.RevokedAt == nil {
		now := time.Now()
		device.RevokedAt = &now
	}
	return nil
}

type fakePairingRepo struct {
	codes map[string]*models.PairingCode
}

func newFakePairingRepo() *fakePairingRepo {
	return &fakePairingRepo{codes: make(map[string]*models.PairingCode)}
}

func (r *fakePairingRepo) Create(_ context.Context, code *models.PairingCode) error {
	code.CreatedAt = time.Now()
	stored := *code
	r.codes[code.Code] = &stored
	return nil
}

func (r *fakePairingRepo) GetByCode(_ context.Context, code string) (*models.PairingCode, error) {
	pc, ok := r.codes[code]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *pc
	return &copied, nil
}

func (r *fakePairingRepo) Consume(_ context.Context, code string, deviceID uuid.UUID, now time.Time) error {
	pc, ok := r.codes[code]
	if !ok || pc.UsedAt != nil || !pc.ExpiresAt.After(now) {
		return repositories.ErrNotFound
	}
	pc.UsedAt = &now
	pc.DeviceID = &deviceID
	return nil
}

type fakeEntryRepo struct {
	entries map[uuid.UUID]*models.TimeEntry
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{entries: make(map[uuid.UUID]*models.TimeEntry)}
}

func (r *fakeEntryRepo) Create(_ context.Context, entry *models.TimeEntry) error {
	for _, existing := range r.entries {
		if existing.UserID == entry.UserID && existing.Status != models.EntryStopped {
			return repositories.ErrActiveEntryExists
		}
	}
	entry.CreatedAt = time.Now()
	stored := *entry
	r.entries[entry.ID] = &stored
	return nil
}

func (r *fakeEntryRepo) GetByID(_ context.Context, id uuid.UUID) (*models.TimeEntry, error) {
	entry, ok := r.entries[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

func (r *fakeEntryRepo) GetActiveByUser(_ context.Context, userID uuid.UUID) (*models.TimeEntry, error) {
	for _, entry := range r.entries {
		if entry.UserID == userID && entry.Status != models.EntryStopped {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeEntryRepo) GetRunningByUser(_ context.Context, userID uuid.UUID) (*models.TimeEntry, error) {
	for _, entry := range r.entries {
		if entry.UserID == userID && entry.Status == models.EntryRunning {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeEntryRepo) GetNonStoppedByProject(_ context.Context, projectID uuid.UUID) ([]*models.TimeEntry, error) {
	var out []*models.TimeEntry
	for _, entry := range r.entries {
		if entry.ProjectID == projectID && entry.Status != models.EntryStopped {
			copied := *entry
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeEntryRepo) UpdateTransition(_ context.Context, entry *models.TimeEntry, expectedStatus models.EntryStatus) error {
	stored, ok := r.entries[entry.ID]
	if !ok || stored.Status != expectedStatus {
		return repositories.ErrStatusConflict
	}
	copied := *entry
	r.entries[entry.ID] = &copied
	return nil
}

type fakeActivityRepo struct {
	batches map[uuid.UUID]*models.ActivityBatch
	events  []*models.ActivityEvent
}

func newFakeActivityRepo() *fakeActivityRepo {
	return &fakeActivityRepo{batches: make(map[uuid.UUID]*models.ActivityBatch)}
}

func (r *fakeActivityRepo) InsertBatch(_ context.Context, batch *models.ActivityBatch, events []*models.ActivityEvent) error {
	if _, ok := r.batches[batch.BatchID]; ok {
		return repositories.ErrDuplicateBatch
	}
	r.batches[batch.BatchID] = batch
	r.events = append(r.events, events...)
	return nil
}

type fakeScreenshotRepo struct {
	screenshots map[uuid.UUID]*models.Screenshot
}

func newFakeScreenshotRepo() *fakeScreenshotRepo {
	return &fakeScreenshotRepo{screenshots: make(map[uuid.UUID]*models.Screenshot)}
}

func (r *fakeScreenshotRepo) Create(_ context.Context, screenshot *models.Screenshot) error {
	screenshot.CreatedAt = time.Now()
	stored := *screenshot
	r.screenshots[screenshot.ID] = &stored
	return nil
}

func (r *fakeScreenshotRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Screenshot, error) {
	screenshot, ok := r.screenshots[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *screenshot
	return &copied, nil
}

func (r *fakeScreenshotRepo) PromoteStorageKey(_ context.Context, id uuid.UUID, key string) error {
	screenshot, ok := r.screenshots[id]
	if !ok {
		return repositories.ErrNotFound
	}
	screenshot.StorageKey = key
	return nil
}

type fakeProjectRepo struct {
	projects map[uuid.UUID]*models.Project
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{projects: make(map[uuid.UUID]*models.Project)}
}

func (r *fakeProjectRepo) Create(_ context.Context, project *models.Project) error {
	stored := *project
	r.projects[project.ID] = &stored
	return nil
}

func (r *fakeProjectRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Project, error) {
	project, ok := r.projects[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *project
	return &copied, nil
}

func (r *fakeProjectRepo) UpdateReview(_ context.Context, project *models.Project) error {
	if _, ok := r.projects[project.ID]; !ok {
		return repositories.ErrNotFound
	}
	copied := *project
	r.projects[project.ID] = &copied
	return nil
}

type fakeDedupRepo struct {
	seen map[uuid.UUID]bool
}

func newFakeDedupRepo() *fakeDedupRepo {
	return &fakeDedupRepo{seen: make(map[uuid.UUID]bool)}
}

func (r *fakeDedupRepo) Seen(_ context.Context, batchID uuid.UUID) (bool, error) {
	return r.seen[batchID], nil
}

func (r *fakeDedupRepo) Mark(_ context.Context, batchID uuid.UUID, _ uuid.UUID) error {
	r.seen[batchID] = true
	return nil
}

type fakePresenceRepo struct {
	presence map[uuid.UUID]*models.AgentPresence
}

func newFakePresenceRepo() *fakePresenceRepo {
	return &fakePresenceRepo{presence: make(map[uuid.UUID]*models.AgentPresence)}
}

func (r *fakePresenceRepo) Refresh(_ context.Context, presence *models.AgentPresence) error {
	presence.LastSeen = time.Now()
	stored := *presence
	r.presence[presence.DeviceID] = &stored
	return nil
}

func (r *fakePresenceRepo) Get(_ context.Context, deviceID uuid.UUID) (*models.AgentPresence, error) {
	presence, ok := r.presence[deviceID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *presence
	return &copied, nil
}
