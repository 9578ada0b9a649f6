package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/tracklight/agent-core/internal/metrics"
	"github.com/tracklight/agent-core/internal/models"
	"github.com/tracklight/agent-core/internal/repositories"
)

const MaxBatchSize = 100

var (
	ErrEmptyBatch       = errors.New("batch contains no events")
	ErrBatchTooLarge    = fmt.Errorf("batch exceeds %d events", MaxBatchSize)
	ErrUnknownEventType = errors.New("unknown event type")
)

type HeartbeatInput struct {
	DeviceID      uuid.UUID
	UserID        uuid.UUID
	TimeEntryID   *uuid.UUID
	Timestamp     time.Time
	ClientVersion string
}

type BatchEvent struct {
	Type       models.EventType
	OccurredAt time.Time
	Payload    json.RawMessage
}

type BatchResult struct {
	Accepted  int
	Duplicate bool
}

// IngestService accepts the agent's telemetry under an at-least-once
// delivery model: heartbeats are naturally idempotent, batches are made
// idempotent by their client-generated batch id.
type IngestService struct {
	devices  repositories.DeviceRepository
	entries  repositories.TimeEntryRepository
	activity repositories.ActivityRepository
	dedup    repositories.BatchDedupRepository
	presence repositories.PresenceRepository
	timer    *TimerService
	now      func() time.Time
}

func NewIngestService(
	devices repositories.DeviceRepository,
	entries repositories.TimeEntryRepository,
	activity repositories.ActivityRepository,
	dedup repositories.BatchDedupRepository,
	presence repositories.PresenceRepository,
	timer *TimerService,
) *IngestService {
	return &IngestService{
		devices:  devices,
		entries:  entries,
		activity: activity,
		dedup:    dedup,
		presence: presence,
		timer:    timer,
		now:      time.Now,
	}
}

// Heartbeat is the agent's liveness signal. For an authenticated caller it
// never fails on account of the optional time entry: a missing or foreign
// entry id is ignored, not rejected.
func (s *IngestService) Heartbeat(ctx context.Context, in HeartbeatInput) (time.Time, error) {
	now := s.now()

	if err := s.devices.TouchLastSeen(ctx, in.DeviceID, now); err != nil {
		return time.Time{}, err
	}

	if err := s.presence.Refresh(ctx, &models.AgentPresence{
		DeviceID:      in.DeviceID,
		UserID:        in.UserID,
		ClientVersion: in.ClientVersion,
	}); err != nil {
		log.Printf("failed to refresh presence for device %s: %v", in.DeviceID, err)
	}

	if in.TimeEntryID != nil {
		s.timer.RecordActivity(ctx, *in.TimeEntryID, in.UserID)
	}

	metrics.HeartbeatsTotal.Inc()
	return now, nil
}

// SubmitBatch persists one batch of telemetry events, all or nothing. A
// replayed batch id is recognized and acknowledged without reprocessing:
// the Redis marker is the fast path, the unique key on the batch audit row
// the durable backstop.
func (s *IngestService) SubmitBatch(ctx context.Context, deviceID, userID, batchID uuid.UUID, events []BatchEvent) (*BatchResult, error) {
	if len(events) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(events) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}
	for _, event := range events {
		if !models.KnownEventType(event.Type) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, event.Type)
		}
	}

	seen, err := s.dedup.Seen(ctx, batchID)
	if err != nil {
		log.Printf("dedup check failed for batch %s, falling back to database: %v", batchID, err)
	}
	if seen {
		metrics.DuplicateBatchesTotal.Inc()
		return &BatchResult{Accepted: 0, Duplicate: true}, nil
	}

	// Best-effort association with the currently running entry; events with
	// no running entry persist unassociated.
	var entryID *uuid.UUID
	entry, err := s.entries.GetRunningByUser(ctx, userID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}
	if entry != nil {
		entryID = &entry.ID
	}

	now := s.now()
	batch := &models.ActivityBatch{
		BatchID:    batchID,
		DeviceID:   deviceID,
		EventCount: len(events),
		ReceivedAt: now,
	}

	records := make([]*models.ActivityEvent, len(events))
	for i, event := range events {
		records[i] = &models.ActivityEvent{
			ID:          uuid.New(),
			BatchID:     batchID,
			DeviceID:    deviceID,
			UserID:      userID,
			TimeEntryID: entryID,
			EventType:   event.Type,
			OccurredAt:  event.OccurredAt,
			Payload:     event.Payload,
		}
	}

	err = s.activity.InsertBatch(ctx, batch, records)
	if errors.Is(err, repositories.ErrDuplicateBatch) {
		metrics.DuplicateBatchesTotal.Inc()
		return &BatchResult{Accepted: 0, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.dedup.Mark(ctx, batchID, deviceID); err != nil {
		log.Printf("failed to mark batch %s processed: %v", batchID, err)
	}
	if err := s.devices.TouchLastSeen(ctx, deviceID, now); err != nil {
		log.Printf("failed to update last seen for device %s: %v", deviceID, err)
	}

	metrics.EventsAcceptedTotal.Add(float64(len(records)))
	return &BatchResult{Accepted: len(records)}, nil
}
