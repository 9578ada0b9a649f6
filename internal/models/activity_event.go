package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventInputActivity EventType = "input_activity"
	EventActiveWindow  EventType = "active_window"
	EventIdleStart     EventType = "idle_start"
	EventIdleEnd       EventType = "idle_end"
)

// KnownEventType reports whether t is in the closed set of telemetry types.
func KnownEventType(t EventType) bool {
	switch t {
	case EventInputActivity, EventActiveWindow, EventIdleStart, EventIdleEnd:
		return true
	}
	return false
}

// ActivityEvent is one telemetry sample. Append-only; never mutated after
// insert.
type ActivityEvent struct {
	ID          uuid.UUID       `json:"id"`
	BatchID     uuid.UUID       `json:"batch_id"`
	DeviceID    uuid.UUID       `json:"device_id"`
	UserID      uuid.UUID       `json:"user_id"`
	TimeEntryID *uuid.UUID      `json:"time_entry_id,omitempty"`
	EventType   EventType       `json:"event_type"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ActivityBatch is the durable replay guard for one submitted batch. A batch
// id is recorded at most once; replays are recognized, not reprocessed.
type ActivityBatch struct {
	BatchID    uuid.UUID `json:"batch_id"`
	DeviceID   uuid.UUID `json:"device_id"`
	EventCount int       `json:"event_count"`
	ReceivedAt time.Time `json:"received_at"`
}
