package models

import (
	"time"

	"github.com/google/uuid"
)

// PendingStorageKey marks a screenshot whose binary has not reached durable
// storage yet. The key is promoted to its final value only after the relay
// upload succeeds, so a confirm call can always tell the two states apart.
const PendingStorageKey = "pending"

type Screenshot struct {
	ID          uuid.UUID  `json:"id"`
	TimeEntryID uuid.UUID  `json:"time_entry_id"`
	UserID      uuid.UUID  `json:"user_id"`
	ProjectID   uuid.UUID  `json:"project_id"`
	StorageKey  string     `json:"-"`
	CapturedAt  time.Time  `json:"captured_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func (s *Screenshot) Uploaded() bool {
	return s.StorageKey != PendingStorageKey
}
