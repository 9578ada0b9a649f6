package models

import (
	"time"

	"github.com/google/uuid"
)

type EntryStatus string

const (
	EntryRunning EntryStatus = "running"
	EntryPaused  EntryStatus = "paused"
	EntryStopped EntryStatus = "stopped"
)

// TimeEntry is one continuous-or-interrupted work session. At most one
// non-stopped entry may exist per user at any instant; the database enforces
// this with a partial unique index on (user_id) WHERE status <> 'stopped'.
type TimeEntry struct {
	ID              uuid.UUID   `json:"id"`
	UserID          uuid.UUID   `json:"user_id"`
	ProjectID       uuid.UUID   `json:"project_id"`
	Description     string      `json:"description"`
	Status          EntryStatus `json:"status"`
	StartedAt       time.Time   `json:"started_at"`
	EndedAt         *time.Time  `json:"ended_at,omitempty"`
	DurationSeconds int64       `json:"duration_seconds"`
	IdleSeconds     int64       `json:"idle_seconds"`
	LastActivityAt  time.Time   `json:"last_activity_at"`
	ReviewStartedAt *time.Time  `json:"review_started_at,omitempty"`
	ReviewMs        int64       `json:"review_ms"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       *time.Time  `json:"updated_at,omitempty"`
}

func (e *TimeEntry) Stopped() bool {
	return e.Status == EntryStopped
}

// CreditActivity folds the wall clock since the last activity mark into the
// accumulated duration. Only meaningful while running.
func (e *TimeEntry) CreditActivity(now time.Time) {
	elapsed := int64(now.Sub(e.LastActivityAt).Seconds())
	if elapsed > 0 {
		e.DurationSeconds += elapsed
	}
	e.LastActivityAt = now
}
