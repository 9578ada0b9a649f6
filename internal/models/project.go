package models

import (
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectInReview ProjectStatus = "in_review"
	ProjectDone     ProjectStatus = "done"
)

// Project carries the minimal slice of the external project model this core
// touches: ownership checks plus the review-status fields that drive due-date
// extension.
type Project struct {
	ID              uuid.UUID     `json:"id"`
	UserID          uuid.UUID     `json:"user_id"`
	Name            string        `json:"name"`
	Status          ProjectStatus `json:"status"`
	DueDate         *time.Time    `json:"due_date,omitempty"`
	ReviewStartedAt *time.Time    `json:"review_started_at,omitempty"`
	ReviewMs        int64         `json:"review_ms"`
}
