package models

import (
	"time"

	"github.com/google/uuid"
)

// Device is one registered agent installation. The long-lived device secret
// is handed to the agent exactly once at pairing; only its bcrypt hash is
// stored here.
type Device struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Name          string     `json:"name"`
	OS            string     `json:"os"`
	ClientVersion string     `json:"client_version"`
	SecretHash    string     `json:"-"`
	LastSeenAt    *time.Time `json:"last_seen_at,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

func (d *Device) Revoked() bool {
	return d.RevokedAt != nil
}
