package models

import (
	"time"

	"github.com/google/uuid"
)

// PairingCode is a short-lived, single-use bootstrap secret. Rows are kept
// after redemption as an audit record; UsedAt/DeviceID record the outcome.
type PairingCode struct {
	Code      string     `json:"code"`
	UserID    uuid.UUID  `json:"user_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	DeviceID  *uuid.UUID `json:"device_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (p *PairingCode) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

func (p *PairingCode) Used() bool {
	return p.UsedAt != nil
}
