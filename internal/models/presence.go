package models

import (
	"time"

	"github.com/google/uuid"
)

// AgentPresence is the short-TTL liveness record refreshed by every
// heartbeat. Absence of the record means the agent is offline.
type AgentPresence struct {
	DeviceID      uuid.UUID `json:"device_id"`
	UserID        uuid.UUID `json:"user_id"`
	ClientVersion string    `json:"client_version"`
	LastSeen      time.Time `json:"last_seen"`
}
