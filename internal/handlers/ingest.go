package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tracklight/agent-core/internal/models"
	"github.com/tracklight/agent-core/internal/services"
)

type IngestHandler struct {
	ingest *services.IngestService
}

func NewIngestHandler(ingest *services.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

type heartbeatRequest struct {
	TimeEntryID   *uuid.UUID `json:"time_entry_id"`
	Timestamp     int64      `json:"timestamp" validate:"required"`
	ClientType    string     `json:"client_type" validate:"required,oneof=desktop"`
	ClientVersion string     `json:"client_version" validate:"max=64"`
}

type heartbeatResponse struct {
	OK         bool      `json:"ok"`
	ServerTime time.Time `json:"server_time"`
}

func (h *IngestHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req heartbeatRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	serverTime, err := h.ingest.Heartbeat(r.Context(), services.HeartbeatInput{
		DeviceID:      claims.DeviceID,
		UserID:        claims.UserID,
		TimeEntryID:   req.TimeEntryID,
		Timestamp:     time.UnixMilli(req.Timestamp),
		ClientVersion: req.ClientVersion,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, heartbeatResponse{OK: true, ServerTime: serverTime})
}

type batchEventRequest struct {
	Type      string          `json:"type" validate:"required,oneof=input_activity active_window idle_start idle_end"`
	Timestamp int64           `json:"timestamp" validate:"required"`
	Payload   json.RawMessage `json:"payload"`
}

type eventsBatchRequest struct {
	BatchID       uuid.UUID           `json:"batch_id" validate:"required"`
	ClientType    string              `json:"client_type" validate:"required,oneof=desktop"`
	ClientVersion string              `json:"client_version" validate:"max=64"`
	Events        []batchEventRequest `json:"events" validate:"required,min=1,max=100,dive"`
}

type eventsBatchResponse struct {
	OK        bool `json:"ok"`
	Accepted  int  `json:"accepted"`
	Duplicate bool `json:"duplicate,omitempty"`
}

func (h *IngestHandler) EventsBatch(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req eventsBatchRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	events := make([]services.BatchEvent, len(req.Events))
	for i, event := range req.Events {
		events[i] = services.BatchEvent{
			Type:       models.EventType(event.Type),
			OccurredAt: time.UnixMilli(event.Timestamp),
			Payload:    event.Payload,
		}
	}

	result, err := h.ingest.SubmitBatch(r.Context(), claims.DeviceID, claims.UserID, req.BatchID, events)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, eventsBatchResponse{
		OK:        true,
		Accepted:  result.Accepted,
		Duplicate: result.Duplicate,
	})
}
