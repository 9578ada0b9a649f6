package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/tracklight/agent-core/internal/models"
	"github.com/tracklight/agent-core/internal/services"
)

// TimerHandler serves both the agent (bearer) and web (session) timer
// routes. Both paths run the same state machine under the same start policy.
type TimerHandler struct {
	timer *services.TimerService
}

func NewTimerHandler(timer *services.TimerService) *TimerHandler {
	return &TimerHandler{timer: timer}
}

// callerID resolves the acting user from whichever auth mode admitted the
// request.
func callerID(r *http.Request) (uuid.UUID, bool) {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		return claims.UserID, true
	}
	if userID, ok := WebUserFromContext(r.Context()); ok {
		return userID, true
	}
	return uuid.Nil, false
}

type startRequest struct {
	ProjectID   uuid.UUID `json:"project_id" validate:"required"`
	Description string    `json:"description" validate:"max=512"`
}

func (h *TimerHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "no caller identity")
		return
	}

	var req startRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	entry, err := h.timer.Start(r.Context(), userID, req.ProjectID, req.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

type entryRequest struct {
	TimeEntryID uuid.UUID `json:"time_entry_id" validate:"required"`
}

func (h *TimerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(userID uuid.UUID, req entryRequest) (*models.TimeEntry, error) {
		return h.timer.Pause(r.Context(), req.TimeEntryID, userID)
	})
}

type resumeRequest struct {
	TimeEntryID uuid.UUID `json:"time_entry_id" validate:"required"`
	DiscardIdle bool      `json:"discard_idle"`
}

func (h *TimerHandler) Resume(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "no caller identity")
		return
	}

	var req resumeRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	entry, err := h.timer.Resume(r.Context(), req.TimeEntryID, userID, req.DiscardIdle)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *TimerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(userID uuid.UUID, req entryRequest) (*models.TimeEntry, error) {
		return h.timer.Stop(r.Context(), req.TimeEntryID, userID)
	})
}

func (h *TimerHandler) transition(w http.ResponseWriter, r *http.Request, apply func(uuid.UUID, entryRequest) (*models.TimeEntry, error)) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "no caller identity")
		return
	}

	var req entryRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	entry, err := apply(userID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}
