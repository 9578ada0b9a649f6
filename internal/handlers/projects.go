package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tracklight/agent-core/internal/models"
	"github.com/tracklight/agent-core/internal/services"
)

type ProjectHandler struct {
	timer *services.TimerService
}

func NewProjectHandler(timer *services.TimerService) *ProjectHandler {
	return &ProjectHandler{timer: timer}
}

type projectStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active in_review done"`
}

// SetStatus is the web-side project-status change that drives the timer
// core's review sub-state.
func (h *ProjectHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := WebUserFromContext(r.Context())

	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_project_id", "project id must be a UUID")
		return
	}

	var req projectStatusRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	project, err := h.timer.SetProjectStatus(r.Context(), projectID, userID, models.ProjectStatus(req.Status))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}
