package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tracklight/agent-core/internal/services"
)

type ScreenshotHandler struct {
	screenshots *services.ScreenshotService
	maxBytes    int64
}

func NewScreenshotHandler(screenshots *services.ScreenshotService, maxBytes int64) *ScreenshotHandler {
	return &ScreenshotHandler{screenshots: screenshots, maxBytes: maxBytes}
}

type presignRequest struct {
	TimeEntryID   uuid.UUID `json:"time_entry_id" validate:"required"`
	CapturedAt    int64     `json:"captured_at" validate:"required"`
	ClientType    string    `json:"client_type" validate:"required,oneof=desktop"`
	ClientVersion string    `json:"client_version" validate:"max=64"`
}

type presignResponse struct {
	ScreenshotID uuid.UUID `json:"screenshot_id"`
	UploadTarget string    `json:"upload_target"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (h *ScreenshotHandler) Presign(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req presignRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	result, err := h.screenshots.Presign(r.Context(), claims.DeviceID, claims.UserID, req.TimeEntryID, time.UnixMilli(req.CapturedAt))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, presignResponse{
		ScreenshotID: result.ScreenshotID,
		UploadTarget: result.UploadPath,
		ExpiresAt:    result.ExpiresAt,
	})
}

// Upload relays the raw binary body. MaxBytesReader hard-stops oversized
// bodies at the transport before the service's own cap check.
func (h *ScreenshotHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	screenshotID, err := uuid.Parse(chi.URLParam(r, "screenshotID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_screenshot_id", "screenshot id must be a UUID")
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.maxBytes+1)
	defer body.Close()

	err = h.screenshots.Upload(r.Context(), screenshotID, claims.UserID, r.Header.Get("Content-Type"), body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeServiceError(w, services.ErrPayloadTooLarge)
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *ScreenshotHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	screenshotID, err := uuid.Parse(chi.URLParam(r, "screenshotID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_screenshot_id", "screenshot id must be a UUID")
		return
	}

	if err := h.screenshots.Confirm(r.Context(), screenshotID, claims.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
