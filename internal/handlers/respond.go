package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/tracklight/agent-core/internal/repositories"
	"github.com/tracklight/agent-core/internal/services"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	// EntryStatus carries the entry's current status on transition
	// conflicts, so a retrying agent can treat "wrong state" as "already
	// applied" when that is what happened.
	EntryStatus string `json:"entry_status,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeServiceError maps service errors onto the four-way taxonomy: caller
// input (400/413/415/422), credential (401/403), state conflict (409, always
// with a machine-readable code), and everything else (500).
func writeServiceError(w http.ResponseWriter, err error) {
	var transition *services.InvalidTransitionError
	if errors.As(err, &transition) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:       transition.Error(),
			Code:        "invalid_transition",
			EntryStatus: string(transition.Current),
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrInvalidCode):
		writeError(w, http.StatusNotFound, "invalid_code", err.Error())
	case errors.Is(err, services.ErrCodeAlreadyUsed):
		writeError(w, http.StatusConflict, "code_already_used", err.Error())
	case errors.Is(err, services.ErrCodeExpired):
		writeError(w, http.StatusConflict, "code_expired", err.Error())
	case errors.Is(err, services.ErrInvalidDeviceCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_device_credentials", err.Error())
	case errors.Is(err, services.ErrDeviceRevoked):
		writeError(w, http.StatusForbidden, "device_revoked", err.Error())
	case errors.Is(err, services.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "token_expired", err.Error())
	case errors.Is(err, services.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "token_invalid", err.Error())
	case errors.Is(err, services.ErrActiveEntryExists):
		writeError(w, http.StatusConflict, "active_entry_exists", err.Error())
	case errors.Is(err, services.ErrUploadNotReceived):
		writeError(w, http.StatusConflict, "upload_not_received", err.Error())
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, services.ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", err.Error())
	case errors.Is(err, services.ErrUnsupportedContentType):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_content_type", err.Error())
	case errors.Is(err, services.ErrInvalidFormat):
		writeError(w, http.StatusUnprocessableEntity, "invalid_format", err.Error())
	case errors.Is(err, services.ErrEmptyBatch),
		errors.Is(err, services.ErrBatchTooLarge),
		errors.Is(err, services.ErrUnknownEventType):
		writeError(w, http.StatusBadRequest, "invalid_batch", err.Error())
	case errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrEntryNotFound),
		errors.Is(err, services.ErrScreenshotNotFound),
		errors.Is(err, repositories.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_payload", "malformed JSON payload")
		return false
	}
	return true
}

func validateRequest(w http.ResponseWriter, v interface{}) bool {
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}
