package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tracklight/agent-core/internal/services"
)

type PairingHandler struct {
	pairing *services.PairingService
}

func NewPairingHandler(pairing *services.PairingService) *PairingHandler {
	return &PairingHandler{pairing: pairing}
}

type beginPairingResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Begin issues a one-time pairing code for the calling web user.
func (h *PairingHandler) Begin(w http.ResponseWriter, r *http.Request) {
	userID, _ := WebUserFromContext(r.Context())

	code, err := h.pairing.BeginPairing(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, beginPairingResponse{
		Code:      code.Code,
		ExpiresAt: code.ExpiresAt,
	})
}

type completePairingRequest struct {
	Code          string `json:"code" validate:"required,len=6"`
	Name          string `json:"name" validate:"required,max=128"`
	OS            string `json:"os" validate:"max=64"`
	ClientVersion string `json:"client_version" validate:"max=64"`
}

type completePairingResponse struct {
	DeviceID     uuid.UUID `json:"device_id"`
	DeviceSecret string    `json:"device_secret"`
	AccessToken  string    `json:"access_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Complete redeems a pairing code. This is the one unauthenticated call that
// creates state; the code itself is the whole proof.
func (h *PairingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completePairingRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	result, err := h.pairing.CompletePairing(r.Context(), req.Code, services.DeviceMeta{
		Name:          req.Name,
		OS:            req.OS,
		ClientVersion: req.ClientVersion,
		UserAgent:     r.UserAgent(),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, completePairingResponse{
		DeviceID:     result.Device.ID,
		DeviceSecret: result.DeviceSecret,
		AccessToken:  result.AccessToken,
		ExpiresAt:    result.ExpiresAt,
	})
}

type refreshRequest struct {
	DeviceID     uuid.UUID `json:"device_id" validate:"required"`
	DeviceSecret string    `json:"device_secret" validate:"required"`
}

type refreshResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (h *PairingHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	result, err := h.pairing.RefreshCredential(r.Context(), req.DeviceID, req.DeviceSecret)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken: result.AccessToken,
		ExpiresAt:   result.ExpiresAt,
	})
}

func (h *PairingHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, _ := WebUserFromContext(r.Context())

	deviceID, err := uuid.Parse(chi.URLParam(r, "deviceID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_device_id", "device id must be a UUID")
		return
	}

	if err := h.pairing.RevokeDevice(r.Context(), deviceID, userID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *PairingHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := WebUserFromContext(r.Context())

	devices, err := h.pairing.ListDevices(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": devices})
}
