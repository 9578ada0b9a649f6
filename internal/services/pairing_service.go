package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	ua "github.com/mileusna/useragent"
	"github.com/tracklight/agent-core/internal/metrics"
	"github.com/tracklight/agent-core/internal/models"
	"github.com/tracklight/agent-core/internal/repositories"
	"github.com/tracklight/agent-core/internal/utils"
)

var (
	ErrInvalidCode              = errors.New("pairing code not found")
	ErrCodeAlreadyUsed          = errors.New("pairing code already used")
	ErrCodeExpired              = errors.New("pairing code expired")
	ErrInvalidDeviceCredentials = errors.New("invalid device credentials")
	ErrDeviceRevoked            = errors.New("device has been revoked")
)

type DeviceMeta struct {
	Name          string
	OS            string
	ClientVersion string
	// UserAgent fills OS when the agent did not report one.
	UserAgent string
}

type PairingResult struct {
	Device       *models.Device
	DeviceSecret string
	AccessToken  string
	ExpiresAt    time.Time
}

type RefreshResult struct {
	AccessToken string
	ExpiresAt   time.Time
}

// DeviceStatus is a device with its presence overlay for listing.
type DeviceStatus struct {
	*models.Device
	Online bool `json:"online"`
}

type PairingService struct {
	codes    repositories.PairingCodeRepository
	devices  repositories.DeviceRepository
	presence repositories.PresenceRepository
	tokens   *TokenService

	codeTTL      time.Duration
	secretLength int
	now          func() time.Time
}

func NewPairingService(
	codes repositories.PairingCodeRepository,
	devices repositories.DeviceRepository,
	presence repositories.PresenceRepository,
	tokens *TokenService,
	codeTTL time.Duration,
	secretLength int,
) *PairingService {
	return &PairingService{
		codes:        codes,
		devices:      devices,
		presence:     presence,
		tokens:       tokens,
		codeTTL:      codeTTL,
		secretLength: secretLength,
		now:          time.Now,
	}
}

// BeginPairing issues a one-time code bound to the calling user. The code is
// the only secret in the bootstrap flow, so its lifetime is short and the
// web layer rate-limits this call.
func (s *PairingService) BeginPairing(ctx context.Context, userID uuid.UUID) (*models.PairingCode, error) {
	code, err := utils.GeneratePairingCode()
	if err != nil {
		return nil, err
	}

	pc := &models.PairingCode{
		Code:      code,
		UserID:    userID,
		ExpiresAt: s.now().Add(s.codeTTL),
	}
	if err := s.codes.Create(ctx, pc); err != nil {
		return nil, err
	}
	return pc, nil
}

// CompletePairing redeems a code: it registers the device, stores only the
// hash of the freshly generated device secret, and returns the cleartext
// secret to the caller exactly once.
func (s *PairingService) CompletePairing(ctx context.Context, code string, meta DeviceMeta) (*PairingResult, error) {
	pc, err := s.codes.GetByCode(ctx, code)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if pc.Used() {
		return nil, ErrCodeAlreadyUsed
	}
	if pc.Expired(now) {
		return nil, ErrCodeExpired
	}

	secret, err := utils.GenerateDeviceSecret(s.secretLength)
	if err != nil {
		return nil, err
	}
	secretHash, err := utils.HashDeviceSecret(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to hash device secret: %w", err)
	}

	deviceID := uuid.New()

	// Winning this conditional update is what makes redemption single-use:
	// of two racing completions only one consumes the row.
	err = s.codes.Consume(ctx, code, deviceID, now)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrCodeAlreadyUsed
	}
	if err != nil {
		return nil, err
	}

	device := &models.Device{
		ID:            deviceID,
		UserID:        pc.UserID,
		Name:          meta.Name,
		OS:            resolveOS(meta),
		ClientVersion: meta.ClientVersion,
		SecretHash:    secretHash,
	}
	if err := s.devices.Create(ctx, device); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Mint(device.ID, device.UserID)
	if err != nil {
		return nil, err
	}
	metrics.CredentialsIssuedTotal.WithLabelValues("pairing").Inc()

	return &PairingResult{
		Device:       device,
		DeviceSecret: secret,
		AccessToken:  token,
		ExpiresAt:    expiresAt,
	}, nil
}

// RefreshCredential exchanges the long-lived device secret for a fresh
// short-lived access credential. This is the only point where revocation is
// enforced.
func (s *PairingService) RefreshCredential(ctx context.Context, deviceID uuid.UUID, secret string) (*RefreshResult, error) {
	device, err := s.devices.GetByID(ctx, deviceID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidDeviceCredentials
	}
	if err != nil {
		return nil, err
	}

	if !utils.CheckDeviceSecret(device.SecretHash, secret) {
		return nil, ErrInvalidDeviceCredentials
	}
	if device.Revoked() {
		return nil, ErrDeviceRevoked
	}

	if err := s.devices.TouchLastSeen(ctx, device.ID, s.now()); err != nil {
		log.Printf("failed to update last seen for device %s: %v", device.ID, err)
	}

	token, expiresAt, err := s.tokens.Mint(device.ID, device.UserID)
	if err != nil {
		return nil, err
	}
	metrics.CredentialsIssuedTotal.WithLabelValues("refresh").Inc()

	return &RefreshResult{AccessToken: token, ExpiresAt: expiresAt}, nil
}

func (s *PairingService) RevokeDevice(ctx context.Context, deviceID, ownerID uuid.UUID) error {
	return s.devices.Revoke(ctx, deviceID, ownerID)
}

func (s *PairingService) ListDevices(ctx context.Context, userID uuid.UUID) ([]*DeviceStatus, error) {
	devices, err := s.devices.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	statuses := make([]*DeviceStatus, 0, len(devices))
	for _, device := range devices {
		online := false
		if _, err := s.presence.Get(ctx, device.ID); err == nil {
			online = true
		} else if !errors.Is(err, repositories.ErrNotFound) {
			log.Printf("failed to read presence for device %s: %v", device.ID, err)
		}
		statuses = append(statuses, &DeviceStatus{Device: device, Online: online})
	}
	return statuses, nil
}

func resolveOS(meta DeviceMeta) string {
	if meta.OS != "" {
		return meta.OS
	}
	if meta.UserAgent == "" {
		return "unknown"
	}
	parsed := ua.Parse(meta.UserAgent)
	if parsed.OS == "" {
		return "unknown"
	}
	return parsed.OS
}
