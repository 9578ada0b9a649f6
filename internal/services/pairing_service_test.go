package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracklight/agent-core/internal/utils"
)

func newTestPairingService() (*PairingService, *fakeDeviceRepo, *fakePairingRepo) {
	devices := newFakeDeviceRepo()
	codes := newFakePairingRepo()
	tokens := NewTokenService("test-secret", time.Hour)
	svc := NewPairingService(codes, devices, newFakePresenceRepo(), tokens, 10*time.Minute, 48)
	return svc, devices, codes
}

func TestPairing_BeginIssuesCode(t *testing.T) {
	svc, _, _ := newTestPairingService()
	ctx := context.Background()

	code, err := svc.BeginPairing(ctx, uuid.New())
	require.NoError(t, err)
	assert.Len(t, code.Code, utils.PairingCodeLength)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), code.ExpiresAt, 5*time.Second)
}

func TestPairing_CompleteIsSingleUse(t *testing.T) {
	svc, _, _ := newTestPairingService()
	ctx := context.Background()
	userID := uuid.New()

	code, err := svc.BeginPairing(ctx, userID)
	require.NoError(t, err)

	result, err := svc.CompletePairing(ctx, code.Code, DeviceMeta{Name: "Bob's Mac", OS: "macOS"})
	require.NoError(t, err)
	assert.Equal(t, userID, result.Device.UserID)
	assert.NotEmpty(t, result.DeviceSecret)
	assert.NotEmpty(t, result.AccessToken)

	// Second redemption before the TTL elapses still fails.
	_, err = svc.CompletePairing(ctx, code.Code, DeviceMeta{Name: "Mallory's Mac"})
	assert.ErrorIs(t, err, ErrCodeAlreadyUsed)
}

func TestPairing_CompleteExpiredCode(t *testing.T) {
	svc, _, _ := newTestPairingService()
	ctx := context.Background()

	code, err := svc.BeginPairing(ctx, uuid.New())
	require.NoError(t, err)

	// Just past expiry, never used.
	svc.now = func() time.Time { return code.ExpiresAt.Add(time.Second) }
	_, err = svc.CompletePairing(ctx, code.Code, DeviceMeta{Name: "Late Agent"})
	assert.ErrorIs(t, err, ErrCodeExpired)
}

func TestPairing_CompleteUnknownCode(t *testing.T) {
	svc, _, _ := newTestPairingService()

	_, err := svc.CompletePairing(context.Background(), "ZZZZZZ", DeviceMeta{Name: "Agent"})
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestPairing_SecretStoredOnlyAsHash(t *testing.T) {
	svc, devices, _ := newTestPairingService()
	ctx := context.Background()

	code, err := svc.BeginPairing(ctx, uuid.New())
	require.NoError(t, err)
	result, err := svc.CompletePairing(ctx, code.Code, DeviceMeta{Name: "Agent"})
	require.NoError(t, err)

	stored, err := devices.GetByID(ctx, result.Device.ID)
	require.NoError(t, err)
	assert.NotEqual(t, result.DeviceSecret, stored.SecretHash)
	assert.True(t, utils.CheckDeviceSecret(stored.SecretHash, result.DeviceSecret))
}

func TestPairing_RefreshCredential(t *testing.T) {
	svc, _, _ := newTestPairingService()
	ctx := context.Background()

	code, err := svc.BeginPairing(ctx, uuid.New())
	require.NoError(t, err)
	result, err := svc.CompletePairing(ctx, code.Code, DeviceMeta{Name: "Agent"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshCredential(ctx, result.Device.ID, result.DeviceSecret)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = svc.RefreshCredential(ctx, result.Device.ID, "wrong-secret")
	assert.ErrorIs(t, err, ErrInvalidDeviceCredentials)

	_, err = svc.RefreshCredential(ctx, uuid.New(), result.DeviceSecret)
	assert.ErrorIs(t, err, ErrInvalidDeviceCredentials)
}

func TestPairing_RevokedDeviceCannotRefresh(t *testing.T) {
	svc, _, _ := newTestPairingService()
	ctx := context.Background()
	userID := uuid.New()

	code, err := svc.BeginPairing(ctx, userID)
	require.NoError(t, err)
	result, err := svc.CompletePairing(ctx, code.Code, DeviceMeta{Name: "Agent"})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeDevice(ctx, result.Device.ID, userID))
	// Revoking again is a no-op success.
	require.NoError(t, svc.RevokeDevice(ctx, result.Device.ID, userID))

	_, err = svc.RefreshCredential(ctx, result.Device.ID, result.DeviceSecret)
	assert.ErrorIs(t, err, ErrDeviceRevoked)
}

func TestPairing_OSFallsBackToUserAgent(t *testing.T) {
	svc, _, _ := newTestPairingService()
	ctx := context.Background()

	code, err := svc.BeginPairing(ctx, uuid.New())
	require.NoError(t, err)

	result, err := svc.CompletePairing(ctx, code.Code, DeviceMeta{
		Name:      "Agent",
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "unknown", result.Device.OS)
}
