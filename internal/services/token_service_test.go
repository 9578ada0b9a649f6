package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_MintAndVerify(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	deviceID := uuid.New()
	userID := uuid.New()

	token, expiresAt, err := svc.Mint(deviceID, userID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, deviceID, claims.DeviceID)
	assert.Equal(t, userID, claims.UserID)
}

func TestTokenService_Expired(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	// Mint in the past, verify at real now.
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.Mint(uuid.New(), uuid.New())
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired, "expiry must be distinguishable from a bad signature")
}

func TestTokenService_TamperedPayload(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, _, err := svc.Mint(uuid.New(), uuid.New())
	require.NoError(t, err)

	// Flip one character in the payload segment. The signature check must
	// fail before any expiry logic runs.
	tampered := []byte(token)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}

	_, err = svc.Verify(string(tampered))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_WrongSecret(t *testing.T) {
	minter := NewTokenService("secret-one", time.Hour)
	verifier := NewTokenService("secret-two", time.Hour)

	token, _, err := minter.Mint(uuid.New(), uuid.New())
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_Garbage(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	_, err := svc.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
