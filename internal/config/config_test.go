package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/agentcore")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("BLOB_ENDPOINT", "https://blobs.internal")
	t.Setenv("BLOB_SIGNING_SECRET", "blob-secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKEN_SECRET", "signing-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.PairingCodeTTL)
	assert.Equal(t, 5*time.Minute, cfg.UploadURLTTL)
	assert.Equal(t, 48, cfg.DeviceSecretLength)
	assert.Equal(t, int64(5242880), cfg.ScreenshotMaxBytes)
	assert.Equal(t, StartAutoStop, cfg.TimerStartPolicy)
}

func TestLoadConfig_MissingDatabaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_EphemeralTokenSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKEN_SECRET", "")

	first, err := LoadConfig()
	require.NoError(t, err)
	require.NotEmpty(t, first.TokenSecret)

	second, err := LoadConfig()
	require.NoError(t, err)
	assert.NotEqual(t, first.TokenSecret, second.TokenSecret, "each boot gets a fresh key")
}

func TestLoadConfig_StartPolicy(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKEN_SECRET", "signing-secret")

	t.Setenv("TIMER_START_POLICY", "reject")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StartReject, cfg.TimerStartPolicy)

	t.Setenv("TIMER_START_POLICY", "ask-nicely")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_RejectsBadDurations(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKEN_SECRET", "signing-secret")

	t.Setenv("TOKEN_TTL", "soon")
	_, err := LoadConfig()
	assert.Error(t, err)
}
