package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

type StartPolicy string

const (
	// StartAutoStop force-stops a lingering non-stopped entry before starting
	// a new one.
	StartAutoStop StartPolicy = "auto-stop"
	// StartReject refuses to start while a non-stopped entry exists.
	StartReject StartPolicy = "reject"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	RedisURL    string

	// TokenSecret signs access credentials. If unset, an ephemeral key is
	// generated at boot: every outstanding credential becomes invalid on
	// restart and agents must refresh. Fine for development, an operational
	// hazard in production.
	TokenSecret string
	TokenTTL    time.Duration

	PairingCodeTTL     time.Duration
	DeviceSecretLength int

	ScreenshotMaxBytes int64
	UploadURLTTL       time.Duration
	BlobEndpoint       string
	BlobSigningSecret  string

	TimerStartPolicy StartPolicy
}

func LoadConfig() (*Config, error) {
	tokenTTL, err := time.ParseDuration(getEnv("TOKEN_TTL", "1h"))
	if err != nil {
		return nil, errors.New("invalid TOKEN_TTL format")
	}
	pairingTTL, err := time.ParseDuration(getEnv("PAIRING_CODE_TTL", "10m"))
	if err != nil {
		return nil, errors.New("invalid PAIRING_CODE_TTL format")
	}
	uploadTTL, err := time.ParseDuration(getEnv("UPLOAD_URL_TTL", "5m"))
	if err != nil {
		return nil, errors.New("invalid UPLOAD_URL_TTL format")
	}
	secretLen, err := strconv.Atoi(getEnv("DEVICE_SECRET_LENGTH", "48"))
	if err != nil || secretLen < 32 {
		return nil, errors.New("DEVICE_SECRET_LENGTH must be an integer >= 32")
	}
	maxBytes, err := strconv.ParseInt(getEnv("SCREENSHOT_MAX_BYTES", "5242880"), 10, 64)
	if err != nil || maxBytes <= 0 {
		return nil, errors.New("SCREENSHOT_MAX_BYTES must be a positive integer")
	}

	policy := StartPolicy(getEnv("TIMER_START_POLICY", string(StartAutoStop)))
	if policy != StartAutoStop && policy != StartReject {
		return nil, fmt.Errorf("TIMER_START_POLICY must be %q or %q", StartAutoStop, StartReject)
	}

	cfg := &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		TokenSecret:        os.Getenv("TOKEN_SECRET"),
		TokenTTL:           tokenTTL,
		PairingCodeTTL:     pairingTTL,
		DeviceSecretLength: secretLen,
		ScreenshotMaxBytes: maxBytes,
		UploadURLTTL:       uploadTTL,
		BlobEndpoint:       os.Getenv("BLOB_ENDPOINT"),
		BlobSigningSecret:  os.Getenv("BLOB_SIGNING_SECRET"),
		TimerStartPolicy:   policy,
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.BlobEndpoint == "" {
		return nil, errors.New("BLOB_ENDPOINT is required")
	}
	if cfg.BlobSigningSecret == "" {
		return nil, errors.New("BLOB_SIGNING_SECRET is required")
	}

	if cfg.TokenSecret == "" {
		key, err := ephemeralKey()
		if err != nil {
			return nil, err
		}
		cfg.TokenSecret = key
		log.Println("WARNING: TOKEN_SECRET not set, generated an ephemeral signing key; all access credentials will be invalidated on restart")
	}

	return cfg, nil
}

func ephemeralKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate ephemeral signing key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
