package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/tracklight/agent-core/internal/blobstore"
	"github.com/tracklight/agent-core/internal/metrics"
	"github.com/tracklight/agent-core/internal/models"
	"github.com/tracklight/agent-core/internal/repositories"
)

var (
	ErrScreenshotNotFound     = errors.New("screenshot not found")
	ErrForbidden              = errors.New("caller does not own this screenshot")
	ErrUnsupportedContentType = errors.New("content type is not a supported image type")
	ErrInvalidFormat          = errors.New("payload does not match the declared image format")
	ErrPayloadTooLarge        = errors.New("payload exceeds the screenshot size cap")
	ErrUploadNotReceived      = errors.New("screenshot binary has not been received")
)

// Declared content type must match the structural fingerprint of the
// payload; a client lying about the type is rejected before any byte reaches
// durable storage.
var imageFormats = map[string]struct {
	ext   string
	magic []byte
}{
	"image/png":  {ext: ".png", magic: []byte{0x89, 0x50, 0x4E, 0x47}},
	"image/jpeg": {ext: ".jpg", magic: []byte{0xFF, 0xD8, 0xFF}},
}

type PresignResult struct {
	ScreenshotID uuid.UUID
	UploadPath   string
	ExpiresAt    time.Time
}

// ScreenshotService drives the Presigned -> Uploading -> Confirmed pipeline.
// The agent uploads through a server relay rather than straight to the blob
// store so the payload can be validated before it is committed.
type ScreenshotService struct {
	screenshots repositories.ScreenshotRepository
	entries     repositories.TimeEntryRepository
	presigner   *blobstore.Presigner
	uploader    *blobstore.Client

	maxBytes int64
	urlTTL   time.Duration
	now      func() time.Time
}

func NewScreenshotService(
	screenshots repositories.ScreenshotRepository,
	entries repositories.TimeEntryRepository,
	presigner *blobstore.Presigner,
	uploader *blobstore.Client,
	maxBytes int64,
	urlTTL time.Duration,
) *ScreenshotService {
	return &ScreenshotService{
		screenshots: screenshots,
		entries:     entries,
		presigner:   presigner,
		uploader:    uploader,
		maxBytes:    maxBytes,
		urlTTL:      urlTTL,
		now:         time.Now,
	}
}

// Presign registers the capture and returns the relay upload target. The
// storage key stays a placeholder until the binary actually lands in the
// blob store.
func (s *ScreenshotService) Presign(ctx context.Context, deviceID, userID, entryID uuid.UUID, capturedAt time.Time) (*PresignResult, error) {
	entry, err := s.entries.GetByID(ctx, entryID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ErrEntryNotFound
	}

	screenshot := &models.Screenshot{
		ID:          uuid.New(),
		TimeEntryID: entry.ID,
		UserID:      userID,
		ProjectID:   entry.ProjectID,
		StorageKey:  models.PendingStorageKey,
		CapturedAt:  capturedAt,
	}
	if err := s.screenshots.Create(ctx, screenshot); err != nil {
		return nil, err
	}

	return &PresignResult{
		ScreenshotID: screenshot.ID,
		UploadPath:   fmt.Sprintf("/agent/screenshots/%s/upload", screenshot.ID),
		ExpiresAt:    s.now().Add(s.urlTTL),
	}, nil
}

// Upload validates and relays the binary. Any failure after validation
// leaves the storage key pending, so a subsequent confirm deterministically
// reports "not received" and the agent retries the whole upload.
func (s *ScreenshotService) Upload(ctx context.Context, screenshotID, userID uuid.UUID, contentType string, body io.Reader) error {
	screenshot, err := s.screenshots.GetByID(ctx, screenshotID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrScreenshotNotFound
	}
	if err != nil {
		return err
	}
	if screenshot.UserID != userID {
		return ErrForbidden
	}

	format, ok := imageFormats[contentType]
	if !ok {
		return ErrUnsupportedContentType
	}

	data, err := s.readCapped(body)
	if err != nil {
		return err
	}
	if len(data) < len(format.magic) || !bytes.Equal(data[:len(format.magic)], format.magic) {
		return ErrInvalidFormat
	}

	key := fmt.Sprintf("screenshots/%s/%s%s", screenshot.UserID, screenshot.ID, format.ext)
	url := s.presigner.PresignPut(key, s.now().Add(s.urlTTL))

	if err := s.uploader.Put(ctx, url, contentType, data); err != nil {
		return fmt.Errorf("failed to relay screenshot to storage: %w", err)
	}

	if err := s.screenshots.PromoteStorageKey(ctx, screenshot.ID, key); err != nil {
		return err
	}

	metrics.ScreenshotRelayBytes.Observe(float64(len(data)))
	return nil
}

// Confirm lets the agent distinguish "server never got the bytes" from
// "server has them" after a network partition mid-upload. Idempotent once
// the key is final.
func (s *ScreenshotService) Confirm(ctx context.Context, screenshotID, userID uuid.UUID) error {
	screenshot, err := s.screenshots.GetByID(ctx, screenshotID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrScreenshotNotFound
	}
	if err != nil {
		return err
	}
	if screenshot.UserID != userID {
		return ErrForbidden
	}
	if !screenshot.Uploaded() {
		return ErrUploadNotReceived
	}
	return nil
}

func (s *ScreenshotService) readCapped(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload body: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrPayloadTooLarge
	}
	return data, nil
}
