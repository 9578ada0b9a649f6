package services

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracklight/agent-core/internal/blobstore"
	"github.com/tracklight/agent-core/internal/models"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

type screenshotFixture struct {
	svc         *ScreenshotService
	screenshots *fakeScreenshotRepo
	entries     *fakeEntryRepo
	store       *httptest.Server
	received    map[string][]byte
	deviceID    uuid.UUID
	userID      uuid.UUID
	entry       *models.TimeEntry
}

func newScreenshotFixture(t *testing.T) *screenshotFixture {
	t.Helper()

	f := &screenshotFixture{
		screenshots: newFakeScreenshotRepo(),
		entries:     newFakeEntryRepo(),
		received:    make(map[string][]byte),
		deviceID:    uuid.New(),
		userID:      uuid.New(),
	}

	// Stand-in blob store: accepts signed PUTs and remembers the bodies.
	f.store = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var buf bytes.Buffer
		buf.ReadFrom(r.Body)
		f.received[r.URL.Path] = buf.Bytes()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(f.store.Close)

	f.entry = &models.TimeEntry{
		ID:             uuid.New(),
		UserID:         f.userID,
		ProjectID:      uuid.New(),
		Status:         models.EntryRunning,
		StartedAt:      time.Now(),
		LastActivityAt: time.Now(),
	}
	require.NoError(t, f.entries.Create(context.Background(), f.entry))

	f.svc = NewScreenshotService(
		f.screenshots,
		f.entries,
		blobstore.NewPresigner(f.store.URL, "blob-secret"),
		blobstore.NewClient(5*time.Second),
		1024, // small cap keeps the oversize test cheap
		5*time.Minute,
	)
	return f
}

func (f *screenshotFixture) presign(t *testing.T) *PresignResult {
	t.Helper()
	result, err := f.svc.Presign(context.Background(), f.deviceID, f.userID, f.entry.ID, time.Now())
	require.NoError(t, err)
	return result
}

func TestScreenshot_FullPipeline(t *testing.T) {
	f := newScreenshotFixture(t)
	ctx := context.Background()

	result := f.presign(t)
	assert.Contains(t, result.UploadPath, result.ScreenshotID.String())

	// Confirm before upload reports "not received".
	err := f.svc.Confirm(ctx, result.ScreenshotID, f.userID)
	assert.ErrorIs(t, err, ErrUploadNotReceived)

	payload := append(append([]byte{}, pngHeader...), []byte("fake image data")...)
	err = f.svc.Upload(ctx, result.ScreenshotID, f.userID, "image/png", bytes.NewReader(payload))
	require.NoError(t, err)

	// The bytes reached the store under the final key.
	stored, err := f.screenshots.GetByID(ctx, result.ScreenshotID)
	require.NoError(t, err)
	assert.True(t, stored.Uploaded())
	assert.Equal(t, payload, f.received["/"+stored.StorageKey])

	// Confirm is idempotent once the key is final.
	require.NoError(t, f.svc.Confirm(ctx, result.ScreenshotID, f.userID))
	require.NoError(t, f.svc.Confirm(ctx, result.ScreenshotID, f.userID))
}

func TestScreenshot_MagicByteMismatch(t *testing.T) {
	f := newScreenshotFixture(t)
	ctx := context.Background()
	result := f.presign(t)

	// Declared PNG, actual JPEG bytes.
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3}
	err := f.svc.Upload(ctx, result.ScreenshotID, f.userID, "image/png", bytes.NewReader(payload))
	assert.ErrorIs(t, err, ErrInvalidFormat)

	// Nothing reached the store and confirm still reports "not received".
	assert.Empty(t, f.received)
	assert.ErrorIs(t, f.svc.Confirm(ctx, result.ScreenshotID, f.userID), ErrUploadNotReceived)
}

func TestScreenshot_UnsupportedContentType(t *testing.T) {
	f := newScreenshotFixture(t)
	result := f.presign(t)

	err := f.svc.Upload(context.Background(), result.ScreenshotID, f.userID, "application/pdf", bytes.NewReader(pngHeader))
	assert.ErrorIs(t, err, ErrUnsupportedContentType)
}

func TestScreenshot_PayloadTooLarge(t *testing.T) {
	f := newScreenshotFixture(t)
	result := f.presign(t)

	payload := append(append([]byte{}, pngHeader...), make([]byte, 2048)...)
	err := f.svc.Upload(context.Background(), result.ScreenshotID, f.userID, "image/png", bytes.NewReader(payload))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Empty(t, f.received)
}

func TestScreenshot_ForeignCallerForbidden(t *testing.T) {
	f := newScreenshotFixture(t)
	ctx := context.Background()
	result := f.presign(t)

	err := f.svc.Upload(ctx, result.ScreenshotID, uuid.New(), "image/png", bytes.NewReader(pngHeader))
	assert.ErrorIs(t, err, ErrForbidden)

	err = f.svc.Confirm(ctx, result.ScreenshotID, uuid.New())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestScreenshot_PresignRequiresOwnedEntry(t *testing.T) {
	f := newScreenshotFixture(t)
	ctx := context.Background()

	_, err := f.svc.Presign(ctx, f.deviceID, f.userID, uuid.New(), time.Now())
	assert.ErrorIs(t, err, ErrEntryNotFound)

	_, err = f.svc.Presign(ctx, f.deviceID, uuid.New(), f.entry.ID, time.Now())
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestScreenshot_FailedRelayStaysPending(t *testing.T) {
	f := newScreenshotFixture(t)
	ctx := context.Background()
	result := f.presign(t)

	// Kill the store before the relay.
	f.store.Close()

	payload := append(append([]byte{}, pngHeader...), []byte("data")...)
	err := f.svc.Upload(ctx, result.ScreenshotID, f.userID, "image/png", bytes.NewReader(payload))
	require.Error(t, err)

	// The record is still pending so the agent's confirm-then-retry loop
	// works.
	assert.ErrorIs(t, f.svc.Confirm(ctx, result.ScreenshotID, f.userID), ErrUploadNotReceived)
}
