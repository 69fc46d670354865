package shortspublisher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shorts-stack/internal/models"
	"shorts-stack/shared/logging"
	"shorts-stack/shared/storage"
)

func TestAppRunProcessesAndHoldsLock(t *testing.T) {
	cfg := testConfig(t)
	store := storage.NewVideoStore(cfg.Store.DataFile)
	require.NoError(t, store.Write(&models.VideoStore{Videos: []models.VideoItem{
		scheduled("v1", "2000-01-01T00:00:00Z"),
	}}))

	app, err := NewApp(cfg, logging.Discard())
	require.NoError(t, err)
	other, err := NewApp(cfg, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	// The startup pass posts the due item.
	require.Eventually(t, func() bool {
		doc, err := store.Read()
		return err == nil && doc.Videos[0].Status == models.StatusPosted
	}, 5*time.Second, 20*time.Millisecond)

	_, err = other.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	_, _, err = other.MarkPosted(context.Background(), "v1")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	result, err := other.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Processed)
}

func TestAppMarkPosted(t *testing.T) {
	cfg := testConfig(t)
	app, err := NewApp(cfg, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, app.Agent().Store().Write(&models.VideoStore{Videos: []models.VideoItem{
		scheduled("v1", "2999-01-01T00:00:00Z"),
	}}))

	video, found, err := app.MarkPosted(context.Background(), "v1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.StatusPosted, video.Status)

	_, found, err = app.MarkPosted(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}
