package monitoring

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shorts-stack/shared/logging"
)

func TestMonitorLifecycle(t *testing.T) {
	m := NewMonitor(logging.Discard())

	assert.True(t, m.IsHealthy(), "no runs yet counts as healthy")
	assert.Equal(t, "No runs yet", m.GetStatusSummary())

	m.RecordSuccess("processed 2 videos", time.Second)
	assert.True(t, m.IsHealthy())
	assert.True(t, strings.HasPrefix(m.GetStatusSummary(), "✅ Last run"))

	m.RecordPartialFailure(errors.New("upload failed"), time.Second)
	assert.True(t, m.IsHealthy(), "partial failures keep health")

	m.RecordCriticalFailure(errors.New("store unreadable"), time.Second)
	assert.False(t, m.IsHealthy())

	snap := m.Snapshot()
	assert.Equal(t, 2, snap.Runs)
	assert.Equal(t, 1, snap.Failures)
	assert.Equal(t, "store unreadable", snap.LastError)
	require.NotNil(t, snap.LastRun)
}

func TestStatusEndpoint(t *testing.T) {
	m := NewMonitor(logging.Discard())
	app := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	server := NewHealthServer(m, "127.0.0.1:0", app, logging.Discard())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.Healthy)

	m.RecordCriticalFailure(errors.New("boom"), 0)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
