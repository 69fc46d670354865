package shortspublisher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shorts-stack/internal/models"
	"shorts-stack/shared/ai"
	"shorts-stack/shared/logging"
)

type fakeCoach struct {
	ideas []string
	err   error
}

func (f *fakeCoach) Suggest(_ context.Context, video *models.VideoItem) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if video.Analytics == nil {
		return nil, ai.ErrNotPosted
	}
	return f.ideas, nil
}

type apiEnv struct {
	agent    *PublisherAgent
	api      *API
	handler  http.Handler
	triggers int
	stopped  bool
}

func newAPIEnv(t *testing.T, videos ...models.VideoItem) *apiEnv {
	t.Helper()
	agent, _ := newTestAgent(t)
	agent.processor.now = func() time.Time { return fixedNow }
	require.NoError(t, agent.Store().Write(&models.VideoStore{Videos: videos}))

	env := &apiEnv{agent: agent}
	env.api = NewAPI(agent, func() bool {
		if env.stopped {
			return false
		}
		env.triggers++
		return true
	}, logging.Component(logging.Discard(), "api"))
	env.api.now = func() time.Time { return fixedNow }
	env.handler = env.api.Handler()
	return env
}

func (e *apiEnv) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestHealth(t *testing.T) {
	draft := scheduled("d1", "2000-01-01T00:00:00Z")
	draft.Status = models.StatusDraft
	env := newAPIEnv(t, scheduled("v1", "2999-01-01T00:00:00Z"), scheduled("v2", "2999-01-01T00:00:00Z"), draft)

	rec, body := env.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 3, body["videos"])
	assert.EqualValues(t, 2, body["scheduled"])
	assert.Equal(t, fixedNow.Format(timestampLayout), body["timestamp"])
}

func TestHealthCorruptStore(t *testing.T) {
	env := newAPIEnv(t)
	require.NoError(t, os.WriteFile(env.agent.Store().Path(), []byte("{"), 0644))

	rec, body := env.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body["error"], "corrupt video store")
}

func TestListVideos(t *testing.T) {
	env := newAPIEnv(t, scheduled("v1", "2999-01-01T00:00:00Z"))

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc models.VideoStore
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Len(t, doc.Videos, 1)
	assert.Equal(t, "v1", doc.Videos[0].ID)
	assert.Empty(t, doc.History)
}

func TestScheduleRun(t *testing.T) {
	env := newAPIEnv(t)

	rec, body := env.do(t, http.MethodPost, "/schedule/run")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, 1, env.triggers)

	env.stopped = true
	rec, _ = env.do(t, http.MethodPost, "/schedule/run")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 1, env.triggers)
}

func TestScheduleRunRejectsGet(t *testing.T) {
	env := newAPIEnv(t)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/schedule/run", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMarkPostedEndpoint(t *testing.T) {
	env := newAPIEnv(t, scheduled("v1", "2999-01-01T00:00:00Z"))

	rec, body := env.do(t, http.MethodPost, "/videos/v1/mark-posted")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "posted", body["status"])
	video, ok := body["video"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v1", video["id"])
	assert.Equal(t, "posted", video["status"])
	assert.NotNil(t, video["analytics"])

	rec, body = env.do(t, http.MethodPost, "/videos/nope/mark-posted")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "not_found", "video_id": "nope"}, body)
}

func TestCoachEndpoint(t *testing.T) {
	posted := scheduled("p1", "2000-01-01T00:00:00Z")
	posted.Status = models.StatusPosted
	posted.PublishedAt = strPtr("2000-01-01T00:00:00Z")
	posted.Analytics = &models.VideoAnalytics{RetentionRate: 70}
	env := newAPIEnv(t, posted, scheduled("s1", "2999-01-01T00:00:00Z"))

	rec, _ := env.do(t, http.MethodPost, "/videos/p1/coach")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env.api.coach = &fakeCoach{ideas: []string{"Open on the result"}}

	rec, body := env.do(t, http.MethodPost, "/videos/p1/coach")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", body["video_id"])
	assert.Equal(t, []any{"Open on the result"}, body["ideas"])

	rec, _ = env.do(t, http.MethodPost, "/videos/s1/coach")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, body = env.do(t, http.MethodPost, "/videos/x/coach")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not_found", body["status"])

	env.api.coach = &fakeCoach{err: errors.New("quota")}
	rec, _ = env.do(t, http.MethodPost, "/videos/p1/coach")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
