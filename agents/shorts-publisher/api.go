package shortspublisher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"shorts-stack/internal/models"
	"shorts-stack/shared/ai"
	"shorts-stack/shared/storage"
)

// Coach suggests follow-up ideas for a posted item.
type Coach interface {
	Suggest(ctx context.Context, video *models.VideoItem) ([]string, error)
}

// API serves the publisher's HTTP endpoints.
type API struct {
	store     *storage.VideoStore
	processor *Processor
	trigger   func() bool
	coach     Coach
	now       func() time.Time
	log       *logrus.Entry
}

// NewAPI wires the endpoints to agent. trigger queues an asynchronous pass and
// reports false once the loop has stopped.
func NewAPI(agent *PublisherAgent, trigger func() bool, log *logrus.Entry) *API {
	api := &API{
		store:     agent.Store(),
		processor: agent.processor,
		trigger:   trigger,
		now:       time.Now,
		log:       log,
	}
	if coach := agent.Coach(); coach != nil {
		api.coach = coach
	}
	return api
}

// Handler returns the routed, request-logging handler.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /videos", a.handleVideos)
	mux.HandleFunc("POST /schedule/run", a.handleRun)
	mux.HandleFunc("POST /videos/{id}/mark-posted", a.handleMarkPosted)
	mux.HandleFunc("POST /videos/{id}/coach", a.handleCoach)
	return a.logRequests(mux)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	doc, err := a.store.Read()
	if err != nil {
		a.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"videos":    len(doc.Videos),
		"scheduled": doc.CountByStatus(models.StatusScheduled),
		"timestamp": a.now().UTC().Format(timestampLayout),
	})
}

func (a *API) handleVideos(w http.ResponseWriter, r *http.Request) {
	doc, err := a.store.Read()
	if err != nil {
		a.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handleRun(w http.ResponseWriter, r *http.Request) {
	if !a.trigger() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "scheduler is shutting down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

func (a *API) handleMarkPosted(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Uploads started here must not die with the client connection.
	video, found, err := a.processor.MarkPosted(context.WithoutCancel(r.Context()), id)
	if err != nil {
		a.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, map[string]string{"status": "not_found", "video_id": id})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "posted", "video": video})
}

func (a *API) handleCoach(w http.ResponseWriter, r *http.Request) {
	if a.coach == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "coaching requires GEMINI_API_KEY"})
		return
	}

	id := r.PathValue("id")
	doc, err := a.store.Read()
	if err != nil {
		a.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	video, ok := doc.FindVideo(id)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "not_found", "video_id": id})
		return
	}

	ideas, err := a.coach.Suggest(r.Context(), video)
	switch {
	case errors.Is(err, ai.ErrNotPosted):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "video_id": id})
		return
	case err != nil:
		a.fail(w, r, http.StatusBadGateway, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"video_id": id, "ideas": ideas})
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	a.log.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		a.log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("Handled request")
	})
}
