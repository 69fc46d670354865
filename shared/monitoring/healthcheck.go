package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthServer owns the HTTP listener: it serves /status from the monitor and
// delegates every other path to the application handler.
type HealthServer struct {
	monitor *Monitor
	log     logrus.FieldLogger
	server  *http.Server
}

func NewHealthServer(monitor *Monitor, addr string, app http.Handler, log logrus.FieldLogger) *HealthServer {
	h := &HealthServer{
		monitor: monitor,
		log:     log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", h.statusHandler)
	if app != nil {
		mux.Handle("/", app)
	}

	h.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return h
}

// Handler exposes the composed mux, mainly for tests.
func (h *HealthServer) Handler() http.Handler {
	return h.server.Handler
}

// Start binds the listener and serves in the background. Bind errors are
// returned synchronously.
func (h *HealthServer) Start() error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return err
	}

	h.log.Infof("HTTP server listening on %s", ln.Addr())
	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.WithError(err).Error("HTTP server error")
		}
	}()
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

func (h *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if !h.monitor.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(h.monitor.Snapshot())
}
