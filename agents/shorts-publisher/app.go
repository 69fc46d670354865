package shortspublisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"shorts-stack/internal/models"
	"shorts-stack/shared/config"
	"shorts-stack/shared/logging"
	"shorts-stack/shared/monitoring"
	"shorts-stack/shared/scheduler"
)

const shutdownGrace = 5 * time.Second

// ErrAlreadyRunning is returned when another process holds the instance lock.
var ErrAlreadyRunning = errors.New("another shorts-publisher instance is running")

// App owns everything a running publisher needs: the agent, its schedule loop,
// the HTTP server and the single-instance lock.
type App struct {
	config    *config.Config
	log       *logrus.Entry
	agent     *PublisherAgent
	monitor   *monitoring.Monitor
	scheduler *scheduler.Scheduler
	server    *monitoring.HealthServer
	lock      *flock.Flock
}

func NewApp(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	agent := NewPublisherAgent(cfg, logging.Component(logger, "publisher"))
	if err := agent.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize agent: %w", err)
	}

	monitor := monitoring.NewMonitor(logging.Component(logger, "monitor"))
	sched := scheduler.New(cfg, agent, monitor, logging.Component(logger, "scheduler"))
	api := NewAPI(agent, sched.Trigger, logging.Component(logger, "api"))

	return &App{
		config:    cfg,
		log:       logging.Component(logger, "app"),
		agent:     agent,
		monitor:   monitor,
		scheduler: sched,
		server:    monitoring.NewHealthServer(monitor, cfg.API.Addr(), api.Handler(), logging.Component(logger, "http")),
		lock:      flock.New(cfg.Store.DataFile + ".lock"),
	}, nil
}

// Agent exposes the underlying agent.
func (a *App) Agent() *PublisherAgent {
	return a.agent
}

// Run serves the API and runs the schedule loop until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.withLock(func() error {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("failed to start HTTP server on %s: %w", a.config.API.Addr(), err)
		}

		schedErr := a.scheduler.Start(ctx)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.log.WithError(err).Warn("HTTP server did not shut down cleanly")
		}

		if schedErr != nil && !errors.Is(schedErr, context.Canceled) {
			return schedErr
		}
		a.log.Info("Shutdown complete")
		return nil
	})
}

// RunOnce runs a single pass under the instance lock.
func (a *App) RunOnce(ctx context.Context) (*models.PassResult, error) {
	var result *models.PassResult
	err := a.withLock(func() error {
		var err error
		result, err = a.agent.Process(ctx)
		return err
	})
	return result, err
}

// MarkPosted posts one item under the instance lock.
func (a *App) MarkPosted(ctx context.Context, id string) (models.VideoItem, bool, error) {
	var (
		video models.VideoItem
		found bool
	)
	err := a.withLock(func() error {
		var err error
		video, found, err = a.agent.MarkPosted(ctx, id)
		return err
	})
	return video, found, err
}

func (a *App) withLock(fn func() error) error {
	locked, err := a.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire %s: %w", a.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("%w (lock %s held)", ErrAlreadyRunning, a.lock.Path())
	}
	defer func() {
		if err := a.lock.Unlock(); err != nil {
			a.log.WithError(err).Warn("Failed to release instance lock")
		}
	}()

	return fn()
}
