package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"shorts-stack/shared/config"
	"shorts-stack/shared/monitoring"
)

// Metrics defines the common interface for agent metrics
type Metrics interface {
	// GetSummary returns a human-readable summary of the run
	GetSummary() string
}

// AgentEvents provides callbacks for monitoring agent execution
type AgentEvents struct {
	OnSuccess         func(metrics Metrics, duration time.Duration)
	OnPartialFailure  func(err error, duration time.Duration)
	OnCriticalFailure func(err error, duration time.Duration)
}

// Agent defines the interface that all agents must implement
type Agent interface {
	Name() string
	RunOnce(ctx context.Context, events *AgentEvents) error
	Initialize() error
}

// Scheduler runs an agent on a cron schedule and on demand.
type Scheduler struct {
	schedule string
	monitor  *monitoring.Monitor
	agent    Agent
	cron     *cron.Cron
	log      *logrus.Entry

	mu       sync.Mutex
	baseCtx  context.Context
	stopped  bool
	inflight sync.WaitGroup
}

func New(cfg *config.Config, agent Agent, monitor *monitoring.Monitor, log *logrus.Entry) *Scheduler {
	cronLog := cron.PrintfLogger(log)
	return &Scheduler{
		schedule: cfg.Schedule,
		monitor:  monitor,
		agent:    agent,
		log:      log,
		baseCtx:  context.Background(),
		// Prevent overlapping runs
		cron: cron.New(
			cron.WithParser(config.ScheduleParser),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
	}
}

// Start runs one pass immediately, then on the configured schedule until ctx is
// cancelled. It returns after the in-flight and triggered passes have finished.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Errorf("Error running scheduled job for %s: %v", s.agent.Name(), err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.Trigger()

	s.log.Infof("Scheduler started for %s with schedule: %s", s.agent.Name(), s.schedule)
	s.cron.Start()

	// Keep the scheduler running indefinitely until context is cancelled
	<-ctx.Done()
	s.log.Infof("Scheduler stopping for %s", s.agent.Name())

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.inflight.Wait()

	s.log.Infof("Scheduler stopped for %s", s.agent.Name())
	return ctx.Err()
}

// Trigger queues one asynchronous pass. It returns false once the scheduler
// has been stopped.
func (s *Scheduler) Trigger() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}

	ctx := s.baseCtx
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.RunOnce(ctx); err != nil {
			s.log.Errorf("Error running triggered job for %s: %v", s.agent.Name(), err)
		}
	}()
	return true
}

// Wait blocks until every triggered pass has returned.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

// RunOnce runs one pass and records its outcome on the monitor. The returned
// error is already recorded; callers only log it.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	name := s.agent.Name()
	log := s.log.WithField("agent", name)
	start := time.Now()

	events := &AgentEvents{
		OnSuccess: func(metrics Metrics, duration time.Duration) {
			log.WithField("duration_ms", duration.Milliseconds()).Debugf("Pass finished: %s", metrics.GetSummary())
			s.monitor.RecordSuccess(metrics.GetSummary(), duration)
		},
		OnPartialFailure: func(err error, duration time.Duration) {
			s.monitor.RecordPartialFailure(fmt.Errorf("%s partial failure: %w", name, err), duration)
		},
		OnCriticalFailure: func(err error, duration time.Duration) {
			s.monitor.RecordCriticalFailure(fmt.Errorf("%s critical failure: %w", name, err), duration)
		},
	}

	if err := s.agent.RunOnce(ctx, events); err != nil {
		s.monitor.RecordCriticalFailure(fmt.Errorf("%s pass failed: %w", name, err), time.Since(start))
		return fmt.Errorf("%s pass failed: %w", name, err)
	}
	return nil
}
