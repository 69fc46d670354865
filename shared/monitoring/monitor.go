package monitoring

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Monitor keeps the outcome of the most recent scheduler pass.
type Monitor struct {
	mu             sync.RWMutex
	log            logrus.FieldLogger
	lastRunSuccess bool
	lastRunTime    time.Time
	lastSummary    string
	lastError      string
	runs           int
	failures       int
}

// Snapshot is the JSON view of a Monitor.
type Snapshot struct {
	Healthy     bool       `json:"healthy"`
	Summary     string     `json:"summary"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Runs        int        `json:"runs"`
	Failures    int        `json:"failures"`
	LastOutcome string     `json:"last_outcome,omitempty"`
}

func NewMonitor(log logrus.FieldLogger) *Monitor {
	return &Monitor{log: log}
}

func (m *Monitor) RecordSuccess(summary string, duration time.Duration) {
	m.mu.Lock()
	m.lastRunSuccess = true
	m.lastRunTime = time.Now()
	m.lastSummary = summary
	m.lastError = ""
	m.runs++
	m.mu.Unlock()

	m.log.Infof("✅ Run completed successfully - %s (took %v)", summary, duration)
}

func (m *Monitor) RecordPartialFailure(err error, duration time.Duration) {
	// Partial failures leave the health status alone.
	m.log.Warnf("⚠️  PARTIAL FAILURE: %s (Duration: %v)", err.Error(), duration)
}

func (m *Monitor) RecordCriticalFailure(err error, duration time.Duration) {
	m.mu.Lock()
	m.lastRunSuccess = false
	m.lastRunTime = time.Now()
	m.lastError = err.Error()
	m.runs++
	m.failures++
	m.mu.Unlock()

	m.log.Errorf("🚨 CRITICAL FAILURE: %s (Duration: %v)", err.Error(), duration)
}

func (m *Monitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastRunTime.IsZero() {
		return true // No runs yet, assume healthy
	}
	return m.lastRunSuccess
}

func (m *Monitor) GetStatusSummary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastRunTime.IsZero() {
		return "No runs yet"
	}
	if m.lastRunSuccess {
		return fmt.Sprintf("✅ Last run: %s", m.lastRunTime.Format("Jan 2 15:04:05"))
	}
	return fmt.Sprintf("❌ Last run failed: %s", m.lastRunTime.Format("Jan 2 15:04:05"))
}

func (m *Monitor) Snapshot() Snapshot {
	healthy := m.IsHealthy()
	summary := m.GetStatusSummary()

	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Healthy:   healthy,
		Summary:   summary,
		LastError: m.lastError,
		Runs:      m.runs,
		Failures:  m.failures,
	}
	if !m.lastRunTime.IsZero() {
		last := m.lastRunTime
		snap.LastRun = &last
		if m.lastRunSuccess {
			snap.LastOutcome = m.lastSummary
		}
	}
	return snap
}
