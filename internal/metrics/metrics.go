package metrics

import (
	"sync"
)

// Metrics tracks pipeline counters
type Metrics struct {
	mu sync.RWMutex

	enqueuedJobs    int64
	startedJobs     int64
	completedJobs   int64
	failedJobs      int64
	sweptJobs       int64
	renderFallbacks int64
	schedulerTicks  int64
	tickPanics      int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncrementEnqueuedJobs increments the enqueued jobs counter
func (m *Metrics) IncrementEnqueuedJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueuedJobs++
}

// IncrementStartedJobs increments the counter of jobs handed to the pipeline
func (m *Metrics) IncrementStartedJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startedJobs++
}

// IncrementCompletedJobs increments the completed jobs counter
func (m *Metrics) IncrementCompletedJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completedJobs++
}

// IncrementFailedJobs increments the failed jobs counter
func (m *Metrics) IncrementFailedJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedJobs++
}

// AddSweptJobs adds n evicted jobs
func (m *Metrics) AddSweptJobs(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweptJobs += int64(n)
}

// IncrementRenderFallbacks counts a renderer failing over to the next one
func (m *Metrics) IncrementRenderFallbacks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renderFallbacks++
}

// IncrementSchedulerTicks counts scheduler ticks that found work
func (m *Metrics) IncrementSchedulerTicks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedulerTicks++
}

// IncrementTickPanics counts recovered scheduler panics
func (m *Metrics) IncrementTickPanics() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickPanics++
}

// GetSnapshot returns a snapshot of all metrics
func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int64{
		"enqueued_jobs":    m.enqueuedJobs,
		"started_jobs":     m.startedJobs,
		"completed_jobs":   m.completedJobs,
		"failed_jobs":      m.failedJobs,
		"swept_jobs":       m.sweptJobs,
		"render_fallbacks": m.renderFallbacks,
		"scheduler_ticks":  m.schedulerTicks,
		"tick_panics":      m.tickPanics,
	}
}
