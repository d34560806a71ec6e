package metrics

import (
	"sync"
	"testing"
)

func TestMetrics_IncrementEnqueuedJobs(t *testing.T) {
	m := NewMetrics()
	m.IncrementEnqueuedJobs()

	snapshot := m.GetSnapshot()
	if snapshot["enqueued_jobs"] != 1 {
		t.Errorf("expected enqueued_jobs 1, got %d", snapshot["enqueued_jobs"])
	}
}

func TestMetrics_AddSweptJobs(t *testing.T) {
	m := NewMetrics()
	m.AddSweptJobs(3)
	m.AddSweptJobs(0)

	snapshot := m.GetSnapshot()
	if snapshot["swept_jobs"] != 3 {
		t.Errorf("expected swept_jobs 3, got %d", snapshot["swept_jobs"])
	}
}

func TestMetrics_ConcurrentAccess(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementStartedJobs()
			m.IncrementCompletedJobs()
			m.IncrementRenderFallbacks()
		}()
	}

	wg.Wait()

	snapshot := m.GetSnapshot()
	if snapshot["started_jobs"] != 100 {
		t.Errorf("expected started_jobs 100, got %d", snapshot["started_jobs"])
	}
	if snapshot["completed_jobs"] != 100 {
		t.Errorf("expected completed_jobs 100, got %d", snapshot["completed_jobs"])
	}
	if snapshot["render_fallbacks"] != 100 {
		t.Errorf("expected render_fallbacks 100, got %d", snapshot["render_fallbacks"])
	}
}

func TestMetrics_GetSnapshot(t *testing.T) {
	m := NewMetrics()
	m.IncrementEnqueuedJobs()
	m.IncrementEnqueuedJobs()
	m.IncrementFailedJobs()
	m.IncrementSchedulerTicks()
	m.IncrementTickPanics()

	snapshot := m.GetSnapshot()

	expected := map[string]int64{
		"enqueued_jobs":   2,
		"completed_jobs":  0,
		"failed_jobs":     1,
		"scheduler_ticks": 1,
		"tick_panics":     1,
	}

	for key, expectedValue := range expected {
		if snapshot[key] != expectedValue {
			t.Errorf("expected %s %d, got %d", key, expectedValue, snapshot[key])
		}
	}
}
