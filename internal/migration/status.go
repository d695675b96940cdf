package migration

import (
	"sync"
	"time"

	"github.com/cacheshift/cacheshift/internal/metrics"
)

// MigrationStatus is a point-in-time snapshot of a run's progress.
type MigrationStatus struct {
	TotalKeys    int
	MigratedKeys int
	FailedKeys   int

	// CompletedBatches counts finished batches; batches complete in any
	// order, so this is a monotonic counter rather than a batch index.
	CompletedBatches int
	TotalBatches     int

	StartTime           time.Time
	EstimatedCompletion time.Time
	// RatePerSecond is keys per second since the run started.
	RatePerSecond float64

	Errors   []string
	Warnings []string
}

// batchResult is the message a worker sends after finishing one batch.
type batchResult struct {
	batchIndex int
	migrated   int
	failed     int
	errors     []string
	warnings   []string
}

// StatusTracker owns the shared progress record. Workers send batch
// results over a channel and a single aggregator goroutine is the only
// mutator, so readers can never observe a torn update.
type StatusTracker struct {
	updates chan batchResult
	done    chan struct{}

	mu     sync.RWMutex
	status MigrationStatus

	metrics *metrics.Metrics
}

// NewStatusTracker starts the aggregator for a run of totalKeys keys in
// totalBatches batches. The metrics collector may be nil.
func NewStatusTracker(totalKeys, totalBatches int, m *metrics.Metrics) *StatusTracker {
	t := &StatusTracker{
		updates: make(chan batchResult, 64),
		done:    make(chan struct{}),
		status: MigrationStatus{
			TotalKeys:    totalKeys,
			TotalBatches: totalBatches,
			StartTime:    time.Now(),
		},
		metrics: m,
	}

	if m != nil {
		m.BatchesTotal.Set(float64(totalBatches))
	}

	go t.run()
	return t
}

// Record reports a finished batch. Safe to call from any worker.
func (t *StatusTracker) Record(migrated, failed, batchIndex int, errors, warnings []string) {
	t.updates <- batchResult{
		batchIndex: batchIndex,
		migrated:   migrated,
		failed:     failed,
		errors:     errors,
		warnings:   warnings,
	}
}

// Close stops accepting updates and waits for the aggregator to drain.
func (t *StatusTracker) Close() {
	close(t.updates)
	<-t.done
}

// Snapshot returns a copy of the current status.
func (t *StatusTracker) Snapshot() MigrationStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := t.status
	snapshot.Errors = append([]string(nil), t.status.Errors...)
	snapshot.Warnings = append([]string(nil), t.status.Warnings...)
	return snapshot
}

func (t *StatusTracker) run() {
	defer close(t.done)

	for result := range t.updates {
		t.mu.Lock()

		t.status.MigratedKeys += result.migrated
		t.status.FailedKeys += result.failed
		t.status.CompletedBatches++
		t.status.Errors = append(t.status.Errors, result.errors...)
		t.status.Warnings = append(t.status.Warnings, result.warnings...)

		elapsed := time.Since(t.status.StartTime).Seconds()
		if elapsed > 0 {
			t.status.RatePerSecond = float64(t.status.MigratedKeys) / elapsed
		}
		if t.status.RatePerSecond > 0 {
			remaining := t.status.TotalKeys - t.status.MigratedKeys - t.status.FailedKeys
			eta := time.Duration(float64(remaining)/t.status.RatePerSecond) * time.Second
			t.status.EstimatedCompletion = time.Now().Add(eta)
		}

		rate := t.status.RatePerSecond
		t.mu.Unlock()

		if t.metrics != nil {
			t.metrics.KeysMigratedTotal.Add(float64(result.migrated))
			t.metrics.KeysFailedTotal.Add(float64(result.failed))
			t.metrics.BatchesDone.Inc()
			t.metrics.MigrationRate.Set(rate)
		}
	}
}
