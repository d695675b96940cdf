package migration

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTrackerAggregates(t *testing.T) {
	tracker := NewStatusTracker(100, 4, nil)

	tracker.Record(25, 0, 0, nil, nil)
	tracker.Record(20, 5, 1, []string{`key "user:7": write refused`}, nil)
	tracker.Record(25, 0, 3, nil, []string{"slow batch"})
	tracker.Close()

	status := tracker.Snapshot()
	assert.Equal(t, 100, status.TotalKeys)
	assert.Equal(t, 70, status.MigratedKeys)
	assert.Equal(t, 5, status.FailedKeys)
	assert.Equal(t, 3, status.CompletedBatches)
	assert.Equal(t, 4, status.TotalBatches)
	assert.Equal(t, []string{`key "user:7": write refused`}, status.Errors)
	assert.Equal(t, []string{"slow batch"}, status.Warnings)
	assert.False(t, status.StartTime.IsZero())
	assert.Greater(t, status.RatePerSecond, 0.0)
}

func TestStatusTrackerConcurrentRecords(t *testing.T) {
	const workers = 8
	const batchesPerWorker = 50

	tracker := NewStatusTracker(workers*batchesPerWorker*10, workers*batchesPerWorker, nil)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < batchesPerWorker; i++ {
				tracker.Record(9, 1, w*batchesPerWorker+i,
					[]string{fmt.Sprintf("err-%d-%d", w, i)}, nil)
			}
		}(w)
	}
	wg.Wait()
	tracker.Close()

	status := tracker.Snapshot()
	assert.Equal(t, workers*batchesPerWorker*9, status.MigratedKeys)
	assert.Equal(t, workers*batchesPerWorker, status.FailedKeys)
	assert.Equal(t, workers*batchesPerWorker, status.CompletedBatches)
	assert.Len(t, status.Errors, workers*batchesPerWorker)
}

func TestStatusTrackerSnapshotIsACopy(t *testing.T) {
	tracker := NewStatusTracker(10, 1, nil)
	tracker.Record(5, 5, 0, []string{"one"}, nil)
	tracker.Close()

	first := tracker.Snapshot()
	require.Len(t, first.Errors, 1)

	first.Errors[0] = "mutated"
	first.MigratedKeys = 999

	second := tracker.Snapshot()
	assert.Equal(t, "one", second.Errors[0])
	assert.Equal(t, 5, second.MigratedKeys)
}
