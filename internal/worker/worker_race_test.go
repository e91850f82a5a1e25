package worker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestWorkerStateConsistency teste la cohérence de l'état du worker
func TestWorkerStateConsistency(t *testing.T) {
	worker := &Worker{status: "idle"}

	const numGoroutines = 100
	const numOperations = 1000

	var wg sync.WaitGroup
	var inconsistencies int64

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()

			for j := 0; j < numOperations; j++ {
				worker.setState("busy", fmt.Sprintf("job-%d-%d", g, j))

				status, currentJobID := worker.getState()
				if status == "busy" && currentJobID == "" {
					atomic.AddInt64(&inconsistencies, 1)
				}

				worker.setState("idle", "")

				status, currentJobID = worker.getState()
				if status == "idle" && currentJobID != "" {
					atomic.AddInt64(&inconsistencies, 1)
				}
			}
		}(i)
	}

	wg.Wait()
	assert.Equal(t, int64(0), inconsistencies, "Detected state inconsistencies")
}

// TestWorkerStatisticsAtomic teste que les statistiques sont thread-safe
func TestWorkerStatisticsAtomic(t *testing.T) {
	worker := &Worker{status: "idle"}

	const numGoroutines = 50
	const numIncrements = 1000

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for j := 0; j < numIncrements; j++ {
				atomic.AddInt64(&worker.jobsTotal, 1)
				switch j % 4 {
				case 0, 1:
					atomic.AddInt64(&worker.jobsSucceeded, 1)
				case 2:
					atomic.AddInt64(&worker.jobsFailedProcessing, 1)
				case 3:
					atomic.AddInt64(&worker.jobsFailedProcessing, 1)
					atomic.AddInt64(&worker.jobsFailedDelivery, 1)
				}
			}
		}()
	}

	wg.Wait()

	stats := worker.GetStats()
	expectedTotal := int64(numGoroutines * numIncrements)
	assert.Equal(t, expectedTotal, stats.JobsTotal)
	assert.Equal(t, expectedTotal/2, stats.JobsSucceeded)
	assert.Equal(t, expectedTotal/2, stats.JobsFailedProcessing)
	assert.Equal(t, expectedTotal/4, stats.JobsFailedDelivery)
	assert.False(t, stats.Running)
}

// BenchmarkWorkerStateOperations benchmark les opérations d'état
func BenchmarkWorkerStateOperations(b *testing.B) {
	worker := &Worker{status: "idle"}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			worker.setState("busy", "job-1")
			worker.getState()
			worker.setState("idle", "")
		}
	})
}
