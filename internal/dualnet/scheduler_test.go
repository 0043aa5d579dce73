package dualnet

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFeatures() []BoardFeatures {
	return []BoardFeatures{NewBoardFeatures()}
}

func TestSchedulerDispatchesExactBatchSizeToEngine(t *testing.T) {
	engine := newFakeEngine(4, 0.5)
	sched := NewScheduler(engine, nil)

	for i := 0; i < 4; i++ {
		sched.registerClient(true)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.submit(testFeatures())
		}()
	}
	wg.Wait()

	require.Equal(t, 1, engine.batchesRun())

	for i := 0; i < 4; i++ {
		sched.unregisterClient(true)
	}
}

func TestSchedulerPadsShortBatchesWithNoLiveClients(t *testing.T) {
	engine := newFakeEngine(8, 0.5)
	sched := NewScheduler(engine, nil)

	// No clients are registered, so the census heuristic never blocks:
	// a lone submission must still dispatch rather than hang forever.
	result := sched.submit(testFeatures())
	assert.Len(t, result.Policies, 1)
	assert.Len(t, result.Values, 1)
	assert.Equal(t, 1, engine.batchesRun())
}

func TestSchedulerWaitsForCountedClientsBeforeDispatchingAShortBatch(t *testing.T) {
	engine := newFakeEngine(8, 0.5)
	sched := NewScheduler(engine, nil)

	sched.registerClient(true)
	sched.registerClient(true)

	done := make(chan Result, 1)
	go func() { done <- sched.submit(testFeatures()) }()

	select {
	case <-done:
		t.Fatalf("scheduler dispatched a short batch while a registered client had not submitted")
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, 0, engine.batchesRun())

	// The second registered client deregisters without submitting,
	// which should unblock the short batch still pending.
	sched.unregisterClient(true)

	select {
	case r := <-done:
		assert.Len(t, r.Policies, 1)
	case <-time.After(time.Second):
		t.Fatalf("scheduler never dispatched after the peer client deregistered")
	}
	require.Equal(t, 1, engine.batchesRun())

	sched.unregisterClient(true)
}

func TestSchedulerDeliversOneResultPerSubmission(t *testing.T) {
	engine := newFakeEngine(4, 0.5)
	sched := NewScheduler(engine, nil)

	sched.registerClient(true)
	sched.registerClient(true)
	sched.registerClient(true)
	sched.registerClient(true)

	n := 20
	results := make([]chan Result, n)
	for i := 0; i < n; i++ {
		results[i] = make(chan Result, 1)
		go func(i int) { results[i] <- sched.submit(testFeatures()) }(i)
	}

	for i := 0; i < n; i++ {
		r := <-results[i]
		require.Len(t, r.Policies, 1)
		require.Len(t, r.Values, 1)
	}

	for i := 0; i < 4; i++ {
		sched.unregisterClient(true)
	}
}

func TestSchedulerSubmitPanicsOnOutOfRangeSize(t *testing.T) {
	engine := newFakeEngine(4, 0.5)
	sched := NewScheduler(engine, nil)

	assert.Panics(t, func() { sched.submit(nil) })
	assert.Panics(t, func() { sched.submit(make([]BoardFeatures, 5)) })
}

func TestSchedulerStatsTracksAverageBatchSize(t *testing.T) {
	engine := newFakeEngine(4, 0.5)
	sched := NewScheduler(engine, nil)

	for i := 0; i < 8; i++ {
		sched.registerClient(true)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.submit(testFeatures())
		}()
	}
	wg.Wait()

	stats := sched.Stats()
	require.Equal(t, 2, stats.Runs)
	require.Equal(t, 8, stats.RunSum)
	assert.Equal(t, float64(4), stats.AverageBatchSize())

	for i := 0; i < 8; i++ {
		sched.unregisterClient(true)
	}
}

func TestSchedulerAverageBatchSizeZeroBeforeAnyRun(t *testing.T) {
	var stats SchedulerStats
	assert.Equal(t, float64(0), stats.AverageBatchSize())
}
