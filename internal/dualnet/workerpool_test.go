package dualnet

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingWorkerContext struct {
	runs   *atomic.Int64
	closed *atomic.Bool
}

func (c *countingWorkerContext) Run(features []BoardFeatures) ([]Policy, []float32) {
	c.runs.Add(1)
	policies := make([]Policy, len(features))
	values := make([]float32, len(features))
	return policies, values
}

func (c *countingWorkerContext) Close() { c.closed.Store(true) }

func TestWorkerPoolRunsAcrossMultipleWorkers(t *testing.T) {
	runs := new(atomic.Int64)
	closed := new(atomic.Bool)
	newContext := func(deviceID int) (WorkerContext, error) {
		return &countingWorkerContext{runs: runs, closed: closed}, nil
	}

	pool := NewWorkerPool(2, []int{0, 1}, 1, newContext, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Run(make([]BoardFeatures, 2))
		}()
	}
	wg.Wait()
	pool.Close()

	require.EqualValues(t, 10, runs.Load())
	require.True(t, closed.Load())
}

func TestNewWorkerPoolPanicsOnContextBuildError(t *testing.T) {
	newContext := func(deviceID int) (WorkerContext, error) {
		return nil, errBoom
	}
	require.Panics(t, func() { NewWorkerPool(2, []int{0}, 1, newContext, nil) })
}

var errBoom = &poolTestError{}

type poolTestError struct{}

func (*poolTestError) Error() string { return "boom" }
