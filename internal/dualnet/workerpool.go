package dualnet

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// workerPollTimeout bounds how long a worker blocks on the shared queue
// before checking whether it should shut down. It only bounds shutdown
// latency, never request latency (§5, "Cancellation and timeouts").
const workerPollTimeout = 1 * time.Second

// WorkerContext is one accelerator context: a device binding plus the
// pinned host buffers needed to run a single full batch. A WorkerContext
// is owned exclusively by the worker goroutine that created it (§5,
// "Pinned host buffers are owned exclusively by the worker that allocated
// them") — it is never shared or accessed from more than one goroutine.
type WorkerContext interface {
	// Run executes exactly BatchSize feature arrays and returns BatchSize
	// policy/value pairs. It must not be called concurrently with itself;
	// the WorkerPool guarantees that.
	Run(features []BoardFeatures) (policies []Policy, values []float32)
	// Close releases the context's accelerator resources and pinned
	// buffers.
	Close()
}

type workItem struct {
	features []BoardFeatures
	resultCh chan workResult
}

type workResult struct {
	policies []Policy
	values   []float32
}

// WorkerPool wraps an Engine over K accelerator devices with a shared work
// queue (§4.3): it owns a fixed set of worker goroutines, each pinned to
// one WorkerContext, all pulling from one channel. Work items are opaque
// to the pool; submission order is preserved only with respect to a
// single worker — the Scheduler never depends on cross-worker ordering,
// since it treats each Engine.Run call as an independent, already-ordered
// unit of work.
type WorkerPool struct {
	batchSize int
	queue     chan workItem
	running   atomic.Bool
	wg        sync.WaitGroup
	log       *zap.SugaredLogger
}

// NewContextFunc builds one WorkerContext bound to the given device id.
// It is called once per worker goroutine (workersPerDevice times per
// device), each call producing an independent context with its own pinned
// buffers, even when several workers share a device id — mirroring how
// the original TensorRT backend builds one IExecutionContext per worker
// thread from a single compiled device engine.
type NewContextFunc func(deviceID int) (WorkerContext, error)

// NewWorkerPool starts workersPerDevice goroutines per entry in deviceIDs,
// each backed by a freshly built WorkerContext. If workersPerDevice <= 0,
// DefaultWorkersPerDevice is used. A setup error from newContext is fatal
// (§7): NewWorkerPool panics rather than returning a half-started pool.
func NewWorkerPool(batchSize int, deviceIDs []int, workersPerDevice int, newContext NewContextFunc, log *zap.SugaredLogger) *WorkerPool {
	if workersPerDevice <= 0 {
		workersPerDevice = DefaultWorkersPerDevice
	}
	p := &WorkerPool{
		batchSize: batchSize,
		queue:     make(chan workItem, batchSize),
		log:       orNop(log),
	}
	p.running.Store(true)

	// Building each WorkerContext (session/engine setup, pinned buffer
	// allocation) is the expensive part of bring-up and independent per
	// worker, so it happens concurrently; only once every context exists
	// do the worker goroutines themselves start pulling from the queue.
	contexts := make([]WorkerContext, 0, len(deviceIDs)*workersPerDevice)
	var mu sync.Mutex
	var g errgroup.Group
	for _, deviceID := range deviceIDs {
		for i := 0; i < workersPerDevice; i++ {
			deviceID := deviceID
			g.Go(func() error {
				ctx, err := newContext(deviceID)
				if err != nil {
					return fmt.Errorf("device %d: %w", deviceID, err)
				}
				mu.Lock()
				contexts = append(contexts, ctx)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		panic(fmt.Sprintf("dualnet: failed to build worker context: %v", err))
	}

	for _, ctx := range contexts {
		p.wg.Add(1)
		go p.workerLoop(ctx)
	}
	return p
}

func (p *WorkerPool) workerLoop(ctx WorkerContext) {
	defer p.wg.Done()
	defer ctx.Close()

	timer := time.NewTimer(workerPollTimeout)
	defer timer.Stop()

	for {
		timer.Reset(workerPollTimeout)
		select {
		case item, ok := <-p.queue:
			if !ok {
				return
			}
			policies, values := ctx.Run(item.features)
			item.resultCh <- workResult{policies: policies, values: values}
		case <-timer.C:
			if !p.running.Load() {
				return
			}
		}
	}
}

// Run submits one full batch to whichever worker is free and blocks for
// its result.
func (p *WorkerPool) Run(features []BoardFeatures) (policies []Policy, values []float32) {
	item := workItem{features: features, resultCh: make(chan workResult, 1)}
	p.queue <- item
	res := <-item.resultCh
	return res.policies, res.values
}

// Close signals every worker to drain its queued work then exit, and
// blocks until all of them (and their contexts) have shut down.
func (p *WorkerPool) Close() {
	p.running.Store(false)
	p.wg.Wait()
}
