package dualnet

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"
	"go.uber.org/zap"
)

// Engine is the backend-neutral inference primitive (§4.2, §6): given
// exactly BatchSize feature arrays it returns exactly BatchSize policy/
// value pairs. Implementations are free to internally parallelize across
// accelerator contexts (see WorkerPool) but must present Run as a single
// blocking, thread-safe call — Run may be invoked concurrently by more than
// one goroutine at a time, since the Scheduler may have more than one
// batch in flight.
//
// Run never returns an error. Per §7, an Engine failure has no principled
// recovery at this layer: an implementation that cannot complete a batch
// must abort the process (panic, letting it propagate unrecovered, is the
// idiomatic way to do that in Go) rather than silently fail to fulfill the
// clients blocked on that batch.
type Engine interface {
	Run(features []BoardFeatures) Result
	BatchSize() int
	Close()
}

// SchedulerStats reports the batching scheduler's lifetime counters (Runs,
// RunSum), mirroring the summary MiniGo's BatchingService prints on
// destruction, plus the number of requests currently queued (Pending).
type SchedulerStats struct {
	Runs    int
	RunSum  int
	Pending int
}

// AverageBatchSize returns RunSum/Runs, or 0 if no batch has run yet.
func (s SchedulerStats) AverageBatchSize() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.RunSum) / float64(s.Runs)
}

// Scheduler is the Batching Scheduler of §4.1: it mediates between many
// single-request Clients and one Engine, owning the pending queue, the
// client census, and the batch-assembly policy. All exported methods are
// safe for concurrent use.
type Scheduler struct {
	engine    Engine
	batchSize int
	log       *zap.SugaredLogger

	mu          sync.Mutex
	pending     *queue.Queue // of *request, guarded by mu
	clientCount int          // guarded by mu
	queueSum    int          // guarded by mu: total features ever queued
	runSum      int          // guarded by mu: total features ever dispatched
	runs        int          // guarded by mu: batches dispatched
}

// NewScheduler builds a Scheduler around a single Engine. log may be nil,
// in which case diagnostics are discarded.
func NewScheduler(engine Engine, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		engine:    engine,
		batchSize: engine.BatchSize(),
		log:       orNop(log),
		pending:   queue.New(),
	}
}

// registerClient increments the census if counted (§4.1).
func (s *Scheduler) registerClient(counted bool) {
	if !counted {
		return
	}
	s.mu.Lock()
	s.clientCount++
	s.mu.Unlock()
}

// unregisterClient decrements the census if counted, then re-evaluates
// batch formation: a departing peer may unblock batch-formation for
// others still waiting on the census heuristic (§4.1).
func (s *Scheduler) unregisterClient(counted bool) {
	if !counted {
		return
	}
	s.mu.Lock()
	s.clientCount--
	s.maybeRunBatches()
	s.mu.Unlock()
}

// submit blocks the caller until its Result is available (§4.1).
// Precondition: 1 <= len(features) <= BatchSize; violating it is a
// programmer error and panics immediately rather than queuing garbage.
func (s *Scheduler) submit(features []BoardFeatures) Result {
	n := len(features)
	if n < 1 || n > s.batchSize {
		panic(fmt.Sprintf("dualnet: submit given %d features, want 1..%d", n, s.batchSize))
	}

	req := newRequest(features)

	s.mu.Lock()
	s.queueSum += n
	s.pending.Add(req)
	s.maybeRunBatches()
	s.mu.Unlock()

	return <-req.done
}

// Stats returns a snapshot of the scheduler's lifetime counters.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStats{Runs: s.runs, RunSum: s.runSum, Pending: s.pending.Length()}
}

// Close logs final batching statistics, matching the summary
// BatchingService::~BatchingService prints in the original source.
func (s *Scheduler) Close() {
	stats := s.Stats()
	s.log.Infow("scheduler closing", "runs", stats.Runs, "avgBatchSize", stats.AverageBatchSize())
}

// maybeRunBatches implements the batch-formation policy of §4.1. Called
// with mu held; it may run zero, one, or several batches, releasing and
// reacquiring mu around each Engine call.
func (s *Scheduler) maybeRunBatches() {
	for {
		available := s.queueSum - s.runSum
		target := available
		if target > s.batchSize {
			target = s.batchSize
		}
		if target == 0 {
			return
		}
		// Stop if the batch would be short and some counted client hasn't
		// submitted yet: at least one non-submitting peer is expected to
		// submit and would complete the batch, so waiting amortizes the
		// Engine call and avoids wasted padding. We over-approximate
		// "distinct clients with a pending request" by the number of
		// queued requests, which holds exactly as long as every live
		// client keeps at most one request in flight at a time — true by
		// construction, since Client.Run blocks until its own Result
		// arrives (§9's design notes sanction this approximation).
		if target < s.batchSize && s.clientCount > s.pending.Length() {
			return
		}
		s.runBatch(target)
	}
}

// runBatch pops requests off the head of the queue while their cumulative
// feature count fits within target, dispatches them (padded to
// BatchSize) to the Engine, and demultiplexes the result back to each
// request's slot. Called with mu held; releases it for the Engine call.
func (s *Scheduler) runBatch(target int) {
	var reqs []*request
	var counts []int

	remaining := target
	for remaining > 0 {
		head := s.pending.Peek().(*request)
		n := head.numFeatures()
		if n > remaining {
			// FIFO: the head request doesn't fit in what's left. Stop
			// rather than skip it.
			break
		}
		s.pending.Remove()
		reqs = append(reqs, head)
		counts = append(counts, n)
		remaining -= n
		s.runSum += n
	}

	batch := make([]BoardFeatures, 0, s.batchSize)
	for _, r := range reqs {
		batch = append(batch, r.features...)
	}
	for len(batch) < s.batchSize {
		batch = append(batch, NewBoardFeatures()) // zero padding, never delivered (§4.1, I6)
	}

	s.mu.Unlock()
	result := s.engine.Run(batch)
	s.mu.Lock()

	s.runs++

	offset := 0
	for i, r := range reqs {
		n := counts[i]
		r.done <- Result{
			Policies: result.Policies[offset : offset+n],
			Values:   result.Values[offset : offset+n],
			Model:    result.Model,
		}
		offset += n
	}
}
