package dualnet

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client is a thin per-searcher façade (§4.5): it owns a reference to a
// Scheduler and exposes a single synchronous Run call. Clients register
// with the Scheduler's census on creation and deregister on Close; a weak
// Client does not count toward the census (used by transient helpers that
// shouldn't make other clients wait on them).
type Client struct {
	scheduler *Scheduler
	counted   bool

	// id is a diagnostic identifier only; it never affects ordering or
	// batch formation.
	id uuid.UUID
}

// Run submits features (1 <= len(features) <= the Engine's BatchSize) and
// blocks until the Scheduler has a Result for this submission.
func (c *Client) Run(features []BoardFeatures) Result {
	return c.scheduler.submit(features)
}

// Close deregisters the Client from the Scheduler's census. Closing a
// Client while a Run call is in flight on it is undefined, exactly as
// §4.1's failure semantics specify — callers are expected to let Run
// return before disposing of the Client that issued it.
func (c *Client) Close() {
	c.scheduler.unregisterClient(c.counted)
}

// ID returns the Client's diagnostic identifier.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// Factory constructs a Scheduler around one Engine and hands out Clients
// on demand (§4.5). The one-Engine-per-process shape is deliberate:
// sharing the accelerator queue across all searchers is what lets
// batching work, so a Factory never wraps more than one Scheduler.
type Factory struct {
	scheduler *Scheduler
	engine    Engine
	log       *zap.SugaredLogger
}

// NewFactory builds a Factory around a constructed Engine. log may be nil.
func NewFactory(engine Engine, log *zap.SugaredLogger) *Factory {
	log = orNop(log)
	return &Factory{
		scheduler: NewScheduler(engine, log),
		engine:    engine,
		log:       log,
	}
}

// New returns a new Client. weak selects the non-counted variant used by
// transient helpers (§2, §4.5); ordinary MCTS actors should pass false.
func (f *Factory) New(weak bool) *Client {
	counted := !weak
	f.scheduler.registerClient(counted)
	c := &Client{scheduler: f.scheduler, counted: counted, id: uuid.New()}
	f.log.Debugw("client registered", "id", c.id, "counted", counted)
	return c
}

// Stats exposes the underlying Scheduler's lifetime counters.
func (f *Factory) Stats() SchedulerStats {
	return f.scheduler.Stats()
}

// Close shuts down the Scheduler and the Engine it wraps. No Client
// obtained from this Factory may be used afterward.
func (f *Factory) Close() {
	f.scheduler.Close()
	f.engine.Close()
}
