package dualnet

// Result is the dual-head output of one Engine invocation, demultiplexed
// down to the slice of features a single Request contributed. It is
// move-only: once a Client reads a Result, its slices must not be
// retained across a second submission.
type Result struct {
	Policies []Policy
	Values   []float32
	// Model identifies which model produced this result. Set by the Engine
	// backend from its model path (or, for the remote backend, from the
	// locally configured worker address).
	Model string
}

// request is one client submission queued inside the Scheduler. It moves
// through Created -> Queued -> Batched -> Completed -> Consumed (§4.1)
// without any transition being skippable; only the Scheduler drives the
// Queued -> Batched and Batched -> Completed edges.
type request struct {
	features []BoardFeatures
	// done is fulfilled exactly once, by the Scheduler, with this
	// request's slice of a dispatched batch's Result. It is the one-shot
	// promise/future slot called for in §9's design notes.
	done chan Result
}

func newRequest(features []BoardFeatures) *request {
	return &request{
		features: features,
		done:     make(chan Result, 1),
	}
}

func (r *request) numFeatures() int {
	return len(r.features)
}
