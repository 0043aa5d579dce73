package dualnet

// fakeEngine is a deterministic, dependency-free Engine used by this
// package's own tests, grounded on the original source's FakeDualNet: it
// returns a uniform policy and a constant value for every input, without
// touching any accelerator.
type fakeEngine struct {
	batchSize int
	priors    Policy
	value     float32
	model     string

	// runCount lets tests observe how many batches the Scheduler actually
	// dispatched.
	runCount chan struct{}
}

func newFakeEngine(batchSize int, value float32) *fakeEngine {
	e := &fakeEngine{
		batchSize: batchSize,
		value:     value,
		model:     "FakeDualNet",
		runCount:  make(chan struct{}, 1<<16),
	}
	uniform := float32(1) / float32(NumMoves)
	for i := range e.priors {
		e.priors[i] = uniform
	}
	return e
}

func (e *fakeEngine) BatchSize() int { return e.batchSize }

func (e *fakeEngine) Run(features []BoardFeatures) Result {
	if len(features) != e.batchSize {
		panic("dualnet: fakeEngine.Run given a short batch")
	}
	e.runCount <- struct{}{}

	policies := make([]Policy, len(features))
	values := make([]float32, len(features))
	for i := range features {
		policies[i] = e.priors
		values[i] = e.value
	}
	return Result{Policies: policies, Values: values, Model: e.model}
}

func (e *fakeEngine) Close() {}

func (e *fakeEngine) batchesRun() int {
	return len(e.runCount)
}
