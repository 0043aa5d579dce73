package dualnet

import (
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"gorgonia.org/tensor"

	"go.uber.org/zap"
)

// liteEngine is the TagLite backend: a small, dependency-light network
// meant for constrained (mobile) deployments where pulling in a native
// onnxruntime shared library or the full gorgonia expression-graph
// machinery isn't practical. It keeps gorgonia.org/tensor for buffer
// management but runs its forward pass as plain arithmetic over the
// underlying slices, trading model capacity for a small, predictable
// memory footprint — the same tradeoff the gomobile-bound local server
// makes by shipping its own HTTP surface instead of a full client.
type liteEngine struct {
	pool      *WorkerPool
	batchSize int
	model     string
}

// liteWeights is a single hidden-layer approximation of the dual head:
// a shared linear projection of the flattened feature plane, followed by
// independent policy and value heads.
type liteWeights struct {
	Hidden int

	W1, B1 []float32 // Hidden x NumBoardFeatures (one row per hidden unit), Hidden
	W2, B2 []float32 // NumMoves x Hidden (one row per move), NumMoves
	W3, B3 []float32 // Hidden x 1, 1
}

func newLiteWeights(hidden int, seed int64) *liteWeights {
	r := rand.New(rand.NewSource(seed))
	scale := func(n int) float32 { return float32(1) / float32(math.Sqrt(float64(n))) }

	w := &liteWeights{Hidden: hidden}
	w.W1 = randomSlice(r, NumBoardFeatures*hidden, scale(NumBoardFeatures))
	w.B1 = make([]float32, hidden)
	w.W2 = randomSlice(r, hidden*NumMoves, scale(hidden))
	w.B2 = make([]float32, NumMoves)
	w.W3 = randomSlice(r, hidden, scale(hidden))
	w.B3 = make([]float32, 1)
	return w
}

func randomSlice(r *rand.Rand, n int, scale float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = (r.Float32()*2 - 1) * scale
	}
	return s
}

func loadLiteWeights(path string) (*liteWeights, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var w liteWeights
	if err := gob.NewDecoder(f).Decode(&w); err != nil {
		return nil, fmt.Errorf("dualnet: lite: decoding %s: %w", path, err)
	}
	return &w, nil
}

// liteWorkerContext holds one batch's worth of pinned buffers as
// gorgonia.org/tensor Dense arrays; the arithmetic below reads and
// writes their backing slices directly.
type liteWorkerContext struct {
	weights   *liteWeights
	batchSize int

	input  *tensor.Dense
	hidden *tensor.Dense
	policy *tensor.Dense
	value  *tensor.Dense
}

func newLiteWorkerContext(weights *liteWeights, batchSize int) NewContextFunc {
	return func(deviceID int) (WorkerContext, error) {
		return &liteWorkerContext{
			weights:   weights,
			batchSize: batchSize,
			input:     tensor.New(tensor.WithShape(batchSize, NumBoardFeatures), tensor.Of(tensor.Float32)),
			hidden:    tensor.New(tensor.WithShape(batchSize, weights.Hidden), tensor.Of(tensor.Float32)),
			policy:    tensor.New(tensor.WithShape(batchSize, NumMoves), tensor.Of(tensor.Float32)),
			value:     tensor.New(tensor.WithShape(batchSize, 1), tensor.Of(tensor.Float32)),
		}, nil
	}
}

func (c *liteWorkerContext) Run(features []BoardFeatures) ([]Policy, []float32) {
	in := c.input.Data().([]float32)
	for i, f := range features {
		copy(in[i*NumBoardFeatures:(i+1)*NumBoardFeatures], f)
	}

	w := c.weights
	hidden := c.hidden.Data().([]float32)
	for b := 0; b < c.batchSize; b++ {
		row := in[b*NumBoardFeatures : (b+1)*NumBoardFeatures]
		out := hidden[b*w.Hidden : (b+1)*w.Hidden]
		for h := 0; h < w.Hidden; h++ {
			sum := w.B1[h]
			col := w.W1[h*NumBoardFeatures : (h+1)*NumBoardFeatures]
			for k, v := range row {
				sum += v * col[k]
			}
			if sum < 0 {
				sum = 0 // ReLU
			}
			out[h] = sum
		}
	}

	policy := c.policy.Data().([]float32)
	value := c.value.Data().([]float32)
	for b := 0; b < c.batchSize; b++ {
		h := hidden[b*w.Hidden : (b+1)*w.Hidden]

		logits := policy[b*NumMoves : (b+1)*NumMoves]
		for m := 0; m < NumMoves; m++ {
			sum := w.B2[m]
			col := w.W2[m*w.Hidden : (m+1)*w.Hidden]
			for k, v := range h {
				sum += v * col[k]
			}
			logits[m] = sum
		}
		softmax(logits)

		vsum := w.B3[0]
		for k, v := range h {
			vsum += v * w.W3[k]
		}
		value[b] = float32(math.Tanh(float64(vsum)))
	}

	policies := make([]Policy, c.batchSize)
	values := make([]float32, c.batchSize)
	for b := range policies {
		copy(policies[b][:], policy[b*NumMoves:(b+1)*NumMoves])
		values[b] = value[b]
	}
	return policies, values
}

func (c *liteWorkerContext) Close() {}

func softmax(logits []float32) {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	var sum float32
	for i, v := range logits {
		e := float32(math.Exp(float64(v - max)))
		logits[i] = e
		sum += e
	}
	for i := range logits {
		logits[i] /= sum
	}
}

func newLiteEngine(cfg Config, log *zap.SugaredLogger) (Engine, error) {
	hidden := opaqueInt(cfg.Opaque, "hidden", 256)
	batchSize := cfg.batchSize()

	var weights *liteWeights
	model := "lite-untrained"
	if cfg.ModelPath != "" {
		path, err := resolveModelPath(cfg.ModelPath, ".gob")
		if err != nil {
			return nil, fmt.Errorf("dualnet: lite: %w", err)
		}
		weights, err = loadLiteWeights(path)
		if err != nil {
			return nil, err
		}
		model = filepath.Base(path)
	} else {
		weights = newLiteWeights(hidden, 0)
	}

	deviceIDs := discoverDevices(cfg.NumDevices, func() int { return 1 })
	pool := NewWorkerPool(batchSize, deviceIDs, cfg.WorkersPerDevice, newLiteWorkerContext(weights, batchSize), log)

	return &liteEngine{pool: pool, batchSize: batchSize, model: model}, nil
}

func (e *liteEngine) BatchSize() int { return e.batchSize }

func (e *liteEngine) Run(features []BoardFeatures) Result {
	policies, values := e.pool.Run(features)
	return Result{Policies: policies, Values: values, Model: e.model}
}

func (e *liteEngine) Close() { e.pool.Close() }
