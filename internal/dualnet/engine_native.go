package dualnet

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	G "gorgonia.org/gorgonia"
	nnops "gorgonia.org/gorgonia/ops/nn"
	"gorgonia.org/tensor"

	"go.uber.org/zap"
)

// nativeFloat is the dtype every native-backend tensor is built with.
var nativeFloat = G.Float32

// nativeConfig is the hand-optimized local backend's network shape,
// tunable through Config.Opaque (§6: "convolution width ... carried in
// Opaque").
type nativeConfig struct {
	K            int // convolution filter count
	SharedLayers int // residual tower depth
	FC           int // value-head hidden width
	BatchSize    int
}

func parseNativeConfig(cfg Config) nativeConfig {
	return nativeConfig{
		K:            opaqueInt(cfg.Opaque, "k", 64),
		SharedLayers: opaqueInt(cfg.Opaque, "shared_layers", 6),
		FC:           opaqueInt(cfg.Opaque, "fc", 128),
		BatchSize:    cfg.batchSize(),
	}
}

func opaqueInt(opaque map[string]string, key string, fallback int) int {
	s, ok := opaque[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// builder accumulates a *G.Node and the first error encountered building
// the graph, so the forward pass below can be written as a straight-line
// sequence of calls instead of threading an error return through every
// layer (mirrors the "monad" helper the original graph builder uses).
type builder struct {
	g   *G.ExprGraph
	err error
}

func (b *builder) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if b.err != nil {
		return nil
	}
	retVal, b.err = f()
	return retVal
}

func (b *builder) conv(input *G.Node, filterCount, size int, name string) *G.Node {
	if b.err != nil {
		return nil
	}
	featureCount := input.Shape()[1]
	padding := samePadding(size)
	filter := G.NewTensor(b.g, nativeFloat, 4, G.WithShape(filterCount, featureCount, size, size), G.WithName("filter_"+name), G.WithInit(G.GlorotU(1.0)))
	return b.do(func() (*G.Node, error) {
		return nnops.Conv2d(input, filter, []int{size, size}, padding, []int{1, 1}, []int{1, 1})
	})
}

func (b *builder) batchnorm(input *G.Node) *G.Node {
	if b.err != nil {
		return nil
	}
	out, _, _, _, err := nnops.BatchNorm(input, nil, nil, 0.997, 1e-5)
	if err != nil {
		b.err = err
		return nil
	}
	return out
}

func (b *builder) rectify(input *G.Node) *G.Node {
	if b.err != nil {
		return nil
	}
	return b.do(func() (*G.Node, error) { return nnops.Rectify(input) })
}

func (b *builder) residual(input *G.Node, filterCount int, name string) *G.Node {
	out := b.conv(input, filterCount, 3, name)
	out = b.batchnorm(out)
	return b.rectify(out)
}

func (b *builder) sharedLayer(input *G.Node, filterCount, layer int) *G.Node {
	branch1 := b.residual(input, filterCount, fmt.Sprintf("shared%d_a", layer))
	branch2 := b.residual(input, filterCount, fmt.Sprintf("shared%d_b", layer))
	sum := b.do(func() (*G.Node, error) { return G.Add(branch1, branch2) })
	return b.rectify(sum)
}

func (b *builder) linear(input *G.Node, units int, name string) *G.Node {
	if b.err != nil {
		return nil
	}
	w := G.NewTensor(b.g, nativeFloat, 2, G.WithShape(input.Shape()[1], units), G.WithInit(G.GlorotN(1.0)), G.WithName(name+"_w"))
	xw := b.do(func() (*G.Node, error) { return G.Mul(input, w) })
	bias := G.NewTensor(b.g, nativeFloat, xw.Shape().Dims(), G.WithShape(xw.Shape().Clone()...), G.WithName(name+"_b"), G.WithInit(G.Zeroes()))
	return b.do(func() (*G.Node, error) { return G.Add(xw, bias) })
}

func (b *builder) reshape(input *G.Node, to tensor.Shape) *G.Node {
	if b.err != nil {
		return nil
	}
	return b.do(func() (*G.Node, error) { return G.Reshape(input, to) })
}

func samePadding(kernel int) []int {
	pad := (kernel - 1) / 2
	return []int{pad, pad}
}

// nativeNet is one forward-only, fixed-batch-size instance of the dual
// policy/value network, grounded on the residual-tower architecture of
// gorgonia-agogo's dual.Dual, trimmed to inference only (no cost heads,
// no gradient tape). Every worker owns its own nativeNet and G.VM; none
// of this is safe to share across goroutines (§5).
type nativeNet struct {
	conf nativeConfig

	g      *G.ExprGraph
	planes *G.Node

	policyValue G.Value
	value       G.Value

	model G.Nodes
	vm    G.VM
	input *tensor.Dense
}

func newNativeNet(conf nativeConfig) (*nativeNet, error) {
	n := &nativeNet{conf: conf}
	n.g = G.NewGraph()

	n.planes = G.NewTensor(n.g, nativeFloat, 4, G.WithShape(conf.BatchSize, NumStoneFeatures, N, N), G.WithName("planes"))

	b := &builder{g: n.g}
	out := b.residual(n.planes, conf.K, "stem")
	for i := 0; i < conf.SharedLayers; i++ {
		out = b.sharedLayer(out, conf.K, i)
	}

	boardSize := N * N

	policy := b.residual(out, 2, "policy_head")
	policyBatches := policy.Shape().TotalSize() / (boardSize * 2)
	if policyBatches == 0 {
		policyBatches = 1
	}
	policy = b.reshape(policy, tensor.Shape{policyBatches, boardSize * 2})
	logits := b.linear(policy, NumMoves, "policy")
	policyOutput := b.do(func() (*G.Node, error) { return G.SoftMax(logits) })

	value := b.residual(out, 1, "value_head")
	valueBatches := value.Shape().TotalSize() / boardSize
	value = b.reshape(value, tensor.Shape{valueBatches, boardSize})
	value = b.linear(value, conf.FC, "value_hidden")
	value = b.rectify(value)
	valueOutput := b.linear(value, 1, "value_output")
	valueOutput = b.reshape(valueOutput, tensor.Shape{valueOutput.Shape().TotalSize()})
	valueOutput = b.do(func() (*G.Node, error) { return G.Tanh(valueOutput) })

	if b.err != nil {
		return nil, fmt.Errorf("dualnet: native: building graph: %w", b.err)
	}

	G.Read(policyOutput, &n.policyValue)
	G.Read(valueOutput, &n.value)

	for _, node := range n.g.AllNodes() {
		if node.IsVar() && node != n.planes {
			n.model = append(n.model, node)
		}
	}

	n.vm = G.NewTapeMachine(n.g)
	n.input = tensor.New(tensor.WithShape(conf.BatchSize, NumStoneFeatures, N, N), tensor.Of(nativeFloat))
	return n, nil
}

func (n *nativeNet) loadWeights(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := gob.NewDecoder(f)
	for _, node := range n.model {
		var v G.Value
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("dualnet: native: decoding weight %q: %w", node.Name(), err)
		}
		if err := G.Let(node, v); err != nil {
			return err
		}
	}
	return nil
}

func (n *nativeNet) infer(features []BoardFeatures) (policies []Policy, values []float32) {
	n.input.Zero()
	data := n.input.Data().([]float32)
	for i, f := range features {
		copy(data[i*NumBoardFeatures:(i+1)*NumBoardFeatures], TransposeToCHW(f))
	}

	n.vm.Reset()
	if err := G.Let(n.planes, n.input); err != nil {
		panic(fmt.Sprintf("dualnet: native: binding input: %v", err))
	}
	if err := n.vm.RunAll(); err != nil {
		panic(fmt.Sprintf("dualnet: native: forward pass failed: %v", err))
	}

	rawPolicy := n.policyValue.Data().([]float32)
	rawValue := n.value.Data().([]float32)

	policies = make([]Policy, n.conf.BatchSize)
	values = make([]float32, n.conf.BatchSize)
	for i := range policies {
		copy(policies[i][:], rawPolicy[i*NumMoves:(i+1)*NumMoves])
		values[i] = rawValue[i]
	}
	return policies, values
}

func (n *nativeNet) close() error { return n.vm.Close() }

// nativeWorkerContext adapts a nativeNet to WorkerContext.
type nativeWorkerContext struct{ net *nativeNet }

func newNativeWorkerContext(conf nativeConfig, checkpointPath string) NewContextFunc {
	return func(deviceID int) (WorkerContext, error) {
		net, err := newNativeNet(conf)
		if err != nil {
			return nil, err
		}
		if checkpointPath != "" {
			if err := net.loadWeights(checkpointPath); err != nil {
				net.close()
				return nil, err
			}
		}
		return &nativeWorkerContext{net: net}, nil
	}
}

func (c *nativeWorkerContext) Run(features []BoardFeatures) ([]Policy, []float32) {
	return c.net.infer(features)
}

func (c *nativeWorkerContext) Close() { _ = c.net.close() }

// nativeEngine is the TagNative backend: a pure-Go, gorgonia-driven
// residual network, run local to the process with no external runtime
// dependency (§6, "hand-optimized local backend"). Parallelism comes
// entirely from WorkersPerDevice, since there is exactly one "device".
type nativeEngine struct {
	pool      *WorkerPool
	batchSize int
	model     string
}

func newNativeEngine(cfg Config, log *zap.SugaredLogger) (Engine, error) {
	conf := parseNativeConfig(cfg)
	deviceIDs := discoverDevices(cfg.NumDevices, nativeDeviceCount)

	pool := NewWorkerPool(conf.BatchSize, deviceIDs, cfg.WorkersPerDevice, newNativeWorkerContext(conf, cfg.ModelPath), log)

	model := "native"
	if cfg.ModelPath != "" {
		model = filepath.Base(cfg.ModelPath)
	}
	return &nativeEngine{pool: pool, batchSize: conf.BatchSize, model: model}, nil
}

func nativeDeviceCount() int { return 1 }

func (e *nativeEngine) BatchSize() int { return e.batchSize }

func (e *nativeEngine) Run(features []BoardFeatures) Result {
	policies, values := e.pool.Run(features)
	return Result{Policies: policies, Values: values, Model: e.model}
}

func (e *nativeEngine) Close() { e.pool.Close() }
