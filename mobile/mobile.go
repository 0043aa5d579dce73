// Package mobile is the gomobile-bind surface: a small, synchronous API
// an Android/iOS host can call into without linking the rest of this
// module's goroutine/channel plumbing directly. It wraps exactly one
// dualnet.Factory per process, matching the one-Engine-per-process shape
// the core package requires.
package mobile

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/chsigg/minigo/internal/dualnet"
)

var (
	mu      sync.Mutex
	factory *dualnet.Factory
)

// StartEngine constructs the process-wide Factory. modelPath is the
// model file (or, for the remote engine, the worker address); libPath is
// only consulted by the onnx engine, as the onnxruntime shared library
// path. engineTag is one of "onnx", "lite", "native", "remote" — "lite"
// is the one a mobile host should normally pick, since it needs no
// native accelerator library.
func StartEngine(modelPath, libPath, engineTag string, batchSize int) string {
	mu.Lock()
	defer mu.Unlock()

	if factory != nil {
		return ""
	}

	cfg := dualnet.Config{
		ModelPath: modelPath,
		BatchSize: batchSize,
		Engine:    dualnet.Tag(engineTag),
	}
	if engineTag == string(dualnet.TagONNX) && libPath != "" {
		cfg.Opaque = map[string]string{"library_path": libPath}
	}

	engine, err := dualnet.NewEngine(cfg, zap.NewNop().Sugar())
	if err != nil {
		return err.Error()
	}
	factory = dualnet.NewFactory(engine, zap.NewNop().Sugar())
	return ""
}

// StopEngine shuts the process-wide Factory down. Safe to call even if
// StartEngine was never called.
func StopEngine() {
	mu.Lock()
	defer mu.Unlock()
	if factory == nil {
		return
	}
	factory.Close()
	factory = nil
}

// Client is an opaque handle the host gets from NewClient and calls Run on.
// gomobile can't bind *dualnet.Client directly across the language
// boundary in a way every target wants, so this package hands back a
// *Client wrapper instead.
type Client struct {
	c *dualnet.Client
}

// NewClient registers a new counted client against the running engine.
// Returns nil if StartEngine hasn't succeeded yet.
func NewClient() *Client {
	mu.Lock()
	f := factory
	mu.Unlock()
	if f == nil {
		return nil
	}
	return &Client{c: f.New(false)}
}

// Run encodes one position's history into features and blocks for a
// policy/value result, returned as flat slices: policy has length
// dualnet.NumMoves, value has length 1.
func (c *Client) Run(stoneColors []int8, toPlay int8) ([]float32, []float32, error) {
	if c == nil || c.c == nil {
		return nil, nil, fmt.Errorf("mobile: client not attached to a running engine")
	}
	if len(stoneColors) != dualnet.N*dualnet.N {
		return nil, nil, fmt.Errorf("mobile: expected %d stone colors, got %d", dualnet.N*dualnet.N, len(stoneColors))
	}

	colors := make([]dualnet.Color, len(stoneColors))
	for i, v := range stoneColors {
		colors[i] = dualnet.Color(v)
	}

	features := dualnet.NewBoardFeatures()
	dualnet.EncodeFeatures([]dualnet.StoneMap{dualnet.SliceStoneMap(colors)}, dualnet.Color(toPlay), features)

	result := c.c.Run([]dualnet.BoardFeatures{features})
	return result.Policies[0][:], []float32{result.Values[0]}, nil
}

// Close deregisters the client.
func (c *Client) Close() {
	if c != nil && c.c != nil {
		c.c.Close()
	}
}
