package dualnet

import (
	"fmt"

	"go.uber.org/zap"
)

// Tag identifies which compiled-in Engine backend a Config selects. Per
// §9's design notes, backend resolution happens once, at construction,
// via this tagged variant — never by runtime dynamic lookup beyond the
// single switch in NewEngine.
type Tag string

const (
	// TagONNX is the graph-executor backend (github.com/yalue/onnxruntime_go).
	TagONNX Tag = "onnx"
	// TagLite is the lightweight, mobile-friendly backend.
	TagLite Tag = "lite"
	// TagNative is the hand-optimized local backend (gorgonia).
	TagNative Tag = "native"
	// TagRemote is the RPC worker backend.
	TagRemote Tag = "remote"
)

// Config is the recognized Configuration Surface of §6.
type Config struct {
	// ModelPath is the path (or, for TagRemote, the address) of the model
	// artifact. Interpretation is delegated to the chosen backend.
	ModelPath string
	// BatchSize is B. Zero means DefaultBatchSize.
	BatchSize int
	// Engine selects the backend.
	Engine Tag
	// NumDevices is the number of accelerator contexts; 0 means
	// auto-detect all.
	NumDevices int
	// WorkersPerDevice overrides DefaultWorkersPerDevice when > 0.
	WorkersPerDevice int
	// Opaque carries backend-specific options (checkpoint directory,
	// convolution width, device-type flag, parallel core count, network
	// port, ...). The core never interprets it.
	Opaque map[string]string
}

func (c Config) batchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return DefaultBatchSize
}

// NewEngine constructs the Engine named by cfg.Engine. Setup errors found
// before any worker context is built (an onnx or lite model path that
// cannot be resolved, onnxruntime initialization failure, an undecodable
// lite weight file, an unusable remote address) are returned as an error.
// Failures while building a worker context (native graph construction or
// checkpoint loading, onnx session creation) panic from NewWorkerPool. An
// unrecognized tag is a programmer error and panics.
func NewEngine(cfg Config, log *zap.SugaredLogger) (Engine, error) {
	log = orNop(log)
	switch cfg.Engine {
	case TagONNX:
		return newONNXEngine(cfg, log)
	case TagLite:
		return newLiteEngine(cfg, log)
	case TagNative:
		return newNativeEngine(cfg, log)
	case TagRemote:
		return newRemoteEngine(cfg, log)
	case "":
		panic("dualnet: Config.Engine is required")
	default:
		panic(fmt.Sprintf("dualnet: unrecognized engine tag %q", cfg.Engine))
	}
}

// discoverDevices resolves numDevices per §6 ("0 = auto-detect all") into
// a concrete list of device ids, falling back to a single device 0 when
// probe can't enumerate any (e.g. a CPU-only build).
func discoverDevices(numDevices int, probe func() int) []int {
	n := numDevices
	if n == 0 {
		n = probe()
	}
	if n <= 0 {
		return []int{0}
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}
