package dualnet

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// onnxEngine is the TagONNX backend: a graph executor driven through
// github.com/yalue/onnxruntime_go, one AdvancedSession per worker. It
// probes execution providers in priority order (TensorRT, CUDA, DirectML,
// CPU) exactly once per worker, at construction, rather than at every
// Run call.
type onnxEngine struct {
	pool      *WorkerPool
	batchSize int
	model     string
}

var (
	onnxInitOnce sync.Once
	onnxInitErr  error
)

func initONNXEnvironment(libraryPath string) error {
	onnxInitOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		absLibPath, err := resolveORTSharedLibraryPath(libraryPath)
		if err != nil {
			onnxInitErr = err
			return
		}
		configureORTSearchPath(filepath.Dir(absLibPath))
		ort.SetSharedLibraryPath(absLibPath)
		onnxInitErr = ort.InitializeEnvironment()
	})
	return onnxInitErr
}

func newONNXEngine(cfg Config, log *zap.SugaredLogger) (Engine, error) {
	modelPath, err := resolveModelPath(cfg.ModelPath, ".onnx")
	if err != nil {
		return nil, fmt.Errorf("dualnet: onnx: %w", err)
	}

	libraryPath := cfg.Opaque["library_path"]
	if libraryPath == "" {
		libraryPath = defaultORTLibraryName
	}
	if err := initONNXEnvironment(libraryPath); err != nil {
		return nil, fmt.Errorf("dualnet: onnx: initializing onnxruntime: %w", err)
	}

	if cacheDir := cfg.Opaque["trt_cache_dir"]; cacheDir != "" {
		abs, _ := filepath.Abs(cacheDir)
		_ = os.MkdirAll(abs, 0755)
		setNativeEnv("ORT_TENSORRT_ENGINE_CACHE_ENABLE", "1")
		setNativeEnv("ORT_TENSORRT_ENGINE_CACHE_PATH", abs)
		setNativeEnv("ORT_TENSORRT_TIMING_CACHE_ENABLE", "1")
		setNativeEnv("ORT_TENSORRT_TIMING_CACHE_PATH", abs)
	}

	batchSize := cfg.batchSize()
	deviceIDs := discoverDevices(cfg.NumDevices, onnxDeviceCount)

	pool := NewWorkerPool(batchSize, deviceIDs, cfg.WorkersPerDevice, newONNXWorkerContext(modelPath, batchSize, log), log)

	return &onnxEngine{
		pool:      pool,
		batchSize: batchSize,
		model:     filepath.Base(modelPath),
	}, nil
}

func (e *onnxEngine) BatchSize() int { return e.batchSize }

func (e *onnxEngine) Run(features []BoardFeatures) Result {
	policies, values := e.pool.Run(features)
	return Result{Policies: policies, Values: values, Model: e.model}
}

func (e *onnxEngine) Close() { e.pool.Close() }

// onnxDeviceCount is the fallback device probe when Config.NumDevices is
// 0. github.com/yalue/onnxruntime_go exposes no portable device
// enumeration, so this package assumes a single accelerator context
// unless the operator names NumDevices explicitly.
func onnxDeviceCount() int { return 1 }

// onnxWorkerContext binds one AdvancedSession, and its pinned I/O
// tensors, to a single worker goroutine (§5). Tensor storage is sized to
// exactly batchSize positions and is never touched from more than one
// goroutine at a time — the WorkerPool enforces that.
type onnxWorkerContext struct {
	session *ort.AdvancedSession

	input  []float32
	policy []float32
	value  []float32

	tensors []ort.Value

	batchSize int
}

func newONNXWorkerContext(modelPath string, batchSize int, log *zap.SugaredLogger) NewContextFunc {
	return func(deviceID int) (WorkerContext, error) {
		input := make([]float32, batchSize*NumBoardFeatures)
		policy := make([]float32, batchSize*NumMoves)
		value := make([]float32, batchSize)

		inputShape := ort.NewShape(int64(batchSize), int64(NumStoneFeatures), int64(N), int64(N))
		policyShape := ort.NewShape(int64(batchSize), int64(NumMoves))
		valueShape := ort.NewShape(int64(batchSize))

		inputTensor, err := ort.NewTensor(inputShape, input)
		if err != nil {
			return nil, err
		}
		policyTensor, err := ort.NewTensor(policyShape, policy)
		if err != nil {
			inputTensor.Destroy()
			return nil, err
		}
		valueTensor, err := ort.NewTensor(valueShape, value)
		if err != nil {
			inputTensor.Destroy()
			policyTensor.Destroy()
			return nil, err
		}

		tensors := []ort.Value{inputTensor, policyTensor, valueTensor}
		inputs := []ort.Value{inputTensor}
		outputs := []ort.Value{policyTensor, valueTensor}

		session, err := buildONNXSession(modelPath, deviceID, inputs, outputs, log)
		if err != nil {
			for _, t := range tensors {
				t.Destroy()
			}
			return nil, err
		}

		return &onnxWorkerContext{
			session:   session,
			input:     input,
			policy:    policy,
			value:     value,
			tensors:   tensors,
			batchSize: batchSize,
		}, nil
	}
}

// onnxProvider is one candidate execution provider, tried in order until
// one both configures and successfully warms up (mirrors the provider
// fallback ladder in the original TensorRT/CUDA backend).
type onnxProvider struct {
	name  string
	setup func(*ort.SessionOptions, int) error
}

var onnxProviders = []onnxProvider{
	{"TensorRT", func(so *ort.SessionOptions, deviceID int) error {
		opts, err := ort.NewTensorRTProviderOptions()
		if err != nil {
			return err
		}
		defer opts.Destroy()
		if err := opts.Update(map[string]string{"device_id": fmt.Sprint(deviceID)}); err != nil {
			return err
		}
		return so.AppendExecutionProviderTensorRT(opts)
	}},
	{"CUDA", func(so *ort.SessionOptions, deviceID int) error {
		opts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return err
		}
		defer opts.Destroy()
		if err := opts.Update(map[string]string{"device_id": fmt.Sprint(deviceID)}); err != nil {
			return err
		}
		return so.AppendExecutionProviderCUDA(opts)
	}},
	{"DirectML", func(so *ort.SessionOptions, deviceID int) error {
		return so.AppendExecutionProviderDirectML(deviceID)
	}},
	{"CPU", func(so *ort.SessionOptions, deviceID int) error { return nil }},
}

func buildONNXSession(modelPath string, deviceID int, inputs, outputs []ort.Value, log *zap.SugaredLogger) (*ort.AdvancedSession, error) {
	inputNames := []string{"pos_tensor"}
	outputNames := []string{"policy", "value"}

	var lastErr error
	for _, p := range onnxProviders {
		so, err := ort.NewSessionOptions()
		if err != nil {
			lastErr = err
			continue
		}
		_ = so.SetLogSeverityLevel(3)

		if err := p.setup(so, deviceID); err != nil {
			log.Debugw("onnx provider unavailable", "provider", p.name, "device", deviceID, "err", err)
			so.Destroy()
			lastErr = err
			continue
		}

		session, err := ort.NewAdvancedSession(modelPath, inputNames, outputNames, inputs, outputs, so)
		so.Destroy()
		if err != nil {
			log.Debugw("onnx session creation failed", "provider", p.name, "device", deviceID, "err", err)
			lastErr = err
			continue
		}

		if err := session.Run(); err != nil {
			log.Debugw("onnx warmup failed", "provider", p.name, "device", deviceID, "err", err)
			session.Destroy()
			lastErr = err
			continue
		}

		log.Infow("onnx session ready", "provider", p.name, "device", deviceID)
		return session, nil
	}
	return nil, fmt.Errorf("dualnet: onnx: no execution provider succeeded on device %d: %w", deviceID, lastErr)
}

func (c *onnxWorkerContext) Run(features []BoardFeatures) (policies []Policy, values []float32) {
	for i, f := range features {
		copy(c.input[i*NumBoardFeatures:(i+1)*NumBoardFeatures], TransposeToCHW(f))
	}

	if err := c.session.Run(); err != nil {
		panic(fmt.Sprintf("dualnet: onnx session run failed: %v", err))
	}

	policies = make([]Policy, c.batchSize)
	values = make([]float32, c.batchSize)
	for i := 0; i < c.batchSize; i++ {
		copy(policies[i][:], c.policy[i*NumMoves:(i+1)*NumMoves])
		values[i] = c.value[i]
	}
	return policies, values
}

func (c *onnxWorkerContext) Close() {
	for _, t := range c.tensors {
		t.Destroy()
	}
	c.session.Destroy()
}
