// Command benchmark drives a dualnet.Factory with a configurable number
// of concurrent synthetic clients, each submitting single-position
// requests in a tight loop, and reports the batching scheduler's
// observed average batch size — the same shape of measurement the
// original project's benchmark tool produces for its search engine.
package main

import (
	"flag"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chsigg/minigo/internal/dualnet"
)

func main() {
	modelPath := flag.String("model", "", "model path or, for the remote engine, worker address")
	engineTag := flag.String("engine", string(dualnet.TagNative), "engine backend: onnx, lite, native, remote")
	batchSize := flag.Int("batch-size", 64, "inference batch size")
	numDevices := flag.Int("devices", 0, "accelerator device count (0 = auto)")
	clients := flag.Int("clients", 256, "number of concurrent synthetic clients")
	duration := flag.Duration("duration", 10*time.Second, "how long to drive load")
	flag.Parse()

	log := zap.NewNop().Sugar()

	engine, err := dualnet.NewEngine(dualnet.Config{
		ModelPath:  *modelPath,
		BatchSize:  *batchSize,
		Engine:     dualnet.Tag(*engineTag),
		NumDevices: *numDevices,
	}, log)
	if err != nil {
		fmt.Printf("benchmark: constructing engine: %v\n", err)
		return
	}

	factory := dualnet.NewFactory(engine, log)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runClient(factory, stop)
		}()
	}

	time.Sleep(*duration)
	close(stop)
	wg.Wait()

	stats := factory.Stats()
	factory.Close()

	fmt.Printf("runs=%d runSum=%d avgBatchSize=%.2f\n", stats.Runs, stats.RunSum, stats.AverageBatchSize())
}

func runClient(factory *dualnet.Factory, stop <-chan struct{}) {
	client := factory.New(false)
	defer client.Close()

	features := dualnet.NewBoardFeatures()
	for {
		select {
		case <-stop:
			return
		default:
			client.Run([]dualnet.BoardFeatures{features})
		}
	}
}
