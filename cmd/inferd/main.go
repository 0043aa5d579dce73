// Command inferd runs the inference dispatch layer as a standalone
// process: one Engine, one Scheduler, and an HTTP status surface that
// MCTS actors' own processes connect to indirectly (through whatever
// transport embeds a dualnet.Factory) or that operators watch directly.
package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/chsigg/minigo/internal/config"
	"github.com/chsigg/minigo/internal/dualnet"
	"github.com/chsigg/minigo/internal/statusserver"
)

func main() {
	cfgPath := flag.String("config", "", "path to a config file (env DUALNET_* overrides always apply)")
	modelPath := flag.String("model", "", "model path or, for the remote engine, worker address")
	engineTag := flag.String("engine", "", "engine backend: onnx, lite, native, remote")
	batchSize := flag.Int("batch-size", 0, "inference batch size (0 = default)")
	listenAddr := flag.String("listen", "", "status server listen address")
	flag.Parse()

	cfg, err := config.Setup(*cfgPath)
	if err != nil {
		log.Fatalf("inferd: loading config: %v", err)
	}
	if *modelPath != "" {
		cfg.ModelPath = *modelPath
	}
	if *engineTag != "" {
		cfg.Engine = *engineTag
	}
	if *batchSize != 0 {
		cfg.BatchSize = *batchSize
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	zl, err := newZapLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("inferd: building logger: %v", err)
	}
	defer zl.Sync()
	sl := zl.Sugar()

	engine, err := dualnet.NewEngine(cfg.DualnetConfig(), sl)
	if err != nil {
		sl.Fatalw("failed to construct engine", "err", err)
	}

	factory := dualnet.NewFactory(engine, sl)
	defer factory.Close()

	srv := statusserver.New(factory, sl)
	sl.Infow("inferd ready", "engine", cfg.Engine, "batchSize", engine.BatchSize(), "listen", cfg.ListenAddr)
	if err := srv.ListenAndServe(cfg.ListenAddr); err != nil {
		sl.Fatalw("status server exited", "err", err)
	}
}

func newZapLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}
