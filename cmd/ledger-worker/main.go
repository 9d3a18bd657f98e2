package main

import (
	"os"

	"golang.org/x/sync/errgroup"

	"expenseledger/internal/backend"
	"expenseledger/internal/cli"
	applog "expenseledger/internal/log"
	"expenseledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting ledger-worker", applog.FieldOperation, applog.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker",
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	store := cli.InitStore(ctx, logger, cfg)
	defer store.Close()

	mirrorCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid mirror configuration", applog.FieldError, err)
		os.Exit(1)
	}
	mirror, err := backend.NewFactory(logger).CreateMirror(ctx, mirrorCfg)
	if err != nil {
		logger.Error("Failed to create journal mirror", applog.FieldError, err, "backend", mirrorCfg.Type)
		os.Exit(1)
	}
	if mirror.Cleanup != nil {
		defer mirror.Cleanup()
	}

	consumer := cli.InitAMQP(logger, cfg)
	if consumer == nil {
		os.Exit(1)
	}
	defer consumer.Close()

	w := worker.NewMirrorWorker(store, mirror.Journal, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx, consumer)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete", applog.FieldOperation, applog.OpShutdown)
}
