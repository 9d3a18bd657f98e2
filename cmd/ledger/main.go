package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenseledger/internal/categories"
	"expenseledger/internal/cli"
	apphttp "expenseledger/internal/http"
	applog "expenseledger/internal/log"
	"expenseledger/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	store := cli.InitStore(ctx, logger, cfg)

	var publisher services.EventPublisher
	if client := cli.InitAMQP(logger, cfg); client != nil {
		publisher = client
	}

	ledger := services.NewLedgerService(store, publisher, logger)
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Error("Failed to close ledger", applog.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(cfg.Addr(), ledger, categories.NewReader(cfg.CategoriesPath), store, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting ledger server",
			applog.FieldOperation, applog.OpStartup,
			"addr", cfg.Addr(),
			"db_path", cfg.SQLiteDBPath,
			"events_enabled", publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "addr", cfg.Addr())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}
