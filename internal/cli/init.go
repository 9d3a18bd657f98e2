// Package cli provides the initialization steps shared by cmd/ledger and
// cmd/ledger-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"expenseledger/internal/amqp"
	"expenseledger/internal/config"
	applog "expenseledger/internal/log"
	"expenseledger/internal/storage"
)

// SetupLogger initializes structured logging at the given level and sets it
// as the default logger.
func SetupLogger(level string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(level)
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg
}

// InitStore opens and initializes the ledger store.
// Returns the store or exits the process on failure.
func InitStore(ctx context.Context, logger *applog.Logger, cfg *config.Config) *storage.SQLiteStore {
	store, err := storage.NewSQLiteStore(ctx, cfg.SQLiteDBPath, storage.Options{BusyTimeout: cfg.SQLiteBusyTimeout})
	if err != nil {
		logger.Error("Failed to initialize ledger store",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeDatabase,
			"path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	return store
}

// InitAMQP connects to the broker when AMQP_URL is set. It returns nil when
// events are disabled or the broker cannot be reached.
func InitAMQP(logger *applog.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled, ledger events will not be published")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without events",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeNetwork)
		return nil
	}
	logger.Info("Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
	}()
	return ctx, stop
}
