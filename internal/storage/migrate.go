package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations brings the schema at dsn up to date. Running it against an
// already initialized database is a no-op.
func RunMigrations(dsn string) error {
	// The migrate driver closes its connection on m.Close, so it gets its own.
	migrateDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// busyRetryDelay is how long retryOnBusy waits before its single retry.
var busyRetryDelay = 500 * time.Millisecond

// isBusy reports whether err is SQLite refusing a lock held by another
// connection, possibly in another process.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy runs fn and retries it once when it fails with a busy lock.
// The migrate lock is per process, so a server and a worker starting together
// can both try to apply the schema. Any other error is returned immediately.
func retryOnBusy(ctx context.Context, fn func() error) error {
	err := fn()
	if !isBusy(err) {
		return err
	}

	slog.WarnContext(ctx, "Database busy during schema initialization, retrying", "error", err)
	select {
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	case <-time.After(busyRetryDelay):
	}
	return fn()
}
