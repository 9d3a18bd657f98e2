package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"expenseledger/internal/core"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5 * time.Second

// Options tunes how the store opens its database file.
type Options struct {
	// BusyTimeout bounds how long a statement waits on a locked database
	// before failing with SQLITE_BUSY.
	BusyTimeout time.Duration
}

// SQLiteStore owns the expenses table of a single SQLite file.
// Every operation runs in its own short-lived transaction.
type SQLiteStore struct {
	db  *sql.DB
	dsn string
}

// NewSQLiteStore opens the database at dbPath and initializes the schema.
func NewSQLiteStore(ctx context.Context, dbPath string, opts Options) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := buildDSN(dbPath, opts)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, dsn: dsn}
	if err := s.Initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func buildDSN(dbPath string, opts Options) string {
	timeout := opts.BusyTimeout
	if timeout <= 0 {
		timeout = defaultBusyTimeout
	}
	params := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", timeout.Milliseconds()),
		"_pragma=journal_mode(WAL)",
	}
	return "file:" + uriPathEscaper.Replace(dbPath) + "?" + strings.Join(params, "&")
}

// uriPathEscaper escapes the characters that end or escape the path part of
// an SQLite URI filename.
var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// Initialize ensures the expenses table exists. Safe to call on every start.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	if err := retryOnBusy(ctx, func() error { return RunMigrations(s.dsn) }); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	slog.InfoContext(ctx, "Database initialized")
	return nil
}

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// withTx runs fn in a transaction and commits it, rolling back on any error.
// A cancelled ctx also rolls the transaction back.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Add inserts e and returns the id assigned by the database. e.ID is ignored.
func (s *SQLiteStore) Add(ctx context.Context, e core.Expense) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (date, amount, category, subcategory, note) VALUES (?, ?, ?, ?, ?)`,
			e.Date, e.Amount, e.Category, e.Subcategory, e.Note)
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read inserted id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"date", e.Date,
		"amount", e.Amount,
		"category", e.Category)

	return id, nil
}

// List returns the expenses dated within [start, end], oldest id first.
func (s *SQLiteStore) List(ctx context.Context, start, end string) ([]core.Expense, error) {
	out := []core.Expense{}
	if start > end {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, amount, category, subcategory, note
		FROM expenses
		WHERE date BETWEEN ? AND ?
		ORDER BY id ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e core.Expense
		if err := rows.Scan(&e.ID, &e.Date, &e.Amount, &e.Category, &e.Subcategory, &e.Note); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// Summarize sums amounts per category within [start, end]. An empty category
// means every category.
func (s *SQLiteStore) Summarize(ctx context.Context, start, end, category string) ([]core.CategoryTotal, error) {
	out := []core.CategoryTotal{}
	if start > end {
		return out, nil
	}

	query := `
		SELECT category, SUM(amount) AS total_amount
		FROM expenses
		WHERE date BETWEEN ? AND ?`
	args := []any{start, end}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	query += " GROUP BY category ORDER BY category ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.TotalAmount); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return out, nil
}

// Delete removes every expense whose date, amount, category, subcategory and
// note all equal those of e, and returns how many were removed.
func (s *SQLiteStore) Delete(ctx context.Context, e core.Expense) (int64, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM expenses
			WHERE date = ?
			  AND amount = ?
			  AND category = ?
			  AND subcategory = ?
			  AND note = ?`,
			e.Date, e.Amount, e.Category, e.Subcategory, e.Note)
		if err != nil {
			return fmt.Errorf("delete expenses: %w", err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("read deleted rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Expenses deleted from SQLite",
		"date", e.Date,
		"amount", e.Amount,
		"category", e.Category,
		"rows", n)

	return n, nil
}

// Update applies the provided fields of upd to the expense with the given id.
// It returns core.ErrNothingToUpdate, without touching the database, when no
// field resolves to a change. An unknown id updates zero rows.
func (s *SQLiteStore) Update(ctx context.Context, id int64, upd core.ExpenseUpdate) (int64, error) {
	assignments := upd.Assignments()
	if len(assignments) == 0 {
		return 0, core.ErrNothingToUpdate
	}

	sets := make([]string, len(assignments))
	args := make([]any, 0, len(assignments)+1)
	for i, a := range assignments {
		sets[i] = a.Column + " = ?"
		args = append(args, a.Value)
	}
	args = append(args, id)
	query := "UPDATE expenses SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("read updated rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Expense updated in SQLite",
		"id", id,
		"fields", len(assignments),
		"rows", n)

	return n, nil
}

// Get retrieves a single expense by id.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (core.Expense, error) {
	var e core.Expense
	err := s.db.QueryRowContext(ctx, `
		SELECT id, date, amount, category, subcategory, note
		FROM expenses
		WHERE id = ?`, id).
		Scan(&e.ID, &e.Date, &e.Amount, &e.Category, &e.Subcategory, &e.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	return e, nil
}
