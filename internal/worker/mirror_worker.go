package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"expenseledger/internal/amqp"
	"expenseledger/internal/core"
	applog "expenseledger/internal/log"
	"expenseledger/internal/sheets"
)

// ExpenseReader loads a single expense by id.
type ExpenseReader interface {
	Get(ctx context.Context, id int64) (core.Expense, error)
}

// EventConsumer delivers ledger events to a handler until ctx is done.
type EventConsumer interface {
	ConsumeLedgerEvents(ctx context.Context, handler amqp.EventHandler) error
}

// MirrorWorker copies ledger changes into an external journal.
type MirrorWorker struct {
	store   ExpenseReader
	journal sheets.JournalWriter
	logger  *applog.Logger
	now     func() time.Time
}

func NewMirrorWorker(store ExpenseReader, journal sheets.JournalWriter, logger *applog.Logger) *MirrorWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &MirrorWorker{
		store:   store,
		journal: journal,
		logger:  logger.WithComponent(applog.ComponentWorker),
		now:     time.Now,
	}
}

// Run consumes events and mirrors each of them. It returns when ctx is
// cancelled or the consumer fails.
func (w *MirrorWorker) Run(ctx context.Context, consumer EventConsumer) error {
	w.logger.InfoContext(ctx, "Mirror worker started", applog.FieldOperation, applog.OpStartup)
	err := consumer.ConsumeLedgerEvents(ctx, w.HandleEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume ledger events: %w", err)
	}
	w.logger.InfoContext(ctx, "Mirror worker stopped", applog.FieldOperation, applog.OpShutdown)
	return nil
}

// HandleEvent appends one journal entry for ev. Added and updated records are
// re-read so the journal holds their committed state; when the record is
// already gone the event payload is journaled as is.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev amqp.LedgerEvent) error {
	expense := ev.Expense

	switch ev.Op {
	case amqp.EventAdded, amqp.EventUpdated:
		current, err := w.store.Get(ctx, ev.ID)
		switch {
		case err == nil:
			expense = current
		case errors.Is(err, core.ErrExpenseNotFound):
			w.logger.WarnContext(ctx, "Expense no longer exists, journaling event payload",
				applog.FieldOperation, applog.OpMirror,
				applog.FieldEventOp, string(ev.Op),
				applog.FieldExpenseID, ev.ID)
		default:
			return fmt.Errorf("get expense %d: %w", ev.ID, err)
		}
	case amqp.EventDeleted:
	default:
		return fmt.Errorf("unknown event op %q", ev.Op)
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = w.now()
	}

	ref, err := w.journal.AppendEntry(ctx, sheets.JournalEntry{
		Timestamp: ts,
		Op:        string(ev.Op),
		ID:        ev.ID,
		Expense:   expense,
		Rows:      ev.Rows,
	})
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}

	w.logger.InfoContext(ctx, "Ledger event mirrored",
		applog.FieldOperation, applog.OpMirror,
		applog.FieldEventOp, string(ev.Op),
		applog.FieldExpenseID, ev.ID,
		applog.FieldRows, ev.Rows,
		applog.FieldJournalRef, ref)
	return nil
}
