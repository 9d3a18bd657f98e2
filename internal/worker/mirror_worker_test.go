package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"expenseledger/internal/amqp"
	"expenseledger/internal/core"
	applog "expenseledger/internal/log"
	"expenseledger/internal/sheets"
	"expenseledger/internal/sheets/memory"
)

type fakeReader struct {
	expenses map[int64]core.Expense
	err      error
}

func (f *fakeReader) Get(_ context.Context, id int64) (core.Expense, error) {
	if f.err != nil {
		return core.Expense{}, f.err
	}
	e, ok := f.expenses[id]
	if !ok {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	return e, nil
}

type failingJournal struct{}

func (failingJournal) AppendEntry(context.Context, sheets.JournalEntry) (string, error) {
	return "", errors.New("quota exceeded")
}

type fakeConsumer struct {
	events []amqp.LedgerEvent
}

func (f *fakeConsumer) ConsumeLedgerEvents(ctx context.Context, handler amqp.EventHandler) error {
	for _, ev := range f.events {
		if err := handler(ctx, ev); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: io.Discard})
}

func TestMirrorWorker_HandleEvent(t *testing.T) {
	stored := core.Expense{ID: 1, Date: "2024-01-05", Amount: 50, Category: "food", Note: "edited"}
	reader := &fakeReader{expenses: map[int64]core.Expense{1: stored}}
	ts := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ev   amqp.LedgerEvent
		want core.Expense
	}{
		{
			name: "added re-reads the record",
			ev:   amqp.LedgerEvent{Op: amqp.EventAdded, ID: 1, Expense: core.Expense{ID: 1, Amount: 42.5}, Rows: 1, Timestamp: ts},
			want: stored,
		},
		{
			name: "updated re-reads the record",
			ev:   amqp.LedgerEvent{Op: amqp.EventUpdated, ID: 1, Expense: core.Expense{ID: 1}, Rows: 1, Timestamp: ts},
			want: stored,
		},
		{
			name: "missing record falls back to payload",
			ev:   amqp.LedgerEvent{Op: amqp.EventAdded, ID: 9, Expense: core.Expense{ID: 9, Date: "2024-02-01", Amount: 3, Category: "misc"}, Rows: 1, Timestamp: ts},
			want: core.Expense{ID: 9, Date: "2024-02-01", Amount: 3, Category: "misc"},
		},
		{
			name: "deleted journals the matched values",
			ev:   amqp.LedgerEvent{Op: amqp.EventDeleted, Expense: core.Expense{Date: "2024-01-05", Amount: 42.5, Category: "food"}, Rows: 2, Timestamp: ts},
			want: core.Expense{Date: "2024-01-05", Amount: 42.5, Category: "food"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			journal := memory.New()
			w := NewMirrorWorker(reader, journal, quietLogger())

			if err := w.HandleEvent(context.Background(), tt.ev); err != nil {
				t.Fatalf("handle: %v", err)
			}
			entries := journal.Entries()
			if len(entries) != 1 {
				t.Fatalf("expected 1 entry, got %d", len(entries))
			}
			got := entries[0]
			if got.Expense != tt.want || got.Op != string(tt.ev.Op) || got.Rows != tt.ev.Rows || !got.Timestamp.Equal(ts) {
				t.Fatalf("unexpected entry %+v", got)
			}
		})
	}
}

func TestMirrorWorker_HandleEventErrors(t *testing.T) {
	ev := amqp.LedgerEvent{Op: amqp.EventAdded, ID: 1, Rows: 1}

	w := NewMirrorWorker(&fakeReader{err: errors.New("disk I/O error")}, memory.New(), quietLogger())
	if err := w.HandleEvent(context.Background(), ev); err == nil {
		t.Fatalf("expected store error to be returned for redelivery")
	}

	w = NewMirrorWorker(&fakeReader{expenses: map[int64]core.Expense{1: {ID: 1}}}, failingJournal{}, quietLogger())
	if err := w.HandleEvent(context.Background(), ev); err == nil {
		t.Fatalf("expected journal error to be returned")
	}

	w = NewMirrorWorker(&fakeReader{}, memory.New(), quietLogger())
	if err := w.HandleEvent(context.Background(), amqp.LedgerEvent{Op: "renamed"}); err == nil {
		t.Fatalf("expected error for unknown op")
	}
}

func TestMirrorWorker_ZeroTimestampUsesClock(t *testing.T) {
	journal := memory.New()
	w := NewMirrorWorker(&fakeReader{}, journal, quietLogger())
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	if err := w.HandleEvent(context.Background(), amqp.LedgerEvent{Op: amqp.EventDeleted, Rows: 1}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := journal.Entries()[0].Timestamp; !got.Equal(fixed) {
		t.Fatalf("timestamp = %v, want %v", got, fixed)
	}
}

func TestMirrorWorker_Run(t *testing.T) {
	journal := memory.New()
	w := NewMirrorWorker(&fakeReader{}, journal, quietLogger())
	consumer := &fakeConsumer{events: []amqp.LedgerEvent{
		{Op: amqp.EventDeleted, Rows: 1, Timestamp: time.Now()},
		{Op: amqp.EventDeleted, Rows: 3, Timestamp: time.Now()},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer) }()

	deadline := time.After(2 * time.Second)
	for len(journal.Entries()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("events were not mirrored")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run returned %v after cancellation", err)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMirrorWorker_LogsOperations(t *testing.T) {
	var out lockedBuffer
	logger := applog.New(applog.Config{Output: &out})

	journal := memory.New()
	w := NewMirrorWorker(&fakeReader{}, journal, logger)
	consumer := &fakeConsumer{events: []amqp.LedgerEvent{
		{Op: amqp.EventAdded, ID: 7, Expense: core.Expense{ID: 7}, Rows: 1, Timestamp: time.Now()},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer) }()

	deadline := time.After(2 * time.Second)
	for len(journal.Entries()) < 1 {
		select {
		case <-deadline:
			t.Fatalf("event was not mirrored")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	logs := out.String()
	for _, want := range []string{
		"operation=startup",
		"operation=mirror event_op=added expense_id=7",
		"operation=shutdown",
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("log output missing %q:\n%s", want, logs)
		}
	}
	if strings.Count(logs, "operation=mirror") != 2 {
		t.Errorf("expected a warning and a mirrored line tagged operation=mirror:\n%s", logs)
	}
}
