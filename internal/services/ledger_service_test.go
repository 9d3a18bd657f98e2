package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"expenseledger/internal/amqp"
	"expenseledger/internal/core"
	applog "expenseledger/internal/log"
	"expenseledger/internal/storage"
)

type recordingPublisher struct {
	events []amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(ctx context.Context, ev amqp.LedgerEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

// failingStore fails every call, or panics when panicWith is set.
type failingStore struct {
	err       error
	panicWith any
	updates   int
}

func (f *failingStore) fail() error {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.err
}

func (f *failingStore) Add(context.Context, core.Expense) (int64, error) { return 0, f.fail() }
func (f *failingStore) List(context.Context, string, string) ([]core.Expense, error) {
	return nil, f.fail()
}
func (f *failingStore) Summarize(context.Context, string, string, string) ([]core.CategoryTotal, error) {
	return nil, f.fail()
}
func (f *failingStore) Delete(context.Context, core.Expense) (int64, error) { return 0, f.fail() }
func (f *failingStore) Update(_ context.Context, _ int64, upd core.ExpenseUpdate) (int64, error) {
	if upd.IsEmpty() {
		return 0, core.ErrNothingToUpdate
	}
	f.updates++
	return 0, f.fail()
}

func quietLogger() *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Output = &bytes.Buffer{}
	return applog.New(cfg)
}

func newTestService(t *testing.T, pub EventPublisher) *LedgerService {
	t.Helper()
	store, err := storage.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), storage.Options{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	svc := NewLedgerService(store, pub, quietLogger())
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestLedgerService_Scenario(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := newTestService(t, pub)

	add := svc.AddExpense(ctx, core.NewExpense("2024-01-05", 42.50, "food"))
	if add.Status != StatusSuccess || add.ID != 1 {
		t.Fatalf("unexpected add result %+v", add)
	}

	list := svc.ListExpenses(ctx, "2024-01-01", "2024-01-31")
	if list.Status != StatusOK || len(list.Expenses) != 1 {
		t.Fatalf("unexpected list result %+v", list)
	}
	if e := list.Expenses[0]; e.ID != 1 || e.Amount != 42.50 || e.Subcategory != "" || e.Note != "" {
		t.Fatalf("unexpected record %+v", e)
	}

	sum := svc.Summarize(ctx, "2024-01-01", "2024-01-31", "")
	if sum.Status != StatusOK || len(sum.Summary) != 1 || sum.Summary[0] != (core.CategoryTotal{Category: "food", TotalAmount: 42.50}) {
		t.Fatalf("unexpected summary %+v", sum)
	}

	del := svc.DeleteExpenses(ctx, core.NewExpense("2024-01-05", 42.50, "food"))
	if del.Status != StatusOK || del.RowsDeleted == nil || *del.RowsDeleted != 1 {
		t.Fatalf("unexpected delete result %+v", del)
	}

	list = svc.ListExpenses(ctx, "2024-01-01", "2024-01-31")
	if list.Status != StatusOK || list.Expenses == nil || len(list.Expenses) != 0 {
		t.Fatalf("expected empty list, got %+v", list)
	}

	if len(pub.events) != 2 || pub.events[0].Op != amqp.EventAdded || pub.events[1].Op != amqp.EventDeleted {
		t.Fatalf("unexpected events %+v", pub.events)
	}
}

func TestLedgerService_ResultJSON(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	add := svc.AddExpense(ctx, core.NewExpense("2024-01-05", 42.50, "food"))
	data, _ := json.Marshal(add)
	if !strings.Contains(string(data), `"status":"Success"`) || !strings.Contains(string(data), `"id":1`) {
		t.Fatalf("unexpected add payload %s", data)
	}

	del := svc.DeleteExpenses(ctx, core.NewExpense("2030-01-01", 1, "none"))
	data, _ = json.Marshal(del)
	if string(data) != `{"status":"ok","rows_deleted":0}` {
		t.Fatalf("unexpected delete payload %s", data)
	}

	upd := svc.UpdateExpense(ctx, add.ID, core.ExpenseUpdate{})
	data, _ = json.Marshal(upd)
	if string(data) != `{"status":"no update","id":1}` {
		t.Fatalf("unexpected no-op payload %s", data)
	}
}

func TestLedgerService_Update(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := newTestService(t, pub)
	add := svc.AddExpense(ctx, core.Expense{Date: "2024-01-05", Amount: 3, Category: "food", Subcategory: "snack"})

	res := svc.UpdateExpense(ctx, add.ID, core.ExpenseUpdate{Subcategory: core.Some("")})
	if res.Status != StatusOK || res.RowsUpdated == nil || *res.RowsUpdated != 1 {
		t.Fatalf("unexpected update result %+v", res)
	}
	list := svc.ListExpenses(ctx, "2024-01-05", "2024-01-05")
	if list.Expenses[0].Subcategory != "" {
		t.Fatalf("subcategory should be cleared, got %q", list.Expenses[0].Subcategory)
	}

	res = svc.UpdateExpense(ctx, 999, core.ExpenseUpdate{Note: core.Some("x")})
	if res.Status != StatusOK || *res.RowsUpdated != 0 || res.IsError() {
		t.Fatalf("unknown id should update zero rows, got %+v", res)
	}

	res = svc.UpdateExpense(ctx, add.ID, core.ExpenseUpdate{})
	if res.Status != StatusNoUpdate || res.RowsUpdated != nil || res.ID != add.ID {
		t.Fatalf("expected no update, got %+v", res)
	}

	// added + one effective update; zero-row and no-op updates publish nothing
	if len(pub.events) != 2 || pub.events[1].Op != amqp.EventUpdated || pub.events[1].ID != add.ID {
		t.Fatalf("unexpected events %+v", pub.events)
	}
}

func TestLedgerService_NoOpUpdateSkipsStore(t *testing.T) {
	store := &failingStore{err: errors.New("should not be reached")}
	svc := NewLedgerService(store, nil, quietLogger())

	res := svc.UpdateExpense(context.Background(), 1, core.ExpenseUpdate{Amount: core.Some(0.0)})
	if res.Status != StatusNoUpdate {
		t.Fatalf("expected no update, got %+v", res)
	}
	if store.updates != 0 {
		t.Fatalf("store should not be asked to write")
	}
}

func TestLedgerService_StorageErrors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		store *failingStore
	}{
		{"error", &failingStore{err: errors.New("database is locked")}},
		{"panic", &failingStore{panicWith: "driver exploded"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewLedgerService(tt.store, nil, quietLogger())
			outcomes := []Outcome{
				svc.AddExpense(ctx, core.NewExpense("2024-01-05", 1, "food")).Outcome,
				svc.ListExpenses(ctx, "2024-01-01", "2024-01-31").Outcome,
				svc.Summarize(ctx, "2024-01-01", "2024-01-31", "").Outcome,
				svc.DeleteExpenses(ctx, core.NewExpense("2024-01-05", 1, "food")).Outcome,
				svc.UpdateExpense(ctx, 1, core.ExpenseUpdate{Note: core.Some("x")}).Outcome,
			}
			for i, o := range outcomes {
				if !o.IsError() || o.Kind != KindStorage || !strings.HasPrefix(o.Message, "database error: ") {
					t.Errorf("operation %d: unexpected outcome %+v", i, o)
				}
			}
		})
	}
}

func TestLedgerService_PublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newTestService(t, pub)

	res := svc.AddExpense(context.Background(), core.NewExpense("2024-01-05", 1, "food"))
	if res.Status != StatusSuccess || res.ID == 0 {
		t.Fatalf("write should succeed despite publish failure, got %+v", res)
	}
}
