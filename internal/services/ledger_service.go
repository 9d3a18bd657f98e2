package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"expenseledger/internal/amqp"
	"expenseledger/internal/core"
	applog "expenseledger/internal/log"
)

// Result statuses
const (
	StatusSuccess  = "Success"
	StatusOK       = "ok"
	StatusNoUpdate = "no update"
	StatusError    = "error"
)

// Error kinds carried by error results
const (
	KindStorage        = "storage_error"
	KindInvalidRequest = "invalid_request"
)

// LedgerStore is the persistence the service operates on.
type LedgerStore interface {
	Add(ctx context.Context, e core.Expense) (int64, error)
	List(ctx context.Context, start, end string) ([]core.Expense, error)
	Summarize(ctx context.Context, start, end, category string) ([]core.CategoryTotal, error)
	Delete(ctx context.Context, e core.Expense) (int64, error)
	Update(ctx context.Context, id int64, upd core.ExpenseUpdate) (int64, error)
}

// EventPublisher receives a change event after each committed write.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev amqp.LedgerEvent) error
}

// Outcome is the status part shared by every result.
type Outcome struct {
	Status  string `json:"status"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// IsError reports whether the operation failed.
func (o Outcome) IsError() bool {
	return o.Status == StatusError
}

// ErrorOutcome builds the error part of a result.
func ErrorOutcome(kind, message string) Outcome {
	return Outcome{Status: StatusError, Kind: kind, Message: message}
}

func storageFailure(err error) Outcome {
	return ErrorOutcome(KindStorage, fmt.Sprintf("database error: %v", err))
}

type (
	AddResult struct {
		Outcome
		ID int64 `json:"id,omitempty"`
	}

	ListResult struct {
		Outcome
		Expenses []core.Expense `json:"expenses"`
	}

	SummaryResult struct {
		Outcome
		Summary []core.CategoryTotal `json:"summary"`
	}

	DeleteResult struct {
		Outcome
		RowsDeleted *int64 `json:"rows_deleted,omitempty"`
	}

	UpdateResult struct {
		Outcome
		ID          int64  `json:"id"`
		RowsUpdated *int64 `json:"rows_updated,omitempty"`
	}
)

// LedgerService is the operation boundary of the ledger: every call returns a
// result that says explicitly whether it succeeded, and store failures never
// escape as errors or panics.
type LedgerService struct {
	store     LedgerStore
	publisher EventPublisher
	logger    *applog.StructuredLogger
}

// NewLedgerService wires the service. publisher may be nil.
func NewLedgerService(store LedgerStore, publisher EventPublisher, logger *applog.Logger) *LedgerService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &LedgerService{
		store:     store,
		publisher: publisher,
		logger:    applog.NewStructuredLogger(logger.WithComponent(applog.ComponentLedger)),
	}
}

// recoverInto turns a panic raised below the boundary into an error outcome.
func (s *LedgerService) recoverInto(ctx context.Context, op string, out *Outcome) {
	if r := recover(); r != nil {
		err := fmt.Errorf("panic: %v", r)
		s.logger.LogError(ctx, "Ledger operation panicked", err, applog.ErrorTypeInternal, op, nil)
		*out = storageFailure(err)
	}
}

// AddExpense stores e and returns the id the store assigned.
func (s *LedgerService) AddExpense(ctx context.Context, e core.Expense) (res AddResult) {
	defer s.recoverInto(ctx, applog.OpCreate, &res.Outcome)

	id, err := s.store.Add(ctx, e)
	if err != nil {
		s.logger.LogError(ctx, "Failed to add expense", err, applog.ErrorTypeDatabase, applog.OpCreate,
			applog.NewFields().WithExpense(0, e.Date, e.Amount, e.Category))
		return AddResult{Outcome: storageFailure(err)}
	}

	e.ID = id
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventAdded, id, e, 1))

	return AddResult{
		Outcome: Outcome{Status: StatusSuccess, Message: "Expense added successfully"},
		ID:      id,
	}
}

// ListExpenses returns the expenses within [start, end] in insertion order.
func (s *LedgerService) ListExpenses(ctx context.Context, start, end string) (res ListResult) {
	defer s.recoverInto(ctx, applog.OpList, &res.Outcome)

	expenses, err := s.store.List(ctx, start, end)
	if err != nil {
		s.logger.LogError(ctx, "Failed to list expenses", err, applog.ErrorTypeDatabase, applog.OpList,
			applog.NewFields().WithRange(start, end))
		return ListResult{Outcome: storageFailure(err)}
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	return ListResult{Outcome: Outcome{Status: StatusOK}, Expenses: expenses}
}

// Summarize totals amounts per category within [start, end], optionally for
// a single category.
func (s *LedgerService) Summarize(ctx context.Context, start, end, category string) (res SummaryResult) {
	defer s.recoverInto(ctx, applog.OpSummarize, &res.Outcome)

	totals, err := s.store.Summarize(ctx, start, end, category)
	if err != nil {
		s.logger.LogError(ctx, "Failed to summarize expenses", err, applog.ErrorTypeDatabase, applog.OpSummarize,
			applog.NewFields().WithRange(start, end))
		return SummaryResult{Outcome: storageFailure(err)}
	}
	if totals == nil {
		totals = []core.CategoryTotal{}
	}
	return SummaryResult{Outcome: Outcome{Status: StatusOK}, Summary: totals}
}

// DeleteExpenses removes every expense matching all five fields of e.
func (s *LedgerService) DeleteExpenses(ctx context.Context, e core.Expense) (res DeleteResult) {
	defer s.recoverInto(ctx, applog.OpDelete, &res.Outcome)

	n, err := s.store.Delete(ctx, e)
	if err != nil {
		s.logger.LogError(ctx, "Failed to delete expenses", err, applog.ErrorTypeDatabase, applog.OpDelete,
			applog.NewFields().WithExpense(0, e.Date, e.Amount, e.Category))
		return DeleteResult{Outcome: storageFailure(err)}
	}

	if n > 0 {
		s.publish(ctx, amqp.NewLedgerEvent(amqp.EventDeleted, 0, e, n))
	}
	return DeleteResult{Outcome: Outcome{Status: StatusOK}, RowsDeleted: &n}
}

// UpdateExpense applies the provided fields of upd to the expense id.
func (s *LedgerService) UpdateExpense(ctx context.Context, id int64, upd core.ExpenseUpdate) (res UpdateResult) {
	res.ID = id
	defer s.recoverInto(ctx, applog.OpUpdate, &res.Outcome)

	n, err := s.store.Update(ctx, id, upd)
	if errors.Is(err, core.ErrNothingToUpdate) {
		return UpdateResult{Outcome: Outcome{Status: StatusNoUpdate}, ID: id}
	}
	if err != nil {
		fields := applog.NewFields()
		fields[applog.FieldExpenseID] = id
		s.logger.LogError(ctx, "Failed to update expense", err, applog.ErrorTypeDatabase, applog.OpUpdate, fields)
		return UpdateResult{Outcome: storageFailure(err), ID: id}
	}

	if n > 0 {
		s.publish(ctx, amqp.NewLedgerEvent(amqp.EventUpdated, id, core.Expense{ID: id}, n))
	}
	return UpdateResult{Outcome: Outcome{Status: StatusOK}, ID: id, RowsUpdated: &n}
}

// publish never fails the caller: the write is already committed.
func (s *LedgerService) publish(ctx context.Context, ev amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		fields := applog.NewFields()
		fields[applog.FieldExpenseID] = ev.ID
		s.logger.LogError(ctx, "Failed to publish ledger event", err, applog.ErrorTypeNetwork, applog.OpPublish, fields)
	}
}

// Close closes the store and the publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error

	if c, ok := s.store.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}

	return nil
}
