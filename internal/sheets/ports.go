package sheets

import (
	"context"
	"strconv"
	"time"

	"expenseledger/internal/core"
)

// JournalEntry is one row of the change journal mirrored out of the ledger.
type JournalEntry struct {
	Timestamp time.Time
	Op        string
	ID        int64
	Expense   core.Expense
	Rows      int64
}

// Row renders the entry in journal column order:
// timestamp, op, id, date, amount, category, subcategory, note, rows.
func (e JournalEntry) Row() []any {
	id := ""
	if e.ID != 0 {
		id = strconv.FormatInt(e.ID, 10)
	}
	return []any{
		e.Timestamp.UTC().Format(time.RFC3339),
		e.Op,
		id,
		e.Expense.Date,
		e.Expense.Amount,
		e.Expense.Category,
		e.Expense.Subcategory,
		e.Expense.Note,
		e.Rows,
	}
}

// JournalHeader names the journal columns.
var JournalHeader = []any{"timestamp", "op", "id", "date", "amount", "category", "subcategory", "note", "rows"}

// Ports for outbound adapters.
type (
	JournalWriter interface {
		AppendEntry(ctx context.Context, entry JournalEntry) (ref string, err error)
	}
)
