package memory

import (
	"context"
	"testing"
	"time"

	"expenseledger/internal/core"
	"expenseledger/internal/sheets"
)

func TestJournalAppendAndEntries(t *testing.T) {
	j := New()
	entry := sheets.JournalEntry{
		Timestamp: time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
		Op:        "added",
		ID:        1,
		Expense:   core.NewExpense("2024-01-05", 42.5, "food"),
		Rows:      1,
	}

	ref, err := j.AppendEntry(context.Background(), entry)
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	ref, _ = j.AppendEntry(context.Background(), entry)
	if ref != "mem:2" {
		t.Fatalf("expected mem:2, got %q", ref)
	}

	got := j.Entries()
	if len(got) != 2 || got[0].Expense != entry.Expense {
		t.Fatalf("unexpected entries %+v", got)
	}
	got[0].Op = "mutated"
	if j.Entries()[0].Op != "added" {
		t.Fatalf("Entries must return a copy")
	}
}

func TestJournalEntryRow(t *testing.T) {
	entry := sheets.JournalEntry{
		Timestamp: time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
		Op:        "deleted",
		Expense:   core.Expense{Date: "2024-01-05", Amount: 42.5, Category: "food", Note: "dup"},
		Rows:      2,
	}
	row := entry.Row()
	if len(row) != len(sheets.JournalHeader) {
		t.Fatalf("row has %d columns, header has %d", len(row), len(sheets.JournalHeader))
	}
	if row[0] != "2024-01-05T10:00:00Z" || row[2] != "" || row[7] != "dup" || row[8] != int64(2) {
		t.Fatalf("unexpected row %v", row)
	}
}
