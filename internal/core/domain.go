package core

import (
	"bytes"
	"encoding/json"
	"errors"
)

type (
	// Expense is a single ledger record. Date is an ISO-8601 "YYYY-MM-DD"
	// string; ordering of records by date relies on lexicographic comparison.
	Expense struct {
		ID          int64   `json:"id"`
		Date        string  `json:"date"`
		Amount      float64 `json:"amount"`
		Category    string  `json:"category"`
		Subcategory string  `json:"subcategory"`
		Note        string  `json:"note"`
	}

	// CategoryTotal is the sum of amounts for one category.
	CategoryTotal struct {
		Category    string  `json:"category"`
		TotalAmount float64 `json:"total_amount"`
	}

	// Optional distinguishes "not provided" from a provided zero value.
	Optional[T any] struct {
		Value T
		Set   bool
	}

	// ExpenseUpdate carries the fields a caller wants to change on a record.
	ExpenseUpdate struct {
		Date        Optional[string]  `json:"date"`
		Amount      Optional[float64] `json:"amount"`
		Category    Optional[string]  `json:"category"`
		Subcategory Optional[string]  `json:"subcategory"`
		Note        Optional[string]  `json:"note"`
	}

	// Assignment is one column = value pair of an update.
	Assignment struct {
		Column string
		Value  any
	}
)

var (
	ErrNothingToUpdate = errors.New("no fields to update")
	ErrExpenseNotFound = errors.New("expense not found")
)

// NewExpense builds a record with empty subcategory and note.
func NewExpense(date string, amount float64, category string) Expense {
	return Expense{Date: date, Amount: amount, Category: category}
}

// Some returns a set Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// Get returns the value and whether it was provided.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Set
}

// UnmarshalJSON marks the value as set unless the input is null. Absent keys
// never reach this method, so they stay unset.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Assignments resolves which columns an update touches.
//
// date, amount and category are only changed when provided with a non-zero
// value, so they can never be cleared through an update. subcategory and note
// are changed whenever provided, including to the empty string.
func (u ExpenseUpdate) Assignments() []Assignment {
	var out []Assignment
	if v, ok := u.Date.Get(); ok && v != "" {
		out = append(out, Assignment{Column: "date", Value: v})
	}
	if v, ok := u.Amount.Get(); ok && v != 0 {
		out = append(out, Assignment{Column: "amount", Value: v})
	}
	if v, ok := u.Category.Get(); ok && v != "" {
		out = append(out, Assignment{Column: "category", Value: v})
	}
	if v, ok := u.Subcategory.Get(); ok {
		out = append(out, Assignment{Column: "subcategory", Value: v})
	}
	if v, ok := u.Note.Get(); ok {
		out = append(out, Assignment{Column: "note", Value: v})
	}
	return out
}

// IsEmpty reports whether the update would leave the record untouched.
func (u ExpenseUpdate) IsEmpty() bool {
	return len(u.Assignments()) == 0
}
