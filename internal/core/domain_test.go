package core

import (
	"encoding/json"
	"testing"
)

func TestExpenseUpdateAssignments(t *testing.T) {
	cases := []struct {
		name string
		upd  ExpenseUpdate
		want []string
	}{
		{"nothing provided", ExpenseUpdate{}, nil},
		{"zero values for guarded fields", ExpenseUpdate{
			Date:     Some(""),
			Amount:   Some(0.0),
			Category: Some(""),
		}, nil},
		{"empty subcategory is an update", ExpenseUpdate{Subcategory: Some("")}, []string{"subcategory"}},
		{"empty note is an update", ExpenseUpdate{Note: Some("")}, []string{"note"}},
		{"all fields", ExpenseUpdate{
			Date:        Some("2024-02-01"),
			Amount:      Some(-3.5),
			Category:    Some("food"),
			Subcategory: Some("bar"),
			Note:        Some("x"),
		}, []string{"date", "amount", "category", "subcategory", "note"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.upd.Assignments()
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i, a := range got {
				if a.Column != tc.want[i] {
					t.Fatalf("column %d: expected %s, got %s", i, tc.want[i], a.Column)
				}
			}
			if tc.upd.IsEmpty() != (len(tc.want) == 0) {
				t.Fatalf("IsEmpty mismatch for %v", tc.want)
			}
		})
	}
}

func TestOptionalUnmarshalJSON(t *testing.T) {
	var upd ExpenseUpdate
	if err := json.Unmarshal([]byte(`{"subcategory":"","note":null,"amount":12.5}`), &upd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := upd.Subcategory.Get(); !ok || v != "" {
		t.Fatalf("subcategory should be set to empty, got %q set=%v", v, ok)
	}
	if upd.Note.Set {
		t.Fatalf("null note should stay unset")
	}
	if upd.Date.Set || upd.Category.Set {
		t.Fatalf("absent keys should stay unset")
	}
	if v, ok := upd.Amount.Get(); !ok || v != 12.5 {
		t.Fatalf("amount expected 12.5, got %v set=%v", v, ok)
	}

	var bad Optional[float64]
	if err := json.Unmarshal([]byte(`"abc"`), &bad); err == nil {
		t.Fatalf("expected type error")
	}
}
