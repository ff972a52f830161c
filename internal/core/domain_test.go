package core

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultCategories(t *testing.T) {
	cats := DefaultCategories()
	if len(cats) != 15 {
		t.Fatalf("expected 15 defaults, got %d", len(cats))
	}
	var income, expense int
	seen := map[string]bool{}
	for i, c := range cats {
		if c.ID != "" {
			t.Fatalf("default %q must not carry an id", c.Name)
		}
		if c.SortOrder != i {
			t.Fatalf("default %q sort order %d, want %d", c.Name, c.SortOrder, i)
		}
		if seen[c.Name] {
			t.Fatalf("duplicate default name %q", c.Name)
		}
		seen[c.Name] = true
		if err := c.Validate(); err != nil {
			t.Fatalf("default %q invalid: %v", c.Name, err)
		}
		switch c.Type {
		case TypeIncome:
			income++
		case TypeExpense:
			expense++
		}
	}
	if income != 5 || expense != 10 {
		t.Fatalf("expected 5 income / 10 expense, got %d / %d", income, expense)
	}

	// Callers get copies.
	cats[0].Label = "changed"
	if DefaultCategories()[0].Label == "changed" {
		t.Fatalf("DefaultCategories must return a copy")
	}
}

func TestCategoryValidate(t *testing.T) {
	good := Category{Name: "toner", Label: "Toner", Type: TypeExpense}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Category{
		{Name: "", Label: "x", Type: TypeIncome},
		{Name: "x", Label: "  ", Type: TypeIncome},
		{Name: "x", Label: "x", Type: "other"},
	}
	for i, c := range bads {
		err := c.Validate()
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestDraftValidate(t *testing.T) {
	good := Draft{Type: TypeIncome, Category: "photocopy", Amount: Money{Cents: 100}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Draft{
		{Type: "x", Category: "c", Amount: Money{Cents: 1}},
		{Type: TypeIncome, Category: "", Amount: Money{Cents: 1}},
		{Type: TypeIncome, Category: "c", Amount: Money{Cents: 0}},
		{Type: TypeIncome, Category: "c", Amount: Money{Cents: -5}},
	}
	for i, d := range bads {
		if err := d.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestDirection(t *testing.T) {
	if StockIn.LedgerType() != TypeExpense || StockOut.LedgerType() != TypeIncome {
		t.Fatalf("unexpected ledger mapping")
	}
	if got := StockOut.Apply(0, 1); got != -1 {
		t.Fatalf("stock out must not floor at zero, got %d", got)
	}
	if got := StockIn.Apply(7, 3); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
}

func TestTransactionFilterMatch(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tx := Transaction{Type: TypeIncome, Category: "printing", Timestamp: day.Add(time.Hour)}
	cases := []struct {
		f  TransactionFilter
		ok bool
	}{
		{TransactionFilter{}, true},
		{TransactionFilter{From: day, To: day.Add(24 * time.Hour)}, true},
		{TransactionFilter{To: day.Add(time.Hour)}, false},
		{TransactionFilter{Category: "rent"}, false},
		{TransactionFilter{Type: TypeExpense}, false},
	}
	for i, tc := range cases {
		if got := tc.f.Match(tx); got != tc.ok {
			t.Fatalf("case %d expected %v, got %v", i, tc.ok, got)
		}
	}
}

func TestRemoteKeepsClass(t *testing.T) {
	err := Remote("delete category", ErrCategoryInUse)
	if !errors.Is(err, ErrConflict) || errors.Is(err, ErrRemote) {
		t.Fatalf("conflict must stay a conflict: %v", err)
	}
	err = Remote("insert", errors.New("connection reset"))
	if !errors.Is(err, ErrRemote) {
		t.Fatalf("expected remote failure: %v", err)
	}
	if Kind(err) != "remote_failure" {
		t.Fatalf("unexpected kind %q", Kind(err))
	}
}
