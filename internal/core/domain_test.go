package core

import (
	"errors"
	"testing"
)

func TestEntryParamsValidate(t *testing.T) {
	valid := EntryParams{
		Date:        "2024-01-05",
		Category:    "Food",
		AmountCents: 1250,
		Kind:        KindExpense,
	}

	t.Run("valid params", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("empty date is allowed", func(t *testing.T) {
		p := valid
		p.Date = ""
		if err := p.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("empty category", func(t *testing.T) {
		p := valid
		p.Category = "  "
		if err := p.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		p := valid
		p.Kind = "Transfer"
		if err := p.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("malformed date", func(t *testing.T) {
		p := valid
		p.Date = "05/01/2024"
		if err := p.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})
}

func TestKindValid(t *testing.T) {
	if !KindCredit.Valid() || !KindExpense.Valid() {
		t.Fatal("known kinds should be valid")
	}
	if Kind("type").Valid() {
		t.Fatal("placeholder kind should not be valid")
	}
}

func TestTotalsBalance(t *testing.T) {
	tot := Totals{IncomeCents: 200000, SpendingCents: 1250}
	if got := tot.BalanceCents(); got != 198750 {
		t.Fatalf("BalanceCents() = %d, want 198750", got)
	}
}
