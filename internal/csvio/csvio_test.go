package csvio

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"ledger/internal/core"
)

func TestExport(t *testing.T) {
	entries := []core.Entry{
		{Date: "2024-02-01", Kind: core.KindCredit, Category: "Salary", AmountCents: 200000, Description: "payday"},
		{Date: "2024-01-05", Kind: core.KindExpense, Category: "Food", AmountCents: 1250, Description: "lunch, with colleagues"},
	}

	var buf bytes.Buffer
	if err := Export(&buf, entries); err != nil {
		t.Fatalf("export: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if lines[0] != "Date,Type,Category,Amount,Description" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "2024-02-01,Credit,Salary,2000.00,payday" {
		t.Fatalf("row 1 = %q", lines[1])
	}
	// Comma in description must be quoted.
	if lines[2] != `2024-01-05,Expense,Food,12.50,"lunch, with colleagues"` {
		t.Fatalf("row 2 = %q", lines[2])
	}
}

func TestParseImport(t *testing.T) {
	in := "date,category,amount,description\n" +
		"2024-01-05,Food,12.50,lunch\n" +
		"2024-02-01,Salary,2000.00,\n"

	rows, err := ParseImport(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Date != "2024-01-05" || rows[0].Category != "Food" || rows[0].AmountCents != 1250 || rows[0].Description != "lunch" {
		t.Fatalf("row 0 = %+v", rows[0])
	}
	if rows[1].AmountCents != 200000 {
		t.Fatalf("row 1 amount = %d, want 200000", rows[1].AmountCents)
	}
}

func TestParseImportOfExportedFile(t *testing.T) {
	entries := []core.Entry{
		{Date: "2024-01-05", Kind: core.KindExpense, Category: "Food", AmountCents: 1250, Description: "lunch"},
		{Date: "2024-02-01", Kind: core.KindCredit, Category: "Salary", AmountCents: 200000},
	}

	var buf bytes.Buffer
	if err := Export(&buf, entries); err != nil {
		t.Fatalf("export: %v", err)
	}

	rows, err := ParseImport(&buf)
	if err != nil {
		t.Fatalf("parse exported file: %v", err)
	}
	if len(rows) != len(entries) {
		t.Fatalf("round trip count = %d, want %d", len(rows), len(entries))
	}
	// The Type column is dropped; everything else survives.
	for i, row := range rows {
		if row.Date != entries[i].Date || row.Category != entries[i].Category || row.AmountCents != entries[i].AmountCents {
			t.Fatalf("row %d = %+v, want fields of %+v", i, row, entries[i])
		}
	}
}

func TestParseImportErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty file", ""},
		{"missing columns", "date,amount\n2024-01-05,12.50\n"},
		{"non-numeric amount", "date,category,amount,description\n2024-01-05,Food,abc,lunch\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseImport(strings.NewReader(tt.in)); !errors.Is(err, core.ErrImport) {
				t.Fatalf("expected ErrImport, got %v", err)
			}
		})
	}
}
