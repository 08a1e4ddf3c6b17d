// Package csvio encodes entries to and decodes import rows from the ledger's
// tabular exchange format.
//
// Export writes `Date,Type,Category,Amount,Description`. Import consumes
// files whose header names at least date, category, amount and description
// columns; extra columns (such as the Type column of an exported file) are
// ignored, so an export re-imports cleanly.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"ledger/internal/core"
)

// ExportHeader is the fixed header row of exported files.
var ExportHeader = []string{"Date", "Type", "Category", "Amount", "Description"}

// Export writes entries as CSV in the given order.
func Export(w io.Writer, entries []core.Entry) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		record := []string{
			e.Date,
			string(e.Kind),
			e.Category,
			core.FormatCents(e.AmountCents),
			e.Description,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ParseImport reads a CSV import file into rows ready for the store.
// The header row is required and maps columns by name, case-insensitively.
// A row whose amount does not parse as a number fails the whole file with
// an error wrapping core.ErrImport.
func ParseImport(r io.Reader) ([]core.ImportRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", core.ErrImport)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", core.ErrImport, err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var rows []core.ImportRow
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", core.ErrImport, line, err)
		}

		cents, err := core.ParseAmountToCents(record[cols.amount])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad amount %q", core.ErrImport, line, record[cols.amount])
		}

		rows = append(rows, core.ImportRow{
			Date:        strings.TrimSpace(record[cols.date]),
			Category:    strings.TrimSpace(record[cols.category]),
			AmountCents: cents,
			Description: strings.TrimSpace(record[cols.description]),
		})
	}

	return rows, nil
}

type columnIndexes struct {
	date, category, amount, description int
}

func mapColumns(header []string) (columnIndexes, error) {
	cols := columnIndexes{date: -1, category: -1, amount: -1, description: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date":
			cols.date = i
		case "category":
			cols.category = i
		case "amount":
			cols.amount = i
		case "description":
			cols.description = i
		}
	}
	if cols.date < 0 || cols.category < 0 || cols.amount < 0 || cols.description < 0 {
		return cols, fmt.Errorf("%w: header must name date, category, amount and description columns", core.ErrImport)
	}
	return cols, nil
}
