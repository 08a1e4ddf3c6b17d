package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// KindCredit marks an entry as income.
	KindCredit Kind = "Credit"
	// KindExpense marks an entry as spending.
	KindExpense Kind = "Expense"

	// DefaultImportKind is assigned to entries created through bulk import,
	// whose row format carries no kind column.
	DefaultImportKind = KindExpense

	// DateLayout is the stored date format. Zero-padded and fixed-width, so
	// lexicographic comparison on stored dates matches chronological order.
	DateLayout = "2006-01-02"
)

type (
	Kind string

	Account struct {
		ID           int64
		Name         string
		PasswordHash string
		CreatedAt    time.Time
	}

	Entry struct {
		ID          int64
		AccountID   int64
		Date        string // DateLayout
		Category    string
		AmountCents int64
		Description string
		Kind        Kind
	}

	// EntryParams carries the mutable fields for add and edit operations.
	// An empty Date means "apply the operation's default policy": today for
	// add, the stored date for edit.
	EntryParams struct {
		Date        string
		Category    string
		AmountCents int64
		Description string
		Kind        Kind
	}

	// ImportRow is one parsed row of a bulk import. The row format carries
	// no kind; the store assigns DefaultImportKind.
	ImportRow struct {
		Date        string
		Category    string
		AmountCents int64
		Description string
	}

	Totals struct {
		IncomeCents   int64
		SpendingCents int64
	}

	MonthSummary struct {
		Month         string // YYYY-MM
		IncomeCents   int64
		SpendingCents int64
	}

	CategorySummary struct {
		Category      string
		IncomeCents   int64
		SpendingCents int64
	}
)

var (
	ErrDuplicateName      = errors.New("account name already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("entry not found")
	ErrImport             = errors.New("import failed")
	ErrValidation         = errors.New("validation failed")
)

// Valid reports whether k is one of the two known entry kinds.
func (k Kind) Valid() bool {
	return k == KindCredit || k == KindExpense
}

// BalanceCents is derived, never stored.
func (t Totals) BalanceCents() int64 {
	return t.IncomeCents - t.SpendingCents
}

func (p EntryParams) Validate() error {
	if strings.TrimSpace(p.Category) == "" {
		return fmt.Errorf("%w: empty category", ErrValidation)
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrValidation, string(p.Kind))
	}
	if p.Date != "" {
		if _, err := time.Parse(DateLayout, p.Date); err != nil {
			return fmt.Errorf("%w: bad date %q", ErrValidation, p.Date)
		}
	}
	return nil
}

// Today returns the current date in the stored format.
func Today() string {
	return time.Now().Format(DateLayout)
}
