// Package store implements the SQLite-backed ledger store: accounts,
// entries, and the aggregate queries over them.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ledger/internal/core"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Filter restricts entry listings and totals. Zero-value fields are ignored.
// Start and End are inclusive and compared lexicographically, which matches
// chronological order for the fixed-width stored date format.
type Filter struct {
	Start    string
	End      string
	Category string
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Ping reports whether the database is reachable, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Register creates an account with a bcrypt-hashed credential.
// A taken name fails with core.ErrDuplicateName.
func (s *Store) Register(ctx context.Context, name, password string) (core.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return core.Account{}, fmt.Errorf("hash password: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, password_hash) VALUES (?, ?)`,
		name, string(hash))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Account{}, core.ErrDuplicateName
		}
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("read account id: %w", err)
	}

	slog.InfoContext(ctx, "Account registered", "account_id", id, "name", name)

	return core.Account{ID: id, Name: name, PasswordHash: string(hash)}, nil
}

// Authenticate looks up an account by name and verifies the credential.
// Unknown name and credential mismatch fail identically with
// core.ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, name, password string) (core.Account, error) {
	var acc core.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, password_hash, created_at FROM accounts WHERE name = ?`,
		name).Scan(&acc.ID, &acc.Name, &acc.PasswordHash, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("select account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return core.Account{}, core.ErrInvalidCredentials
	}

	return acc, nil
}

// AddEntry inserts a new entry owned by accountID. An empty date defaults to
// the current date.
func (s *Store) AddEntry(ctx context.Context, accountID int64, p core.EntryParams) (core.Entry, error) {
	if err := p.Validate(); err != nil {
		return core.Entry{}, err
	}
	if p.Date == "" {
		p.Date = core.Today()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (account_id, date, category, amount_cents, description, kind)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		accountID, p.Date, p.Category, p.AmountCents, p.Description, string(p.Kind))
	if err != nil {
		return core.Entry{}, fmt.Errorf("insert entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Entry{}, fmt.Errorf("read entry id: %w", err)
	}

	slog.InfoContext(ctx, "Entry added",
		"entry_id", id,
		"account_id", accountID,
		"date", p.Date,
		"category", p.Category,
		"amount_cents", p.AmountCents,
		"kind", string(p.Kind))

	return core.Entry{
		ID:          id,
		AccountID:   accountID,
		Date:        p.Date,
		Category:    p.Category,
		AmountCents: p.AmountCents,
		Description: p.Description,
		Kind:        p.Kind,
	}, nil
}

// EditEntry replaces all mutable fields of the entry, but only if it is owned
// by accountID; otherwise it fails with core.ErrNotFound. An empty date
// retains the entry's stored date, not today's.
func (s *Store) EditEntry(ctx context.Context, accountID, entryID int64, p core.EntryParams) (core.Entry, error) {
	if err := p.Validate(); err != nil {
		return core.Entry{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Entry{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existingDate string
	err = tx.QueryRowContext(ctx,
		`SELECT date FROM entries WHERE id = ? AND account_id = ?`,
		entryID, accountID).Scan(&existingDate)
	if errors.Is(err, sql.ErrNoRows) {
		// Absent and not-owned are indistinguishable on purpose.
		return core.Entry{}, core.ErrNotFound
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("select entry: %w", err)
	}

	if p.Date == "" {
		p.Date = existingDate
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE entries SET date = ?, category = ?, amount_cents = ?, description = ?, kind = ?
		 WHERE id = ? AND account_id = ?`,
		p.Date, p.Category, p.AmountCents, p.Description, string(p.Kind), entryID, accountID)
	if err != nil {
		return core.Entry{}, fmt.Errorf("update entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Entry{}, fmt.Errorf("commit tx: %w", err)
	}

	slog.InfoContext(ctx, "Entry updated", "entry_id", entryID, "account_id", accountID)

	return core.Entry{
		ID:          entryID,
		AccountID:   accountID,
		Date:        p.Date,
		Category:    p.Category,
		AmountCents: p.AmountCents,
		Description: p.Description,
		Kind:        p.Kind,
	}, nil
}

// DeleteEntry removes the entry if owned by accountID. The returned bool
// reports whether anything matched; a miss is not an error.
func (s *Store) DeleteEntry(ctx context.Context, accountID, entryID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE id = ? AND account_id = ?`,
		entryID, accountID)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Entry deleted", "entry_id", entryID, "account_id", accountID)
	}
	return n > 0, nil
}

// GetEntry fetches a single owned entry, for edit forms.
func (s *Store) GetEntry(ctx context.Context, accountID, entryID int64) (core.Entry, error) {
	var e core.Entry
	err := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, date, category, amount_cents, description, kind
		 FROM entries WHERE id = ? AND account_id = ?`,
		entryID, accountID).Scan(&e.ID, &e.AccountID, &e.Date, &e.Category, &e.AmountCents, &e.Description, &e.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, core.ErrNotFound
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("select entry: %w", err)
	}
	return e, nil
}

// ListEntries returns the account's entries matching the filter, ordered by
// date descending with entry id descending as tiebreak.
func (s *Store) ListEntries(ctx context.Context, accountID int64, f Filter) ([]core.Entry, error) {
	query := `SELECT id, account_id, date, category, amount_cents, description, kind
	          FROM entries WHERE account_id = ?`
	args := []any{accountID}
	query, args = appendFilter(query, args, f)
	query += ` ORDER BY date DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []core.Entry{}
	for rows.Next() {
		var e core.Entry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Date, &e.Category, &e.AmountCents, &e.Description, &e.Kind); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

// SummarizeTotals applies the same filter semantics as ListEntries and sums
// Credit amounts into income and Expense amounts into spending.
func (s *Store) SummarizeTotals(ctx context.Context, accountID int64, f Filter) (core.Totals, error) {
	query := `SELECT
	            COALESCE(SUM(CASE WHEN kind = 'Credit' THEN amount_cents ELSE 0 END), 0),
	            COALESCE(SUM(CASE WHEN kind = 'Expense' THEN amount_cents ELSE 0 END), 0)
	          FROM entries WHERE account_id = ?`
	args := []any{accountID}
	query, args = appendFilter(query, args, f)

	var t core.Totals
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&t.IncomeCents, &t.SpendingCents); err != nil {
		return core.Totals{}, fmt.Errorf("summarize totals: %w", err)
	}
	return t, nil
}

// ListCategories returns the distinct categories used by the account,
// ascending, for filter dropdowns.
func (s *Store) ListCategories(ctx context.Context, accountID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM entries WHERE account_id = ? ORDER BY category ASC`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	return categories, nil
}

// MonthlyBreakdown groups the account's entries by calendar month, ascending.
func (s *Store) MonthlyBreakdown(ctx context.Context, accountID int64) ([]core.MonthSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT substr(date, 1, 7) AS month,
		        COALESCE(SUM(CASE WHEN kind = 'Credit' THEN amount_cents ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN kind = 'Expense' THEN amount_cents ELSE 0 END), 0)
		 FROM entries WHERE account_id = ?
		 GROUP BY month ORDER BY month ASC`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("monthly breakdown: %w", err)
	}
	defer rows.Close()

	months := []core.MonthSummary{}
	for rows.Next() {
		var m core.MonthSummary
		if err := rows.Scan(&m.Month, &m.IncomeCents, &m.SpendingCents); err != nil {
			return nil, fmt.Errorf("scan month summary: %w", err)
		}
		months = append(months, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate month summaries: %w", err)
	}

	return months, nil
}

// CategoryBreakdown groups by category, highest combined activity first.
func (s *Store) CategoryBreakdown(ctx context.Context, accountID int64) ([]core.CategorySummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category,
		        COALESCE(SUM(CASE WHEN kind = 'Credit' THEN amount_cents ELSE 0 END), 0) AS income,
		        COALESCE(SUM(CASE WHEN kind = 'Expense' THEN amount_cents ELSE 0 END), 0) AS spending
		 FROM entries WHERE account_id = ?
		 GROUP BY category ORDER BY (income + spending) DESC, category ASC`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	defer rows.Close()

	categories := []core.CategorySummary{}
	for rows.Next() {
		var c core.CategorySummary
		if err := rows.Scan(&c.Category, &c.IncomeCents, &c.SpendingCents); err != nil {
			return nil, fmt.Errorf("scan category summary: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category summaries: %w", err)
	}

	return categories, nil
}

// BulkImport inserts one entry per row, all owned by accountID, with the
// kind defaulted to core.DefaultImportKind. The batch is atomic: any failure
// rolls back every row and fails with core.ErrImport.
func (s *Store) BulkImport(ctx context.Context, accountID int64, rows []core.ImportRow) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (account_id, date, category, amount_cents, description, kind)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		date := row.Date
		if date == "" {
			date = core.Today()
		}
		if _, err := stmt.ExecContext(ctx, accountID, date, row.Category, row.AmountCents, row.Description, string(core.DefaultImportKind)); err != nil {
			return 0, fmt.Errorf("%w: row %d: %v", core.ErrImport, i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Bulk import completed", "account_id", accountID, "rows", len(rows))

	return len(rows), nil
}

// ExportAll returns every entry owned by the account, newest first.
func (s *Store) ExportAll(ctx context.Context, accountID int64) ([]core.Entry, error) {
	return s.ListEntries(ctx, accountID, Filter{})
}

// appendFilter extends a WHERE clause with the optional filter constraints.
// Conjunctive: every present field adds a constraint.
func appendFilter(query string, args []any, f Filter) (string, []any) {
	if f.Start != "" {
		query += ` AND date >= ?`
		args = append(args, f.Start)
	}
	if f.End != "" {
		query += ` AND date <= ?`
		args = append(args, f.End)
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	return query, args
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
