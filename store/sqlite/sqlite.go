/*
Package sqlite provides SQLite-backed persistence for ledger books.

PURPOSE:
  Stores and rehydrates whole ledger books: the canonical bucket set,
  declared opening balances, and every reconciliation line with its
  entries, transactions, declared bank balances and balance adjustments.

KEY TABLES:
  books:    One row per ledger book (name, modified timestamp)
  buckets:  Current canonical bucket set per book
  openings: Declared opening balances for first reconciliations
  lines:    One row per reconciliation line; bank balances and balance
            adjustments are stored as JSON alongside
  entries:  One row per bucket per line; the transaction list is JSON

APPEND-ONLY SEMANTICS:
  Reconciliation lines are historical records. SaveBook inserts lines and
  entries it has not seen and otherwise only refreshes the entry
  transaction JSON: resolving an auto-matching reference legitimately
  flips the matched flag on a previously committed line, and that
  transition must survive a restart. Nothing is ever deleted.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/book.go: The aggregate being persisted
  - api/server.go: HTTP surface loading and saving books
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Benrnz/BudgetAnalyser-sub004/ledger"
)

// ErrBookNotFound is returned when loading a book that was never saved.
var ErrBookNotFound = errors.New("ledger book not found")

// Store persists ledger books in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		name TEXT PRIMARY KEY,
		modified TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS buckets (
		book_name TEXT NOT NULL,
		code TEXT NOT NULL,
		stored_in_account TEXT NOT NULL,
		kind TEXT NOT NULL,
		PRIMARY KEY (book_name, code)
	);

	CREATE TABLE IF NOT EXISTS openings (
		book_name TEXT NOT NULL,
		bucket_code TEXT NOT NULL,
		balance TEXT NOT NULL,
		PRIMARY KEY (book_name, bucket_code)
	);

	-- Reconciliation lines, one per closed period. Historical, never
	-- deleted. Bank balances and adjustments travel with the line.
	CREATE TABLE IF NOT EXISTS lines (
		id TEXT PRIMARY KEY,
		book_name TEXT NOT NULL,
		date TEXT NOT NULL,
		remarks TEXT,
		bank_balances_json TEXT NOT NULL,
		adjustments_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (book_name, date)
	);

	CREATE INDEX IF NOT EXISTS idx_lines_book_date
		ON lines(book_name, date DESC);

	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		line_id TEXT NOT NULL,
		bucket_code TEXT NOT NULL,
		stored_in_account TEXT NOT NULL,
		kind TEXT NOT NULL,
		opening_balance TEXT NOT NULL,
		closing_balance TEXT NOT NULL,
		transactions_json TEXT NOT NULL,
		UNIQUE (line_id, bucket_code)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_line
		ON entries(line_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ==== JSON SHAPES ============================================================

type bankBalanceRecord struct {
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

type transactionRecord struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Narrative    string          `json:"narrative,omitempty"`
	Date         *time.Time      `json:"date,omitempty"`
	AutoMatchRef string          `json:"auto_match_ref,omitempty"`
	Matched      bool            `json:"matched,omitempty"`
	BankAccount  string          `json:"bank_account,omitempty"`
}

func toTransactionRecords(txs []*ledger.Transaction) []transactionRecord {
	out := make([]transactionRecord, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionRecord{
			ID:           tx.ID.String(),
			Kind:         string(tx.Kind),
			Amount:       tx.Amount,
			Narrative:    tx.Narrative,
			Date:         tx.Date,
			AutoMatchRef: tx.AutoMatchRef,
			Matched:      tx.Matched,
			BankAccount:  tx.BankAccount,
		})
	}
	return out
}

func fromTransactionRecords(records []transactionRecord) ([]*ledger.Transaction, error) {
	out := make([]*ledger.Transaction, 0, len(records))
	for _, r := range records {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("bad transaction id %q: %w", r.ID, err)
		}
		out = append(out, &ledger.Transaction{
			ID:           id,
			Kind:         ledger.TransactionKind(r.Kind),
			Amount:       r.Amount,
			Narrative:    r.Narrative,
			Date:         r.Date,
			AutoMatchRef: r.AutoMatchRef,
			Matched:      r.Matched,
			BankAccount:  r.BankAccount,
		})
	}
	return out, nil
}

func toBankBalanceRecords(balances []ledger.BankBalance) []bankBalanceRecord {
	out := make([]bankBalanceRecord, 0, len(balances))
	for _, b := range balances {
		out = append(out, bankBalanceRecord{Account: b.Account, Balance: b.Balance})
	}
	return out
}

func fromBankBalanceRecords(records []bankBalanceRecord) []ledger.BankBalance {
	out := make([]ledger.BankBalance, 0, len(records))
	for _, r := range records {
		out = append(out, ledger.BankBalance{Account: r.Account, Balance: r.Balance})
	}
	return out
}

// ==== SAVE ===================================================================

// SaveBook persists the book: metadata and bucket set are replaced, lines
// and entries are appended, and entry transaction JSON is refreshed so
// auto-match state transitions on earlier lines are not lost.
func (s *Store) SaveBook(ctx context.Context, book *ledger.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO books (name, modified) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET modified = excluded.modified`,
		book.Name, book.Modified.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to save book %s: %w", book.Name, err)
	}

	// The canonical bucket set and declared openings are current state,
	// not history; replace wholesale.
	if _, err := tx.ExecContext(ctx, `DELETE FROM buckets WHERE book_name = ?`, book.Name); err != nil {
		return err
	}
	for _, bucket := range book.Buckets() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO buckets (book_name, code, stored_in_account, kind) VALUES (?, ?, ?, ?)`,
			book.Name, bucket.BudgetBucketCode, bucket.StoredInAccount, string(bucket.Kind)); err != nil {
			return fmt.Errorf("failed to save bucket %s: %w", bucket.BudgetBucketCode, err)
		}
		opening := book.DeclaredOpening(bucket.BudgetBucketCode)
		if opening.IsZero() {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO openings (book_name, bucket_code, balance) VALUES (?, ?, ?)
			ON CONFLICT(book_name, bucket_code) DO UPDATE SET balance = excluded.balance`,
			book.Name, bucket.BudgetBucketCode, opening.String()); err != nil {
			return err
		}
	}

	for _, line := range book.Lines() {
		if err := s.saveLine(ctx, tx, book.Name, line, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) saveLine(ctx context.Context, tx *sql.Tx, bookName string, line *ledger.EntryLine, now string) error {
	lineID := lineKey(bookName, line.Date)

	balancesJSON, err := json.Marshal(toBankBalanceRecords(line.BankBalances()))
	if err != nil {
		return err
	}
	adjustmentsJSON, err := json.Marshal(toTransactionRecords(line.BalanceAdjustments()))
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO lines (id, book_name, date, remarks, bank_balances_json, adjustments_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET adjustments_json = excluded.adjustments_json`,
		lineID, bookName, line.Date.UTC().Format(time.RFC3339), line.Remarks,
		string(balancesJSON), string(adjustmentsJSON), now); err != nil {
		return fmt.Errorf("failed to save line %s: %w", line.Date.Format("2006-01-02"), err)
	}

	for _, entry := range line.Entries() {
		txsJSON, err := json.Marshal(toTransactionRecords(entry.Transactions()))
		if err != nil {
			return err
		}
		bucket := entry.Bucket()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entries (id, line_id, bucket_code, stored_in_account, kind, opening_balance, closing_balance, transactions_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(line_id, bucket_code) DO UPDATE SET
				closing_balance = excluded.closing_balance,
				transactions_json = excluded.transactions_json`,
			uuid.NewString(), lineID, bucket.BudgetBucketCode, bucket.StoredInAccount, string(bucket.Kind),
			entry.OpeningBalance().String(), entry.Balance().String(), string(txsJSON)); err != nil {
			return fmt.Errorf("failed to save entry %s: %w", bucket.BudgetBucketCode, err)
		}
	}
	return nil
}

func lineKey(bookName string, date time.Time) string {
	return bookName + "|" + date.UTC().Format(time.RFC3339)
}

// ==== LOAD ===================================================================

// LoadBook rehydrates a complete ledger book, lines most recent first.
func (s *Store) LoadBook(ctx context.Context, name string) (*ledger.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var modified string
	err := s.db.QueryRowContext(ctx, `SELECT modified FROM books WHERE name = ?`, name).Scan(&modified)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load book %s: %w", name, err)
	}

	book := ledger.NewBook(name)
	if ts, err := time.Parse(time.RFC3339, modified); err == nil {
		book.Modified = ts
	}

	if err := s.loadBuckets(ctx, book); err != nil {
		return nil, err
	}
	if err := s.loadOpenings(ctx, book); err != nil {
		return nil, err
	}
	if err := s.loadLines(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// ListBooks returns the names of all saved books.
func (s *Store) ListBooks(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM books ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *Store) loadBuckets(ctx context.Context, book *ledger.Book) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, stored_in_account, kind FROM buckets WHERE book_name = ? ORDER BY code`, book.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var code, account, kind string
		if err := rows.Scan(&code, &account, &kind); err != nil {
			return err
		}
		book.TrackBucket(ledger.Bucket{
			BudgetBucketCode: code,
			StoredInAccount:  account,
			Kind:             ledger.BucketKind(kind),
		})
	}
	return rows.Err()
}

func (s *Store) loadOpenings(ctx context.Context, book *ledger.Book) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bucket_code, balance FROM openings WHERE book_name = ?`, book.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var code, balance string
		if err := rows.Scan(&code, &balance); err != nil {
			return err
		}
		amount, err := decimal.NewFromString(balance)
		if err != nil {
			return fmt.Errorf("bad opening balance for %s: %w", code, err)
		}
		book.SetDeclaredOpening(code, amount)
	}
	return rows.Err()
}

func (s *Store) loadLines(ctx context.Context, book *ledger.Book) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, remarks, bank_balances_json, adjustments_json
		FROM lines WHERE book_name = ? ORDER BY date DESC`, book.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	type lineRow struct {
		id, date, remarks, balances, adjustments string
	}
	var lineRows []lineRow
	for rows.Next() {
		var r lineRow
		if err := rows.Scan(&r.id, &r.date, &r.remarks, &r.balances, &r.adjustments); err != nil {
			return err
		}
		lineRows = append(lineRows, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range lineRows {
		date, err := time.Parse(time.RFC3339, r.date)
		if err != nil {
			return fmt.Errorf("bad line date %q: %w", r.date, err)
		}

		var balanceRecords []bankBalanceRecord
		if err := json.Unmarshal([]byte(r.balances), &balanceRecords); err != nil {
			return fmt.Errorf("bad bank balances for line %s: %w", r.date, err)
		}
		var adjustmentRecords []transactionRecord
		if err := json.Unmarshal([]byte(r.adjustments), &adjustmentRecords); err != nil {
			return fmt.Errorf("bad adjustments for line %s: %w", r.date, err)
		}
		adjustments, err := fromTransactionRecords(adjustmentRecords)
		if err != nil {
			return err
		}

		entries, err := s.loadEntries(ctx, r.id)
		if err != nil {
			return err
		}

		book.RestoreLine(ledger.RehydrateLine(date, r.remarks, fromBankBalanceRecords(balanceRecords), adjustments, entries))
	}
	return nil
}

func (s *Store) loadEntries(ctx context.Context, lineID string) ([]*ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bucket_code, stored_in_account, kind, opening_balance, closing_balance, transactions_json
		FROM entries WHERE line_id = ? ORDER BY bucket_code`, lineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		var code, account, kind, opening, closing, txsJSON string
		if err := rows.Scan(&code, &account, &kind, &opening, &closing, &txsJSON); err != nil {
			return nil, err
		}
		openingBalance, err := decimal.NewFromString(opening)
		if err != nil {
			return nil, fmt.Errorf("bad opening balance for %s: %w", code, err)
		}
		closingBalance, err := decimal.NewFromString(closing)
		if err != nil {
			return nil, fmt.Errorf("bad closing balance for %s: %w", code, err)
		}
		var txRecords []transactionRecord
		if err := json.Unmarshal([]byte(txsJSON), &txRecords); err != nil {
			return nil, fmt.Errorf("bad transactions for %s: %w", code, err)
		}
		txs, err := fromTransactionRecords(txRecords)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ledger.RehydrateEntry(ledger.Bucket{
			BudgetBucketCode: code,
			StoredInAccount:  account,
			Kind:             ledger.BucketKind(kind),
		}, openingBalance, closingBalance, txs))
	}
	return entries, rows.Err()
}
