/*
Package statement models the bank-transaction statement the reconciliation
engine reads: dated, signed, categorized transactions with up to three
free-text reference fields.

The statement is a read-only collaborator. The engine filters it by period
(inclusive start, exclusive close) and matches auto-matching reference
tokens against the reference fields.
*/
package statement

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind distinguishes debit-type from credit-type transactions. Note the
// kind describes the bank's transaction class; the signed amount is
// authoritative for arithmetic.
type Kind string

const (
	KindDebit  Kind = "debit"
	KindCredit Kind = "credit"
)

// Transaction is one statement line.
type Transaction struct {
	ID          uuid.UUID
	Date        time.Time
	Amount      decimal.Decimal
	Account     string
	BucketCode  string // budget-bucket categorization; empty = uncategorized
	Kind        Kind
	Description string
	Reference1  string
	Reference2  string
	Reference3  string
}

// MatchesReference reports whether any reference field equals the token.
func (t Transaction) MatchesReference(token string) bool {
	if token == "" {
		return false
	}
	return t.Reference1 == token || t.Reference2 == token || t.Reference3 == token
}

// Narrative derives the ledger narrative for a statement-derived
// transaction: description then reference fields 1-3, semicolon-joined,
// falling back to the category label or a placeholder when all are empty.
func (t Transaction) Narrative() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{t.Description, t.Reference1, t.Reference2, t.Reference3} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "; ")
	}
	if t.BucketCode != "" {
		return t.BucketCode
	}
	return "[No description]"
}

// Statement is an enumerable of transactions.
type Statement struct {
	Transactions []Transaction
}

// InPeriod selects transactions with date in [start, close) - inclusive of
// the start boundary, exclusive of the closing boundary.
func (s *Statement) InPeriod(start, close time.Time) []Transaction {
	var out []Transaction
	for _, t := range s.Transactions {
		if !t.Date.Before(start) && t.Date.Before(close) {
			out = append(out, t)
		}
	}
	return out
}

// OnOrAfter selects transactions dated on or after the given date.
func (s *Statement) OnOrAfter(date time.Time) []Transaction {
	var out []Transaction
	for _, t := range s.Transactions {
		if !t.Date.Before(date) {
			out = append(out, t)
		}
	}
	return out
}

// EarliestDate returns the earliest transaction date, or the zero time for
// an empty statement.
func (s *Statement) EarliestDate() time.Time {
	var earliest time.Time
	for _, t := range s.Transactions {
		if earliest.IsZero() || t.Date.Before(earliest) {
			earliest = t.Date
		}
	}
	return earliest
}

// LastTransactionDateBefore returns the most recent transaction date
// strictly before the given date, or the zero time when there is none.
func (s *Statement) LastTransactionDateBefore(date time.Time) time.Time {
	var last time.Time
	for _, t := range s.Transactions {
		if t.Date.Before(date) && t.Date.After(last) {
			last = t.Date
		}
	}
	return last
}
