/*
transaction.go - Ledger transaction variants

PURPOSE:
  A LedgerTransaction is a single signed monetary movement inside one
  ledger entry (or, for balance adjustments, inside a reconciliation line).
  Transactions are the only way a bucket balance changes; balances are
  always derived by summing them.

VARIANTS:
  KindBudgetCredit       The budgeted amount injected each period.
  KindCredit             Any statement-derived or manual movement.
  KindBalanceAdjustment  A bank-balance correction not tied to a bucket
                         (future-dated transactions, misattributed payments).

AUTO-MATCHING:
  A transaction may carry an auto-matching reference: an opaque token that
  links an expected transfer to a real statement transaction, possibly in a
  later period. Matching is a one-time state transition (pending -> matched)
  recorded by the Matched flag. A matched transaction is never re-matched.

SEE ALSO:
  - entry.go: Transactions live inside a LedgerEntry
  - reconcile/builder.go: Creates budget credits and resolves references
*/
package ledger

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind distinguishes the ledger transaction variants.
type TransactionKind string

const (
	KindBudgetCredit      TransactionKind = "budget_credit"
	KindCredit            TransactionKind = "credit"
	KindBalanceAdjustment TransactionKind = "balance_adjustment"
)

// ErrAlreadyMatched is returned when a resolved auto-matching reference is
// marked matched a second time.
var ErrAlreadyMatched = errors.New("auto-matching reference already resolved")

// Transaction is one signed monetary movement within a ledger entry.
type Transaction struct {
	ID        uuid.UUID
	Kind      TransactionKind
	Amount    decimal.Decimal
	Narrative string
	Date      *time.Time

	// AutoMatchRef is an opaque token linking this transaction to a future
	// statement transaction. Empty means no matching is expected.
	AutoMatchRef string
	Matched      bool

	// BankAccount is set only for balance adjustments: the account whose
	// declared balance is being corrected.
	BankAccount string
}

// NewBudgetCredit creates the budgeted-amount transaction for a bucket.
func NewBudgetCredit(amount decimal.Decimal, narrative string, date time.Time) *Transaction {
	d := date
	return &Transaction{
		ID:        uuid.New(),
		Kind:      KindBudgetCredit,
		Amount:    amount,
		Narrative: narrative,
		Date:      &d,
	}
}

// NewCredit creates an ordinary signed movement.
func NewCredit(amount decimal.Decimal, narrative string, date time.Time) *Transaction {
	d := date
	return &Transaction{
		ID:        uuid.New(),
		Kind:      KindCredit,
		Amount:    amount,
		Narrative: narrative,
		Date:      &d,
	}
}

// NewBalanceAdjustment creates a bank-balance correction for an account.
func NewBalanceAdjustment(amount decimal.Decimal, narrative, bankAccount string, date time.Time) *Transaction {
	d := date
	return &Transaction{
		ID:          uuid.New(),
		Kind:        KindBalanceAdjustment,
		Amount:      amount,
		Narrative:   narrative,
		Date:        &d,
		BankAccount: bankAccount,
	}
}

// NewAutoMatchRef issues a fresh opaque matching token. Tokens are short
// enough to type into an online-banking reference field.
func NewAutoMatchRef() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

// HasPendingAutoMatch reports whether this transaction still awaits its
// statement-side counterpart.
func (t *Transaction) HasPendingAutoMatch() bool {
	return t.AutoMatchRef != "" && !t.Matched
}

// MarkMatched resolves the auto-matching reference. The transition is
// one-time: a second call fails rather than silently re-marking.
func (t *Transaction) MarkMatched() error {
	if t.AutoMatchRef == "" {
		return errors.New("transaction carries no auto-matching reference")
	}
	if t.Matched {
		return ErrAlreadyMatched
	}
	t.Matched = true
	return nil
}

// StampID overwrites the transaction id with the id of the statement
// transaction it was matched to, enabling drill-through from the ledger to
// the statement.
func (t *Transaction) StampID(id uuid.UUID) {
	t.ID = id
}

// SumTransactions returns the signed sum of the given transactions.
func SumTransactions(txs []*Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total
}
