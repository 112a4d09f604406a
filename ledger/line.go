/*
line.go - One period's reconciliation record

PURPOSE:
  A LedgerEntryLine is one immutable (once finalized) reconciliation
  snapshot: the closing-exclusive date for the period, the declared bank
  balances (one per funding account, credit cards excluded), bank-balance
  adjustment transactions, one LedgerEntry per tracked bucket, and free-text
  remarks.

DERIVED VALUES:
  TotalBankBalance   Sum of the declared balances.
  CalculatedSurplus  Total bank balance plus signed balance adjustments,
                     minus the sum of all bucket closing balances - money
                     not earmarked to any bucket. Surplus is always derived,
                     never entered.

MUTABILITY:
  A line is created "new" by the builder, populated by behaviours, then
  finalized: each entry's closing balance is computed and the entry list is
  locked. Fund transfers after locking go through the narrow API on the
  book's manager, which still must satisfy the consistency invariant.
*/
package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrLineLocked is a fatal logic error: attempting to change the structure
// of a reconciliation line after it has been committed.
var ErrLineLocked = errors.New("reconciliation line is locked")

// BankBalance is the declared balance of one funding account at the line's
// date.
type BankBalance struct {
	Account string
	Balance decimal.Decimal
}

// EntryLine is one period's closing snapshot of all buckets plus bank
// balances.
type EntryLine struct {
	Date               time.Time
	Remarks            string
	bankBalances       []BankBalance
	balanceAdjustments []*Transaction
	entries            []*Entry
	isNew              bool
}

// NewEntryLine starts a new, unlocked reconciliation line.
func NewEntryLine(date time.Time, bankBalances []BankBalance) *EntryLine {
	return &EntryLine{
		Date:         date,
		bankBalances: append([]BankBalance(nil), bankBalances...),
		isNew:        true,
	}
}

// RehydrateLine reconstructs a committed (locked) line from persistence.
func RehydrateLine(date time.Time, remarks string, bankBalances []BankBalance, adjustments []*Transaction, entries []*Entry) *EntryLine {
	return &EntryLine{
		Date:               date,
		Remarks:            remarks,
		bankBalances:       bankBalances,
		balanceAdjustments: adjustments,
		entries:            entries,
	}
}

// IsNew reports whether the line is still open for structural changes.
func (l *EntryLine) IsNew() bool { return l.isNew }

func (l *EntryLine) BankBalances() []BankBalance        { return l.bankBalances }
func (l *EntryLine) BalanceAdjustments() []*Transaction { return l.balanceAdjustments }
func (l *EntryLine) Entries() []*Entry                  { return l.entries }

// AddEntry appends a bucket entry. Fatal logic error on a committed line.
func (l *EntryLine) AddEntry(e *Entry) error {
	if !l.isNew {
		return ErrLineLocked
	}
	l.entries = append(l.entries, e)
	return nil
}

// SetEntryTransactions replaces an entry's transaction list while the line
// is still new. Behaviours use this when a bucket contributes transactions.
func (l *EntryLine) SetEntryTransactions(e *Entry, txs []*Transaction) error {
	if !l.isNew {
		return ErrLineLocked
	}
	e.setTransactions(txs)
	return nil
}

// AddBalanceAdjustment records a bank-balance correction. Adjustments are
// line-level, not bucket-specific.
func (l *EntryLine) AddBalanceAdjustment(tx *Transaction) error {
	if !l.isNew {
		return ErrLineLocked
	}
	l.balanceAdjustments = append(l.balanceAdjustments, tx)
	return nil
}

// EntryForBucket returns the entry tracking the given budget-bucket code,
// or nil if the bucket has no entry in this line.
func (l *EntryLine) EntryForBucket(code string) *Entry {
	for _, e := range l.entries {
		if e.bucket.BudgetBucketCode == code {
			return e
		}
	}
	return nil
}

// Finalize computes every entry's closing balance and locks the line.
// Behaviours must have run before this: they may add transactions, and must
// do so before balances are frozen.
func (l *EntryLine) Finalize() error {
	if !l.isNew {
		return ErrLineLocked
	}
	for _, e := range l.entries {
		e.recalculateBalance()
	}
	l.isNew = false
	return nil
}

// ApplyFundTransfer appends a transaction to an entry on a committed line
// and recomputes its balance. This is the narrow API for post-commit fund
// transfers; callers must wrap it in the consistency guard.
func (l *EntryLine) ApplyFundTransfer(e *Entry, tx *Transaction) {
	e.addTransaction(tx)
}

// ForceBalanceAdjustment records an adjustment on a committed line. Only
// the guarded fund-transfer operation uses this; everything else goes
// through AddBalanceAdjustment while the line is new.
func (l *EntryLine) ForceBalanceAdjustment(tx *Transaction) {
	l.balanceAdjustments = append(l.balanceAdjustments, tx)
}

// TotalBankBalance is the sum of the declared balances.
func (l *EntryLine) TotalBankBalance() decimal.Decimal {
	total := decimal.Zero
	for _, b := range l.bankBalances {
		total = total.Add(b.Balance)
	}
	return total
}

// TotalBalanceAdjustments is the signed sum of adjustment transactions.
func (l *EntryLine) TotalBalanceAdjustments() decimal.Decimal {
	return SumTransactions(l.balanceAdjustments)
}

// LedgerBalance is the declared bank balance corrected by adjustments.
func (l *EntryLine) LedgerBalance() decimal.Decimal {
	return l.TotalBankBalance().Add(l.TotalBalanceAdjustments())
}

// CalculatedSurplus is the money not earmarked to any tracked bucket.
// Projected balances keep the value meaningful on a not-yet-finalized line.
func (l *EntryLine) CalculatedSurplus() decimal.Decimal {
	earmarked := decimal.Zero
	for _, e := range l.entries {
		earmarked = earmarked.Add(e.ProjectedBalance())
	}
	return l.LedgerBalance().Sub(earmarked)
}

// SurplusBalances breaks the surplus down per funding account: declared
// balance plus that account's adjustments, minus the closing balances of
// buckets stored in it. A negative value means the account holds less than
// its buckets have earmarked.
func (l *EntryLine) SurplusBalances() []BankBalance {
	var surpluses []BankBalance
	for _, b := range l.bankBalances {
		s := b.Balance
		for _, adj := range l.balanceAdjustments {
			if adj.BankAccount == b.Account {
				s = s.Add(adj.Amount)
			}
		}
		for _, e := range l.entries {
			if e.bucket.StoredInAccount == b.Account {
				s = s.Sub(e.ProjectedBalance())
			}
		}
		surpluses = append(surpluses, BankBalance{Account: b.Account, Balance: s})
	}
	return surpluses
}
