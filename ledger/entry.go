/*
entry.go - One bucket's position within one reconciliation line

PURPOSE:
  A LedgerEntry records a single bucket's opening balance (carried forward
  from the prior period, or the book's declared opening for a brand-new
  bucket), the transactions applied this period, and the closing balance.

LIFECYCLE:
  Entries are append-then-freeze. While the owning line is new, the builder
  and behaviour pipeline may replace the transaction list freely; balances
  are computed only when the line is finalized. After the line is committed
  to the book the only permitted mutation is the controlled fund-transfer
  operation, which recomputes the balance and is itself wrapped by the
  consistency guard.
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// Entry is one bucket's position within one reconciliation line.
type Entry struct {
	bucket         Bucket
	openingBalance decimal.Decimal
	transactions   []*Transaction
	balance        decimal.Decimal
}

// NewEntry creates an entry with its carried-forward opening balance and no
// transactions. The closing balance is zero until the line is finalized.
func NewEntry(bucket Bucket, openingBalance decimal.Decimal) *Entry {
	return &Entry{bucket: bucket, openingBalance: openingBalance}
}

// RehydrateEntry reconstructs a committed entry from persistence.
func RehydrateEntry(bucket Bucket, openingBalance, closingBalance decimal.Decimal, txs []*Transaction) *Entry {
	return &Entry{
		bucket:         bucket,
		openingBalance: openingBalance,
		transactions:   txs,
		balance:        closingBalance,
	}
}

func (e *Entry) Bucket() Bucket                  { return e.bucket }
func (e *Entry) OpeningBalance() decimal.Decimal { return e.openingBalance }

// Balance is the closing balance: opening balance plus the sum of this
// period's transactions. Zero until the owning line has been finalized.
func (e *Entry) Balance() decimal.Decimal { return e.balance }

// NetAmount is the signed sum of this period's transactions.
func (e *Entry) NetAmount() decimal.Decimal { return SumTransactions(e.transactions) }

// ProjectedBalance is opening balance plus net amount. Identical to
// Balance once the line is finalized; behaviours use it beforehand.
func (e *Entry) ProjectedBalance() decimal.Decimal { return e.openingBalance.Add(e.NetAmount()) }

// Transactions returns the entry's transactions. The slice is shared with
// the entry; callers must not append to it directly.
func (e *Entry) Transactions() []*Transaction { return e.transactions }

// setTransactions replaces the transaction list. Only the owning line calls
// this, and only while it is new.
func (e *Entry) setTransactions(txs []*Transaction) { e.transactions = txs }

// addTransaction appends a transaction and immediately recomputes the
// closing balance. Used by the fund-transfer operation on committed lines.
func (e *Entry) addTransaction(tx *Transaction) {
	e.transactions = append(e.transactions, tx)
	e.recalculateBalance()
}

func (e *Entry) recalculateBalance() {
	e.balance = e.openingBalance.Add(e.NetAmount())
}

// PendingAutoMatchTransactions returns transactions whose auto-matching
// reference has not yet been resolved against a statement transaction.
func (e *Entry) PendingAutoMatchTransactions() []*Transaction {
	var pending []*Transaction
	for _, tx := range e.transactions {
		if tx.HasPendingAutoMatch() {
			pending = append(pending, tx)
		}
	}
	return pending
}
