/*
bucket.go - Ledger buckets and their reconciliation behaviour

PURPOSE:
  A Bucket is a named savings/expense tracking channel. It references a
  budget-bucket code (its identity) and the bank account where its funds
  physically reside. The stored-in account may change between periods; the
  builder performs a one-time migration at the start of the next
  reconciliation.

BUCKET KINDS:
  KindSpentPerPeriod  The bucket is topped up each period and any leftover
                      returns to surplus at reconciliation (power, rent).
  KindSavedUpFor      The balance accumulates across periods (insurance,
                      car maintenance); an overdrawn balance is supplemented
                      back to zero from surplus.

  The kind drives the per-bucket reconciliation hook: the pipeline asks each
  bucket whether it wants to contribute bucket-specific transactions and, if
  it signals a change, replaces the entry's transaction list.
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reserved budget-bucket codes. The surplus bucket is a derived quantity
// and never has a ledger entry of its own; the pay-credit-card bucket is
// excluded from future-transaction balance adjustments.
const (
	SurplusBucketCode       = "SURPLUS"
	PayCreditCardBucketCode = "PAYCC"
)

// BucketKind selects the bucket's period-end semantics.
type BucketKind string

const (
	KindSpentPerPeriod BucketKind = "spent_per_period"
	KindSavedUpFor     BucketKind = "saved_up_for"
)

// Bucket identifies a tracked savings/expense channel. Identity is the
// budget-bucket code.
type Bucket struct {
	BudgetBucketCode string
	StoredInAccount  string
	Kind             BucketKind
}

// ApplyReconciliationBehaviour lets the bucket contribute bucket-specific
// transactions to its freshly built entry. It returns the (possibly
// extended) transaction list and whether anything changed. The opening
// balance is the carried-forward balance before this period's transactions.
func (b Bucket) ApplyReconciliationBehaviour(openingBalance decimal.Decimal, txs []*Transaction, reconciliationDate time.Time) ([]*Transaction, bool) {
	closing := openingBalance.Add(SumTransactions(txs))

	switch b.Kind {
	case KindSpentPerPeriod:
		// Leftover budget does not accumulate; it returns to surplus.
		if closing.IsPositive() {
			tx := NewCredit(closing.Neg(), "Spent-per-period bucket: returning remainder to surplus", reconciliationDate)
			return append(txs, tx), true
		}
		// Overspend is drawn from surplus so the bucket starts clean.
		if closing.IsNegative() {
			tx := NewCredit(closing.Neg(), "Spent-per-period bucket: supplementing overdrawn balance from surplus", reconciliationDate)
			return append(txs, tx), true
		}

	case KindSavedUpFor:
		// Accumulates freely, but never carries a negative balance forward.
		if closing.IsNegative() {
			tx := NewCredit(closing.Neg(), "Saved-up-for bucket: supplementing shortfall from surplus", reconciliationDate)
			return append(txs, tx), true
		}
	}

	return txs, false
}
