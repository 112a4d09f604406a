/*
consistency.go - Scoped guard over the historical-integrity invariant

PURPOSE:
  Any reconciliation operation - building a new line or transferring funds
  on the newest line - runs inside this guard. The guard records the sum of
  CalculatedSurplus across the frozen lines before the operation and
  recomputes it afterwards; the line the operation is entitled to touch
  (the newly added one, or the newest when mutating in place) is exempt. A
  difference means previously frozen history was silently altered.

  This is a structural check, not a business rule. A violation is a fatal,
  non-recoverable corruption error indicating an engine bug.

  The guard is not reentrant: only one reconciliation on a given book may
  be in flight at a time.
*/
package reconcile

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Benrnz/BudgetAnalyser-sub004/ledger"
)

// ErrLedgerCorrupt is the fatal, non-recoverable invariant violation.
var ErrLedgerCorrupt = errors.New("ledger corrupt: historical surplus changed")

// CorruptionError carries the before/after surplus sums for diagnostics.
type CorruptionError struct {
	Before decimal.Decimal
	After  decimal.Decimal
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("historical surplus sum changed from %s to %s during reconciliation", e.Before, e.After)
}

func (e *CorruptionError) Unwrap() error { return ErrLedgerCorrupt }

// WithConsistencyGuard runs fn inside the consistency scope for the book.
// fn's own error propagates unchanged; the corruption check only runs when
// fn succeeds.
//
// Frozen history is every line except the one legitimately in play: when
// fn adds a line, all pre-existing lines are history; when fn mutates the
// newest line in place (fund transfers), everything but that line is.
func WithConsistencyGuard(book *ledger.Book, fn func() error) error {
	linesBefore := book.LineCount()
	allBefore := book.TotalCalculatedSurplus()
	histBefore := historicalSurplus(book)

	if err := fn(); err != nil {
		return err
	}

	before, after := histBefore, historicalSurplus(book)
	if book.LineCount() > linesBefore {
		// The previous newest line froze the moment the new one landed.
		before = allBefore
	}
	if !before.Equal(after) {
		return &CorruptionError{Before: before, After: after}
	}
	return nil
}

// historicalSurplus is the surplus sum over all lines except the newest.
func historicalSurplus(book *ledger.Book) decimal.Decimal {
	total := book.TotalCalculatedSurplus()
	if recent := book.RecentLine(); recent != nil {
		total = total.Sub(recent.CalculatedSurplus())
	}
	return total
}
