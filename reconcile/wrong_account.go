/*
wrong_account.go - Paid-from-wrong-account detection

PURPOSE:
  A debit charged to an account other than its bucket's designated funding
  account means the money was spent from the wrong place. The behaviour
  proposes a TransferTask moving the amount from the funding account to the
  account actually charged.

  Exception: when a matching, oppositely-signed, same-date, same-bucket,
  same-reference transaction exists elsewhere in the period the pair is an
  internal transfer, not a misattributed payment, and no task is raised.

CONCURRENCY:
  The per-transaction predicate is independent, so evaluation is
  data-parallel across a small worker pool. Task proposals are merged
  through the to-do list's lock; no other shared state is touched.
*/
package reconcile

import (
	"fmt"
	"sync"

	"github.com/Benrnz/BudgetAnalyser-sub004/ledger"
	"github.com/Benrnz/BudgetAnalyser-sub004/statement"
	"github.com/Benrnz/BudgetAnalyser-sub004/tasks"
)

const wrongAccountWorkers = 4

type wrongAccountBehaviour struct {
	book       *ledger.Book
	periodTxns []statement.Transaction
	todo       *tasks.ToDoList
}

func (b *wrongAccountBehaviour) Initialise(ctx *BehaviourContext) error {
	if ctx.Book == nil || ctx.Todo == nil {
		return fmt.Errorf("%w: wrong-account detection needs book and to-do list", ErrMissingContext)
	}
	b.book = ctx.Book
	b.periodTxns = ctx.PeriodTransactions
	b.todo = ctx.Todo
	return nil
}

func (b *wrongAccountBehaviour) ApplyBehaviour() error {
	work := make(chan statement.Transaction)
	var wg sync.WaitGroup

	for i := 0; i < wrongAccountWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for txn := range work {
				b.evaluate(txn)
			}
		}()
	}

	for _, txn := range b.periodTxns {
		if txn.Kind != statement.KindDebit {
			continue
		}
		work <- txn
	}
	close(work)
	wg.Wait()
	return nil
}

// evaluate runs the per-transaction predicate and, on a hit, merges a task
// proposal under the to-do list's lock.
func (b *wrongAccountBehaviour) evaluate(txn statement.Transaction) {
	bucket, tracked := b.book.BucketFor(txn.BucketCode)
	if !tracked {
		return
	}
	if bucket.StoredInAccount == txn.Account {
		return
	}
	if b.hasOffsettingTwin(txn) {
		return
	}

	amount := txn.Amount.Abs()
	b.todo.Add(tasks.NewTransferTask(
		fmt.Sprintf("Transaction for %s was paid from %s but the bucket is funded from %s; transfer %s.",
			txn.BucketCode, txn.Account, bucket.StoredInAccount, amount.StringFixed(2)),
		amount,
		bucket.StoredInAccount,
		txn.Account,
		txn.BucketCode,
		ledger.NewAutoMatchRef(),
	))
}

// hasOffsettingTwin reports whether an oppositely-signed transaction with
// the same date, bucket, and reference fields exists in the period. Such a
// pair is itself an internal transfer.
func (b *wrongAccountBehaviour) hasOffsettingTwin(txn statement.Transaction) bool {
	for _, other := range b.periodTxns {
		if other.ID == txn.ID {
			continue
		}
		if !other.Date.Equal(txn.Date) || other.BucketCode != txn.BucketCode {
			continue
		}
		if !other.Amount.Equal(txn.Amount.Neg()) {
			continue
		}
		if other.Reference1 == txn.Reference1 && other.Reference2 == txn.Reference2 && other.Reference3 == txn.Reference3 {
			return true
		}
	}
	return false
}
