/*
builder.go - Reconciliation line builder and auto-match resolver

PURPOSE:
  Given a closing date (exclusive), the active budget, the statement, and
  the declared bank balances, produce a new LedgerEntryLine containing one
  entry per bucket tracked by the book. Declared balances must resolve
  against the account registry; credit-card balances are debt, not funds,
  and are excluded from the line.

ALGORITHM:
  1. Period start = date of the most recent line, or closing date minus one
     budget cycle for a book with no history.
  2. Select statement transactions in [start, close).
  3. Per bucket: carry the balance forward (declared opening for a new
     bucket), adopting a changed funding account.
  4. Inject the budgeted-amount transaction - directly for salary-account
     buckets, or with a fresh auto-matching reference plus a TransferTask
     for buckets funded elsewhere.
  5. Append the bucket's statement transactions.
  6. Resolve the prior period's pending auto-matching references against
     the period's statement transactions.
  7. Run the behaviour pipeline.
  Balances are frozen later, when the manager commits the line: behaviours
  may add transactions and must do so first.

AUTO-MATCH RESOLUTION:
  For each pending reference from the prior period's entry, candidate
  statement transactions (reference field equality, ascending amount) are
  searched. The transfer leg - the candidate whose amount equals the
  pending transaction's, or failing that the first candidate - stamps its
  id onto the ledger transaction, the reference transitions pending ->
  matched exactly once, and the statement-derived duplicate is dropped from
  this period's list. A reference with no candidate raises a warning task:
  a data-integrity signal, not a failure.
*/
package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Benrnz/BudgetAnalyser-sub004/account"
	"github.com/Benrnz/BudgetAnalyser-sub004/budget"
	"github.com/Benrnz/BudgetAnalyser-sub004/ledger"
	"github.com/Benrnz/BudgetAnalyser-sub004/statement"
	"github.com/Benrnz/BudgetAnalyser-sub004/tasks"
)

// ErrNoLedgerBook is the fatal configuration error for a build attempted
// without a book.
var ErrNoLedgerBook = errors.New("reconciliation requires a ledger book")

// Builder constructs new reconciliation lines.
type Builder struct {
	Accounts account.Registry
	Log      zerolog.Logger

	// Behaviours overrides the built-in pipeline; nil means the default
	// fixed order.
	Behaviours []Behaviour
}

// BuildInput carries the external inputs for one reconciliation.
type BuildInput struct {
	CloseDate    time.Time
	Budget       *budget.Model
	Statement    *statement.Statement
	BankBalances []ledger.BankBalance
}

// Build produces the new, not-yet-finalized line and collects follow-up
// tasks. The caller commits the line to the book inside the consistency
// guard.
func (b *Builder) Build(book *ledger.Book, in BuildInput, todo *tasks.ToDoList) (*ledger.EntryLine, error) {
	if book == nil {
		return nil, ErrNoLedgerBook
	}

	start, err := PeriodStart(book, in.CloseDate, in.Budget.Cycle)
	if err != nil {
		return nil, err
	}
	periodTxns := in.Statement.InPeriod(start, in.CloseDate)
	b.Log.Info().
		Time("period_start", start).
		Time("close_date", in.CloseDate).
		Int("statement_transactions", len(periodTxns)).
		Msg("building reconciliation line")

	salary, err := b.Accounts.SalaryAccount()
	if err != nil {
		return nil, err
	}
	balances, err := b.fundingBalances(in.BankBalances)
	if err != nil {
		return nil, err
	}

	line := ledger.NewEntryLine(in.CloseDate, balances)
	previous := book.RecentLine()

	for _, bucket := range book.Buckets() {
		entry, txs := b.buildEntry(book, bucket, previous, in, periodTxns, salary, todo)
		txs = b.resolveAutoMatches(bucket, previous, periodTxns, txs, todo)
		if err := line.AddEntry(entry); err != nil {
			return nil, err
		}
		if err := line.SetEntryTransactions(entry, txs); err != nil {
			return nil, err
		}
	}

	behaviours := b.Behaviours
	if behaviours == nil {
		behaviours = defaultBehaviours()
	}
	ctx := &BehaviourContext{
		Book:               book,
		Line:               line,
		CloseDate:          in.CloseDate,
		PeriodTransactions: periodTxns,
		Statement:          in.Statement,
		Accounts:           b.Accounts,
		Todo:               todo,
		Log:                b.Log,
	}
	if err := runBehaviours(ctx, behaviours); err != nil {
		return nil, err
	}

	return line, nil
}

// fundingBalances validates the declared balances against the account
// registry. Credit-card balances are debt, not available funds; they are
// excluded so they never feed the surplus calculation. An account the
// registry does not know fails the build.
func (b *Builder) fundingBalances(declared []ledger.BankBalance) ([]ledger.BankBalance, error) {
	out := make([]ledger.BankBalance, 0, len(declared))
	for _, bal := range declared {
		acct, err := b.Accounts.Resolve(bal.Account)
		if err != nil {
			return nil, fmt.Errorf("declared bank balance: %w", err)
		}
		if acct.Type.IsCreditCard() {
			b.Log.Warn().
				Str("account", acct.Name).
				Msg("credit-card balance excluded from reconciliation")
			continue
		}
		out = append(out, bal)
	}
	return out, nil
}

// PeriodStart computes the inclusive start of the reconciliation window:
// the date of the most recent line, or one budget cycle back when the book
// has no history. An unsupported cycle fails fatally.
func PeriodStart(book *ledger.Book, closeDate time.Time, cycle budget.Cycle) (time.Time, error) {
	if recent := book.RecentLine(); recent != nil {
		return recent.Date, nil
	}
	return budget.PeriodStartForCycle(closeDate, cycle)
}

// buildEntry carries a bucket forward and injects its budgeted amount.
func (b *Builder) buildEntry(book *ledger.Book, bucket ledger.Bucket, previous *ledger.EntryLine, in BuildInput, periodTxns []statement.Transaction, salary account.Account, todo *tasks.ToDoList) (*ledger.Entry, []*ledger.Transaction) {
	opening := book.DeclaredOpening(bucket.BudgetBucketCode)
	var prevEntry *ledger.Entry
	if previous != nil {
		prevEntry = previous.EntryForBucket(bucket.BudgetBucketCode)
	}
	if prevEntry != nil {
		opening = prevEntry.Balance()
		if prevEntry.Bucket().StoredInAccount != bucket.StoredInAccount {
			// One-time migration: the bucket keeps its balance and adopts
			// the new funding account from this period on.
			b.Log.Info().
				Str("bucket", bucket.BudgetBucketCode).
				Str("from", prevEntry.Bucket().StoredInAccount).
				Str("to", bucket.StoredInAccount).
				Msg("bucket funding account changed")
		}
	}

	entry := ledger.NewEntry(bucket, opening)
	txs := []*ledger.Transaction{b.budgetCredit(bucket, in, salary, todo)}

	for _, st := range periodTxns {
		if st.BucketCode != bucket.BudgetBucketCode {
			continue
		}
		tx := ledger.NewCredit(st.Amount, st.Narrative(), st.Date)
		// Keep the statement id so the UI can drill through.
		tx.StampID(st.ID)
		txs = append(txs, tx)
	}
	return entry, txs
}

// budgetCredit injects the budgeted-amount transaction for the bucket and,
// for buckets funded outside the salary account, the matching transfer
// instruction.
func (b *Builder) budgetCredit(bucket ledger.Bucket, in BuildInput, salary account.Account, todo *tasks.ToDoList) *ledger.Transaction {
	amount := decimal.Zero
	narrative := "Budgeted amount"
	expense, ok := in.Budget.Expense(bucket.BudgetBucketCode)
	switch {
	case !ok:
		narrative = "No budget amount for this bucket"
	case !expense.Active:
		narrative = "Budget bucket is disabled; nothing credited this period"
	default:
		amount = expense.Amount
	}

	tx := ledger.NewBudgetCredit(amount, narrative, in.CloseDate)
	if bucket.StoredInAccount == salary.Name || amount.IsZero() {
		return tx
	}

	// Funds land in the salary account but belong in the bucket's account:
	// mark the credit with a fresh reference and tell the user to move it.
	ref := ledger.NewAutoMatchRef()
	tx.AutoMatchRef = ref
	todo.Add(tasks.NewTransferTask(
		fmt.Sprintf("Transfer %s from %s to %s for bucket %s with reference %s",
			amount.StringFixed(2), salary.Name, bucket.StoredInAccount, bucket.BudgetBucketCode, ref),
		amount,
		salary.Name,
		bucket.StoredInAccount,
		bucket.BudgetBucketCode,
		ref,
	))
	return tx
}

// resolveAutoMatches performs the cross-period match for one bucket.
func (b *Builder) resolveAutoMatches(bucket ledger.Bucket, previous *ledger.EntryLine, periodTxns []statement.Transaction, newTxs []*ledger.Transaction, todo *tasks.ToDoList) []*ledger.Transaction {
	if previous == nil {
		return newTxs
	}
	prevEntry := previous.EntryForBucket(bucket.BudgetBucketCode)
	if prevEntry == nil {
		return newTxs
	}

	for _, prior := range prevEntry.Transactions() {
		if prior.AutoMatchRef == "" {
			continue
		}
		candidates := matchingStatementTransactions(periodTxns, prior.AutoMatchRef)
		if len(candidates) == 0 {
			if prior.HasPendingAutoMatch() {
				todo.Add(tasks.NewToDoTask(
					fmt.Sprintf("No statement transaction found with reference %s for bucket %s; the expected transfer of %s may not have been made.",
						prior.AutoMatchRef, bucket.BudgetBucketCode, prior.Amount.StringFixed(2)),
					true))
			}
			continue
		}

		// The transfer leg is the candidate matching the prior amount;
		// other reference-carrying transactions are genuine spends and stay.
		transfer := candidates[0]
		for _, c := range candidates {
			if c.Amount.Equal(prior.Amount) {
				transfer = c
				break
			}
		}

		// The pending -> matched transition happens exactly once per
		// logical transfer; an already-matched reference still suppresses
		// its duplicate so re-resolution stays idempotent.
		if prior.HasPendingAutoMatch() {
			prior.StampID(transfer.ID)
			if err := prior.MarkMatched(); err != nil {
				b.Log.Warn().Err(err).Str("reference", prior.AutoMatchRef).Msg("auto-match reference resolved twice")
				continue
			}
			b.Log.Info().
				Str("bucket", bucket.BudgetBucketCode).
				Str("reference", prior.AutoMatchRef).
				Msg("auto-matched transfer against statement")
		}
		newTxs = removeTransactionByID(newTxs, transfer.ID)
	}
	return newTxs
}

// matchingStatementTransactions returns the transactions whose reference
// fields equal the token, ordered by ascending amount.
func matchingStatementTransactions(txns []statement.Transaction, token string) []statement.Transaction {
	var out []statement.Transaction
	for _, t := range txns {
		if t.MatchesReference(token) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount.LessThan(out[j].Amount) })
	return out
}

func removeTransactionByID(txs []*ledger.Transaction, id uuid.UUID) []*ledger.Transaction {
	for i, tx := range txs {
		if tx.ID == id {
			return append(txs[:i], txs[i+1:]...)
		}
	}
	return txs
}
