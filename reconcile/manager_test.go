package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benrnz/BudgetAnalyser-sub004/budget"
	"github.com/Benrnz/BudgetAnalyser-sub004/ledger"
	"github.com/Benrnz/BudgetAnalyser-sub004/reconcile"
	"github.com/Benrnz/BudgetAnalyser-sub004/rules"
	"github.com/Benrnz/BudgetAnalyser-sub004/statement"
)

// =============================================================================
// FIXTURES
// =============================================================================

func newManager(sink rules.Sink) *reconcile.Manager {
	return reconcile.NewManager(testRegistry(), sink, zerolog.Nop())
}

// managerBook is a book with one committed line dated 2025-06-20 holding
// POWER (salary account) and INSHOME (savings account).
func managerBook() *ledger.Book {
	power := ledger.Bucket{BudgetBucketCode: "POWER", StoredInAccount: "CHEQUE", Kind: ledger.KindSavedUpFor}
	inshome := ledger.Bucket{BudgetBucketCode: "INSHOME", StoredInAccount: "SAVINGS", Kind: ledger.KindSavedUpFor}
	return bookWithPriorLine(
		[]ledger.BankBalance{
			{Account: "CHEQUE", Balance: dec("1000")},
			{Account: "SAVINGS", Balance: dec("500")},
		},
		[]*ledger.Entry{
			priorEntry(power, dec("140"), ledger.NewBudgetCredit(dec("140"), "Budgeted amount", day(2025, time.June, 20))),
			priorEntry(inshome, dec("300"), ledger.NewBudgetCredit(dec("300"), "Budgeted amount", day(2025, time.June, 20))),
		},
	)
}

func managerBudgets() *budget.Collection {
	return budget.NewCollection(monthlyBudget(
		budget.Expense{BucketCode: "POWER", Amount: dec("140"), Active: true},
		budget.Expense{BucketCode: "INSHOME", Amount: dec("300"), Active: true},
	))
}

// cleanStatement passes every validation category for a 2025-06-20 to
// 2025-07-20 period: coverage back to the period start, a transaction
// within 24 hours of the close, everything categorized.
func cleanStatement() *statement.Statement {
	return &statement.Statement{Transactions: []statement.Transaction{
		{
			ID: newID(), Date: day(2025, time.June, 20), Amount: dec("-20"),
			Account: "CHEQUE", BucketCode: "POWER", Kind: statement.KindDebit,
			Description: "Prepay top-up",
		},
		{
			ID: newID(), Date: day(2025, time.July, 20).Add(-6 * time.Hour), Amount: dec("-35.10"),
			Account: "CHEQUE", BucketCode: "POWER", Kind: statement.KindDebit,
			Description: "Power bill",
		},
	}}
}

func reconcileInput(stmt *statement.Statement, suppressed ...reconcile.WarningCode) reconcile.ReconcileInput {
	return reconcile.ReconcileInput{
		CloseDate: day(2025, time.July, 20),
		Budgets:   managerBudgets(),
		Statement: stmt,
		BankBalances: []ledger.BankBalance{
			{Account: "CHEQUE", Balance: dec("1200")},
			{Account: "SAVINGS", Balance: dec("800")},
		},
		SuppressedWarnings: suppressed,
	}
}

// =============================================================================
// PERIOD-END RECONCILIATION
// =============================================================================

func TestManager_PeriodEndReconciliation_CommitsLineAndTasks(t *testing.T) {
	book := managerBook()
	sink := rules.NewRuleBook()

	result, err := newManager(sink).PeriodEndReconciliation(context.Background(), book, reconcileInput(cleanStatement()))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 2, book.LineCount())
	assert.Same(t, book.RecentLine(), result.Line)
	assert.False(t, result.Line.IsNew(), "the committed line is locked")
	assert.Positive(t, result.Tasks.Len(), "INSHOME funding generates at least a transfer task")
}

func TestManager_PeriodEndReconciliation_RegistersRulesForTransferTasks(t *testing.T) {
	// GIVEN: INSHOME is funded from a non-salary account
	// WHEN:  Reconciling
	// THEN:  A single-use rule exists binding the task's reference and
	//        amount to the INSHOME bucket

	book := managerBook()
	sink := rules.NewRuleBook()

	result, err := newManager(sink).PeriodEndReconciliation(context.Background(), book, reconcileInput(cleanStatement()))
	require.NoError(t, err)

	transfers := result.Tasks.TransferTasks()
	require.NotEmpty(t, transfers)

	registered := sink.Rules()
	require.NotEmpty(t, registered)
	var inshomeRule *rules.SingleUseRule
	for _, r := range registered {
		if r.BucketCode == "INSHOME" {
			inshomeRule = r
		}
	}
	require.NotNil(t, inshomeRule)
	require.NotNil(t, inshomeRule.Amount)
	assert.True(t, inshomeRule.Amount.Equal(dec("300")))
	assert.NotEmpty(t, inshomeRule.Reference)
}

func TestManager_PeriodEndReconciliation_CloseDateNotAfterPrevious(t *testing.T) {
	// Scenario: closing on (or before) the previous line's date is a
	// fatal error and the book is left untouched.

	book := managerBook()
	in := reconcileInput(cleanStatement())
	in.CloseDate = day(2025, time.June, 20)

	result, err := newManager(rules.NewRuleBook()).PeriodEndReconciliation(context.Background(), book, in)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, reconcile.ErrCloseDateNotAfterPrevious)
	assert.Equal(t, 1, book.LineCount(), "no line may be created on fatal validation")
}

func TestManager_PeriodEndReconciliation_TooSoonForMonthlyCycle(t *testing.T) {
	book := managerBook()
	in := reconcileInput(cleanStatement())
	in.CloseDate = day(2025, time.July, 10)

	_, err := newManager(rules.NewRuleBook()).PeriodEndReconciliation(context.Background(), book, in)
	assert.ErrorIs(t, err, reconcile.ErrCloseDateTooSoon)
	assert.Equal(t, 1, book.LineCount())
}

// fortnightlyFixture is a one-bucket book on a fortnightly budget with its
// previous line at the given date.
func fortnightlyFixture(prior, closeDate time.Time) (*ledger.Book, reconcile.ReconcileInput) {
	power := ledger.Bucket{BudgetBucketCode: "POWER", StoredInAccount: "CHEQUE", Kind: ledger.KindSavedUpFor}
	book := ledger.NewBook("fortnight-book")
	book.TrackBucket(power)
	book.RestoreLine(ledger.RehydrateLine(prior, "",
		[]ledger.BankBalance{{Account: "CHEQUE", Balance: dec("1000")}},
		nil,
		[]*ledger.Entry{priorEntry(power, dec("140"), ledger.NewBudgetCredit(dec("140"), "Budgeted amount", prior))},
	))
	in := reconcile.ReconcileInput{
		CloseDate: closeDate,
		Budgets: budget.NewCollection(budget.NewModel(day(2025, time.January, 1), budget.CycleFortnightly,
			[]budget.Expense{{BucketCode: "POWER", Amount: dec("140"), Active: true}})),
		Statement:    &statement.Statement{},
		BankBalances: []ledger.BankBalance{{Account: "CHEQUE", Balance: dec("1000")}},
	}
	return book, in
}

func warningCodes(t *testing.T, err error) map[reconcile.WarningCode]bool {
	t.Helper()
	var warnErr *reconcile.ValidationWarningsError
	require.True(t, errors.As(err, &warnErr), "expected validation warnings, got %v", err)
	codes := make(map[reconcile.WarningCode]bool)
	for _, w := range warnErr.Warnings {
		codes[w.Code] = true
	}
	return codes
}

func TestManager_PeriodEndReconciliation_FortnightAcrossDSTIsExact(t *testing.T) {
	// GIVEN: A fortnightly book in a DST-observing zone, previous line
	//        2025-03-01; clocks spring forward on 2025-03-09
	// WHEN:  Reconciling exactly 14 calendar days later
	// THEN:  No spacing warning fires even though only 13 days 23 hours
	//        elapsed on the wall clock

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	prior := time.Date(2025, time.March, 1, 0, 0, 0, 0, loc)
	book, in := fortnightlyFixture(prior, prior.AddDate(0, 0, 14))

	_, err = newManager(rules.NewRuleBook()).PeriodEndReconciliation(context.Background(), book, in)
	codes := warningCodes(t, err)
	assert.False(t, codes[reconcile.WarnFortnightNotExact], "exact calendar fortnight must not warn")
	assert.True(t, codes[reconcile.WarnStatementCoverage], "the empty statement still trips coverage")
}

func TestManager_PeriodEndReconciliation_FortnightOffByADayWarns(t *testing.T) {
	prior := day(2025, time.March, 1)
	book, in := fortnightlyFixture(prior, prior.AddDate(0, 0, 15))

	_, err := newManager(rules.NewRuleBook()).PeriodEndReconciliation(context.Background(), book, in)
	codes := warningCodes(t, err)
	assert.True(t, codes[reconcile.WarnFortnightNotExact])
}

func TestManager_PeriodEndReconciliation_NoActiveBudget(t *testing.T) {
	book := managerBook()
	in := reconcileInput(cleanStatement())
	in.Budgets = budget.NewCollection() // nothing in effect

	_, err := newManager(rules.NewRuleBook()).PeriodEndReconciliation(context.Background(), book, in)
	assert.ErrorIs(t, err, reconcile.ErrBudgetInactive)
}

func TestManager_PeriodEndReconciliation_WarningsBlockThenSuppressedRetrySucceeds(t *testing.T) {
	// GIVEN: An empty statement, which trips the coverage and freshness
	//        checks
	// WHEN:  Reconciling, then retrying with those categories suppressed
	// THEN:  The first attempt reports the warning codes and commits
	//        nothing; the retry commits the line

	book := managerBook()
	mgr := newManager(rules.NewRuleBook())

	_, err := mgr.PeriodEndReconciliation(context.Background(), book, reconcileInput(&statement.Statement{}))
	require.Error(t, err)

	var warnErr *reconcile.ValidationWarningsError
	require.True(t, errors.As(err, &warnErr))
	codes := make(map[reconcile.WarningCode]bool)
	for _, w := range warnErr.Warnings {
		codes[w.Code] = true
	}
	assert.True(t, codes[reconcile.WarnStatementCoverage])
	assert.True(t, codes[reconcile.WarnStaleStatement])
	assert.Equal(t, 1, book.LineCount(), "warnings must not commit anything")

	result, err := mgr.PeriodEndReconciliation(context.Background(), book,
		reconcileInput(&statement.Statement{}, reconcile.WarnStatementCoverage, reconcile.WarnStaleStatement))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 2, book.LineCount())
}

func TestManager_PeriodEndReconciliation_CancelledContext(t *testing.T) {
	// A cancelled request must leave no trace: no committed line, no
	// registered rules.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	book := managerBook()
	sink := rules.NewRuleBook()

	_, err := newManager(sink).PeriodEndReconciliation(ctx, book, reconcileInput(cleanStatement()))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, book.LineCount())
	assert.Empty(t, sink.Rules())
}

// =============================================================================
// FUND TRANSFERS
// =============================================================================

func reconciledBook(t *testing.T) (*ledger.Book, *ledger.EntryLine) {
	t.Helper()
	book := managerBook()
	result, err := newManager(rules.NewRuleBook()).PeriodEndReconciliation(context.Background(), book, reconcileInput(cleanStatement()))
	require.NoError(t, err)
	return book, result.Line
}

func TestManager_TransferFunds_MovesBetweenBuckets(t *testing.T) {
	book, line := reconciledBook(t)
	power, _ := book.BucketFor("POWER")
	inshome, _ := book.BucketFor("INSHOME")
	powerBefore := line.EntryForBucket("POWER").Balance()
	inshomeBefore := line.EntryForBucket("INSHOME").Balance()

	err := newManager(rules.NewRuleBook()).TransferFunds(book, reconcile.TransferFundsCommand{
		Amount:     dec("50"),
		Narrative:  "Top up home insurance from power savings",
		FromBucket: power,
		ToBucket:   inshome,
	}, line)
	require.NoError(t, err)

	assert.True(t, line.EntryForBucket("POWER").Balance().Equal(powerBefore.Sub(dec("50"))))
	assert.True(t, line.EntryForBucket("INSHOME").Balance().Equal(inshomeBefore.Add(dec("50"))))
}

func TestManager_TransferFunds_FromSurplusOnlyCreditsDestination(t *testing.T) {
	// The surplus bucket is derived and has no entry; its side of the
	// movement is implicit.

	book, line := reconciledBook(t)
	inshome, _ := book.BucketFor("INSHOME")
	before := line.EntryForBucket("INSHOME").Balance()

	err := newManager(rules.NewRuleBook()).TransferFunds(book, reconcile.TransferFundsCommand{
		Amount:     dec("75"),
		Narrative:  "Earmark surplus for home insurance",
		FromBucket: ledger.Bucket{BudgetBucketCode: ledger.SurplusBucketCode, StoredInAccount: "CHEQUE"},
		ToBucket:   inshome,
	}, line)
	require.NoError(t, err)

	assert.True(t, line.EntryForBucket("INSHOME").Balance().Equal(before.Add(dec("75"))))
}

func TestManager_TransferFunds_BankTransferAddsAdjustmentsAndRules(t *testing.T) {
	// GIVEN: Buckets living in different bank accounts
	// WHEN:  Transferring with BankTransferRequired and a reference
	// THEN:  Both declared balances are adjusted and matching rules are
	//        registered for both buckets

	book, line := reconciledBook(t)
	power, _ := book.BucketFor("POWER")
	inshome, _ := book.BucketFor("INSHOME")
	sink := rules.NewRuleBook()
	adjustmentsBefore := len(line.BalanceAdjustments())

	err := newManager(sink).TransferFunds(book, reconcile.TransferFundsCommand{
		Amount:               dec("120"),
		Narrative:            "Move power savings into the insurance account",
		FromBucket:           power,
		ToBucket:             inshome,
		AutoMatchRef:         ledger.NewAutoMatchRef(),
		BankTransferRequired: true,
	}, line)
	require.NoError(t, err)

	added := line.BalanceAdjustments()[adjustmentsBefore:]
	require.Len(t, added, 2)
	assert.True(t, adjustmentFor(t, added, "CHEQUE").Equal(dec("-120")))
	assert.True(t, adjustmentFor(t, added, "SAVINGS").Equal(dec("120")))
	assert.Len(t, sink.Rules(), 2, "one matching rule per side of the movement")
}

func TestManager_TransferFunds_RejectsBadCommands(t *testing.T) {
	book, line := reconciledBook(t)
	power, _ := book.BucketFor("POWER")
	inshome, _ := book.BucketFor("INSHOME")
	mgr := newManager(rules.NewRuleBook())

	err := mgr.TransferFunds(book, reconcile.TransferFundsCommand{
		Amount: dec("50"), FromBucket: power, ToBucket: inshome,
	}, nil)
	assert.ErrorIs(t, err, reconcile.ErrNotRecentLine)

	err = mgr.TransferFunds(book, reconcile.TransferFundsCommand{
		Amount: dec("-50"), FromBucket: power, ToBucket: inshome,
	}, line)
	assert.ErrorIs(t, err, reconcile.ErrInvalidTransfer)

	err = mgr.TransferFunds(book, reconcile.TransferFundsCommand{
		Amount: dec("50"), FromBucket: power, ToBucket: power,
	}, line)
	assert.ErrorIs(t, err, reconcile.ErrInvalidTransfer)
}

// =============================================================================
// ORPHANED-REFERENCE PRE-CHECK
// =============================================================================

func TestValidateAgainstOrphanedAutoMatchingTransactions(t *testing.T) {
	const ref = "REFCHK01"
	book, pending := scenarioCBook(ref)
	require.False(t, pending.Matched)

	found := reconcile.ValidateAgainstOrphanedAutoMatchingTransactions(book, &statement.Statement{})
	require.Len(t, found, 1)
	assert.True(t, found[0].IsSystemGenerated())
	assert.True(t, containsRef(found[0].Summary(), ref))

	resolved := reconcile.ValidateAgainstOrphanedAutoMatchingTransactions(book, scenarioCStatement(ref))
	assert.Empty(t, resolved, "a statement carrying the reference clears the warning")
}
