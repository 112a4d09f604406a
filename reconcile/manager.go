/*
manager.go - Reconciliation creation manager

PURPOSE:
  The top-level orchestrator of a period-end reconciliation:

    validate preconditions
      -> open the consistency scope around the book
      -> build the new line and commit it
      -> register single-use categorization rules for transfer tasks
      -> close the scope (fatal on violation)
      -> return the line plus the generated to-do tasks

  It also owns the narrow post-commit mutation: transferring funds between
  buckets on an already-created line, which must still satisfy the
  historical-integrity invariant.
*/
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Benrnz/BudgetAnalyser-sub004/account"
	"github.com/Benrnz/BudgetAnalyser-sub004/budget"
	"github.com/Benrnz/BudgetAnalyser-sub004/ledger"
	"github.com/Benrnz/BudgetAnalyser-sub004/rules"
	"github.com/Benrnz/BudgetAnalyser-sub004/statement"
	"github.com/Benrnz/BudgetAnalyser-sub004/tasks"
)

var (
	// ErrNotRecentLine is a fatal logic error: fund transfers only apply
	// to the book's most recent reconciliation line.
	ErrNotRecentLine = errors.New("fund transfers only apply to the most recent reconciliation line")

	// ErrInvalidTransfer covers malformed transfer commands.
	ErrInvalidTransfer = errors.New("invalid fund transfer command")
)

// Manager orchestrates reconciliation operations on ledger books.
type Manager struct {
	Accounts account.Registry
	Rules    rules.Sink
	Log      zerolog.Logger
}

func NewManager(accounts account.Registry, sink rules.Sink, log zerolog.Logger) *Manager {
	return &Manager{Accounts: accounts, Rules: sink, Log: log}
}

// ReconcileInput carries everything a period-end reconciliation needs.
type ReconcileInput struct {
	CloseDate    time.Time
	Budgets      *budget.Collection
	Statement    *statement.Statement
	BankBalances []ledger.BankBalance

	// SuppressedWarnings lists warning categories the user has already
	// dismissed. Suppression is per category, never global; every attempt
	// re-evaluates all categories.
	SuppressedWarnings []WarningCode
}

// ReconciliationResult is the outcome: the committed line plus every
// follow-up task generated along the way.
type ReconciliationResult struct {
	Line  *ledger.EntryLine
	Tasks *tasks.ToDoList
}

// PeriodEndReconciliation closes off the book for the period ending
// (exclusively) at CloseDate.
func (m *Manager) PeriodEndReconciliation(ctx context.Context, book *ledger.Book, in ReconcileInput) (*ReconciliationResult, error) {
	if book == nil {
		return nil, ErrNoLedgerBook
	}
	// Bail out before any state changes; a cancelled request must leave
	// neither a committed line nor registered rules behind.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	model := in.Budgets.ForDate(in.CloseDate)
	if model == nil || !model.Active {
		return nil, fmt.Errorf("%w: %s", ErrBudgetInactive, in.CloseDate.Format("2006-01-02"))
	}

	buildIn := BuildInput{
		CloseDate:    in.CloseDate,
		Budget:       model,
		Statement:    in.Statement,
		BankBalances: in.BankBalances,
	}

	periodStart, err := PeriodStart(book, in.CloseDate, model.Cycle)
	if err != nil {
		return nil, err
	}
	warnings, err := validate(book, buildIn, periodStart)
	if err != nil {
		return nil, err
	}
	if remaining := filterSuppressed(warnings, in.SuppressedWarnings); len(remaining) > 0 {
		return nil, &ValidationWarningsError{Warnings: remaining}
	}

	todo := tasks.NewToDoList()
	builder := &Builder{Accounts: m.Accounts, Log: m.Log}

	var line *ledger.EntryLine
	err = WithConsistencyGuard(book, func() error {
		var buildErr error
		line, buildErr = builder.Build(book, buildIn, todo)
		if buildErr != nil {
			return buildErr
		}
		return book.CommitLine(line)
	})
	if err != nil {
		return nil, err
	}

	m.registerTransferRules(todo)
	m.Log.Info().
		Str("book", book.Name).
		Time("close_date", in.CloseDate).
		Int("tasks", todo.Len()).
		Msg("period-end reconciliation complete")

	return &ReconciliationResult{Line: line, Tasks: todo}, nil
}

// registerTransferRules creates a single-use categorization rule for every
// system-generated transfer task carrying a matching reference, so the
// eventual statement import auto-assigns the correct bucket.
func (m *Manager) registerTransferRules(todo *tasks.ToDoList) {
	if m.Rules == nil {
		return
	}
	for _, t := range todo.TransferTasks() {
		if !t.IsSystemGenerated() || t.Reference == "" {
			continue
		}
		amount := t.Amount
		m.Rules.CreateRule(t.BucketCode, t.Reference, &amount)
	}
}

// TransferFundsCommand describes a fund movement between two buckets on an
// already-created line.
type TransferFundsCommand struct {
	Amount       decimal.Decimal
	Narrative    string
	FromBucket   ledger.Bucket
	ToBucket     ledger.Bucket
	AutoMatchRef string

	// BankTransferRequired indicates the buckets live in different bank
	// accounts, so a real transfer (and matching rules) are needed.
	BankTransferRequired bool
}

// TransferFunds applies the command to the target line. The surplus bucket
// has no explicit entry and is skipped on its side of the movement; the
// whole operation runs inside the consistency scope.
func (m *Manager) TransferFunds(book *ledger.Book, cmd TransferFundsCommand, line *ledger.EntryLine) error {
	if book == nil {
		return ErrNoLedgerBook
	}
	if line == nil || line != book.RecentLine() {
		return ErrNotRecentLine
	}
	if !cmd.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransfer)
	}
	if cmd.FromBucket.BudgetBucketCode == cmd.ToBucket.BudgetBucketCode {
		return fmt.Errorf("%w: source and destination are the same bucket", ErrInvalidTransfer)
	}

	return WithConsistencyGuard(book, func() error {
		now := line.Date
		if err := m.applyTransferLeg(line, cmd.FromBucket, cmd.Amount.Neg(), cmd.Narrative, cmd.AutoMatchRef, now); err != nil {
			return err
		}
		if err := m.applyTransferLeg(line, cmd.ToBucket, cmd.Amount, cmd.Narrative, cmd.AutoMatchRef, now); err != nil {
			return err
		}

		if cmd.BankTransferRequired {
			source := cmd.FromBucket.StoredInAccount
			dest := cmd.ToBucket.StoredInAccount
			line.ForceBalanceAdjustment(ledger.NewBalanceAdjustment(cmd.Amount.Neg(), cmd.Narrative, source, now))
			line.ForceBalanceAdjustment(ledger.NewBalanceAdjustment(cmd.Amount, cmd.Narrative, dest, now))
			if m.Rules != nil && cmd.AutoMatchRef != "" {
				amount := cmd.Amount
				m.Rules.CreateRule(cmd.FromBucket.BudgetBucketCode, cmd.AutoMatchRef, &amount)
				m.Rules.CreateRule(cmd.ToBucket.BudgetBucketCode, cmd.AutoMatchRef, &amount)
			}
		}
		return nil
	})
}

// applyTransferLeg appends one side of the movement, skipping the surplus
// bucket which has no explicit entry.
func (m *Manager) applyTransferLeg(line *ledger.EntryLine, bucket ledger.Bucket, amount decimal.Decimal, narrative, ref string, date time.Time) error {
	if bucket.BudgetBucketCode == ledger.SurplusBucketCode {
		return nil
	}
	entry := line.EntryForBucket(bucket.BudgetBucketCode)
	if entry == nil {
		return fmt.Errorf("%w: bucket %s has no entry in the target line", ErrInvalidTransfer, bucket.BudgetBucketCode)
	}
	tx := ledger.NewCredit(amount, narrative, date)
	tx.AutoMatchRef = ref
	line.ApplyFundTransfer(entry, tx)
	return nil
}

// ValidateAgainstOrphanedAutoMatchingTransactions scans the most recent
// line's unresolved references against the whole statement and returns a
// warning task per orphan. Exposed so the UI can surface missing transfers
// before the user attempts a reconciliation.
func ValidateAgainstOrphanedAutoMatchingTransactions(book *ledger.Book, stmt *statement.Statement) []*tasks.ToDoTask {
	if book == nil || stmt == nil {
		return nil
	}
	var out []*tasks.ToDoTask
	for _, w := range orphanedAutoMatchWarnings(book, stmt.Transactions) {
		out = append(out, tasks.NewToDoTask(w.Message, true))
	}
	return out
}

func filterSuppressed(warnings []Warning, suppressed []WarningCode) []Warning {
	if len(warnings) == 0 {
		return nil
	}
	skip := make(map[WarningCode]bool, len(suppressed))
	for _, c := range suppressed {
		skip[c] = true
	}
	var remaining []Warning
	for _, w := range warnings {
		if !skip[w.Code] {
			remaining = append(remaining, w)
		}
	}
	return remaining
}
