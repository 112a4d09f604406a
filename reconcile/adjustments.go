/*
adjustments.go - Balance-adjustment behaviours

Two behaviours that correct the line's bank-balance tracking:

  transferAdjustmentsBehaviour
    Every generated TransferTask implies money leaving one account and
    arriving in another. Rather than making the user record the transfer
    separately, the behaviour adds balancing adjustments directly to the
    line, grouped and summed per account.

  futureTransactionsBehaviour
    Statement transactions dated on/after the closing date belong to the
    next period but may already be reflected in the declared balances. Each
    is offset by a balance adjustment; credit-card payment bucket
    transactions are excluded (preserved from the original system, reason
    undocumented there). One advisory task is raised if anything was
    adjusted.
*/
package reconcile

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Benrnz/BudgetAnalyser-sub004/ledger"
	"github.com/Benrnz/BudgetAnalyser-sub004/statement"
	"github.com/Benrnz/BudgetAnalyser-sub004/tasks"
)

// =============================================================================
// BUDGET-AMOUNT / TRANSFER BALANCE ADJUSTMENTS
// =============================================================================

type transferAdjustmentsBehaviour struct {
	line      *ledger.EntryLine
	todo      *tasks.ToDoList
	closeDate time.Time
}

func (b *transferAdjustmentsBehaviour) Initialise(ctx *BehaviourContext) error {
	if ctx.Line == nil || ctx.Todo == nil {
		return fmt.Errorf("%w: transfer adjustments need line and to-do list", ErrMissingContext)
	}
	b.line = ctx.Line
	b.todo = ctx.Todo
	b.closeDate = ctx.CloseDate
	return nil
}

func (b *transferAdjustmentsBehaviour) ApplyBehaviour() error {
	deltas := make(map[string]decimal.Decimal)
	order := make([]string, 0, 4)

	accumulate := func(acct string, amount decimal.Decimal) {
		if _, seen := deltas[acct]; !seen {
			order = append(order, acct)
		}
		deltas[acct] = deltas[acct].Add(amount)
	}

	for _, task := range b.todo.TransferTasks() {
		if !task.BankTransferRequired {
			continue
		}
		accumulate(task.SourceAccount, task.Amount.Neg())
		accumulate(task.DestinationAccount, task.Amount)
	}

	for _, acct := range order {
		if deltas[acct].IsZero() {
			continue
		}
		adj := ledger.NewBalanceAdjustment(
			deltas[acct],
			fmt.Sprintf("Adjustment for transfers yet to be made against %s", acct),
			acct,
			b.closeDate,
		)
		if err := b.line.AddBalanceAdjustment(adj); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// FUTURE-TRANSACTION REMOVAL
// =============================================================================

type futureTransactionsBehaviour struct {
	line      *ledger.EntryLine
	stmt      *statement.Statement
	todo      *tasks.ToDoList
	closeDate time.Time
}

func (b *futureTransactionsBehaviour) Initialise(ctx *BehaviourContext) error {
	if ctx.Line == nil || ctx.Statement == nil || ctx.Todo == nil {
		return fmt.Errorf("%w: future-transaction removal needs line, statement and to-do list", ErrMissingContext)
	}
	b.line = ctx.Line
	b.stmt = ctx.Statement
	b.todo = ctx.Todo
	b.closeDate = ctx.CloseDate
	return nil
}

func (b *futureTransactionsBehaviour) ApplyBehaviour() error {
	adjusted := 0
	for _, txn := range b.stmt.OnOrAfter(b.closeDate) {
		if txn.BucketCode == ledger.PayCreditCardBucketCode {
			continue
		}
		if !b.hasDeclaredBalance(txn.Account) {
			// Credit-card and other undeclared accounts have no balance to
			// correct on this line.
			continue
		}
		adj := ledger.NewBalanceAdjustment(
			txn.Amount.Neg(),
			fmt.Sprintf("Removing future-dated transaction %s from this period", txn.Date.Format("2006-01-02")),
			txn.Account,
			b.closeDate,
		)
		if err := b.line.AddBalanceAdjustment(adj); err != nil {
			return err
		}
		adjusted++
	}

	if adjusted > 0 {
		b.todo.Add(tasks.NewToDoTask(
			fmt.Sprintf("%d transaction(s) dated after the reconciliation date were offset; they belong to the next period.", adjusted),
			true))
	}
	return nil
}

func (b *futureTransactionsBehaviour) hasDeclaredBalance(acct string) bool {
	for _, bb := range b.line.BankBalances() {
		if bb.Account == acct {
			return true
		}
	}
	return false
}
