/*
behaviour.go - The pluggable reconciliation behaviour pipeline

PURPOSE:
  After the builder constructs a new line's entries, an ordered pipeline of
  independent post-processing rules mutates the line before balances are
  frozen.
  Order matters: later behaviours observe earlier mutations.

PIPELINE (fixed order):
  1. wrongAccountBehaviour       Debits charged to the wrong account
  2. transferAdjustmentsBehaviour Balance adjustments for transfer tasks
  3. futureTransactionsBehaviour  Push future-dated movements to next period
  4. overdrawnSurplusBehaviour    Warn on negative per-account surplus
  5. bucketHookBehaviour          Per-bucket contributed transactions

CONTRACT:
  Behaviours are constructed fresh per reconciliation. Initialise picks the
  typed context objects the behaviour needs and fails fast if a required
  one is absent. ApplyBehaviour performs one mutation pass; effects are
  observed via the shared line and to-do list.
*/
package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Benrnz/BudgetAnalyser-sub004/account"
	"github.com/Benrnz/BudgetAnalyser-sub004/ledger"
	"github.com/Benrnz/BudgetAnalyser-sub004/statement"
	"github.com/Benrnz/BudgetAnalyser-sub004/tasks"
)

// ErrMissingContext is the fatal configuration error raised when a
// behaviour is initialised without an object it requires.
var ErrMissingContext = errors.New("behaviour initialised without required context object")

// BehaviourContext is the shared mutable state threaded through the
// pipeline. Behaviours pick out the pieces they need at Initialise time.
type BehaviourContext struct {
	Book      *ledger.Book
	Line      *ledger.EntryLine
	CloseDate time.Time

	// PeriodTransactions are the statement transactions already filtered to
	// [periodStart, closeDate).
	PeriodTransactions []statement.Transaction

	// Statement is the full statement; the future-transaction behaviour
	// looks beyond the period window.
	Statement *statement.Statement

	Accounts account.Registry
	Todo     *tasks.ToDoList
	Log      zerolog.Logger
}

// Behaviour is one post-processing rule in the pipeline.
type Behaviour interface {
	// Initialise extracts required objects from the context, failing fast
	// when one is absent.
	Initialise(ctx *BehaviourContext) error

	// ApplyBehaviour performs the behaviour's single mutation pass.
	ApplyBehaviour() error
}

// defaultBehaviours returns the built-in pipeline in its fixed order.
func defaultBehaviours() []Behaviour {
	return []Behaviour{
		&wrongAccountBehaviour{},
		&transferAdjustmentsBehaviour{},
		&futureTransactionsBehaviour{},
		&overdrawnSurplusBehaviour{},
		&bucketHookBehaviour{},
	}
}

// runBehaviours applies each behaviour in sequence against the new line.
func runBehaviours(ctx *BehaviourContext, behaviours []Behaviour) error {
	for _, b := range behaviours {
		if err := b.Initialise(ctx); err != nil {
			return err
		}
		if err := b.ApplyBehaviour(); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// OVERDRAWN SURPLUS DETECTION
// =============================================================================

// overdrawnSurplusBehaviour scans the per-account surplus balances and
// raises an advisory task for any account holding less than its buckets
// have earmarked.
type overdrawnSurplusBehaviour struct {
	line *ledger.EntryLine
	todo *tasks.ToDoList
}

func (b *overdrawnSurplusBehaviour) Initialise(ctx *BehaviourContext) error {
	if ctx.Line == nil || ctx.Todo == nil {
		return fmt.Errorf("%w: overdrawn-surplus needs line and to-do list", ErrMissingContext)
	}
	b.line = ctx.Line
	b.todo = ctx.Todo
	return nil
}

func (b *overdrawnSurplusBehaviour) ApplyBehaviour() error {
	for _, s := range b.line.SurplusBalances() {
		if s.Balance.IsNegative() {
			b.todo.Add(tasks.NewToDoTask(
				fmt.Sprintf("Account %s is overdrawn against its earmarked buckets by %s; top it up or move bucket funds.",
					s.Account, s.Balance.Neg().StringFixed(2)),
				true))
		}
	}
	return nil
}

// =============================================================================
// PER-BUCKET BEHAVIOUR HOOK
// =============================================================================

// bucketHookBehaviour delegates to each bucket's own reconciliation
// behaviour and replaces the entry's transaction list when the bucket
// signals a change.
type bucketHookBehaviour struct {
	line      *ledger.EntryLine
	closeDate time.Time
	log       zerolog.Logger
}

func (b *bucketHookBehaviour) Initialise(ctx *BehaviourContext) error {
	if ctx.Line == nil {
		return fmt.Errorf("%w: bucket hook needs the new line", ErrMissingContext)
	}
	b.line = ctx.Line
	b.closeDate = ctx.CloseDate
	b.log = ctx.Log
	return nil
}

func (b *bucketHookBehaviour) ApplyBehaviour() error {
	for _, e := range b.line.Entries() {
		txs, changed := e.Bucket().ApplyReconciliationBehaviour(e.OpeningBalance(), e.Transactions(), b.closeDate)
		if !changed {
			continue
		}
		if err := b.line.SetEntryTransactions(e, txs); err != nil {
			return err
		}
		b.log.Info().
			Str("bucket", e.Bucket().BudgetBucketCode).
			Msg("bucket contributed reconciliation transactions")
	}
	return nil
}
