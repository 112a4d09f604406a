/*
Package budget provides the read-only budget model the reconciliation
engine consumes: per-bucket budgeted amounts for a date, and the budget
cycle that drives period arithmetic.

The engine never mutates a budget; it only asks "what is budgeted for this
bucket under the budget active at this date".
*/
package budget

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Cycle is the budgeting cadence. Anything else is an unsupported value
// and fails fatally in period arithmetic.
type Cycle string

const (
	CycleMonthly     Cycle = "monthly"
	CycleFortnightly Cycle = "fortnightly"
)

// ErrUnsupportedCycle is fatal: the engine cannot compute periods for an
// unknown cadence.
var ErrUnsupportedCycle = errors.New("unsupported budget cycle")

// PeriodStartForCycle computes the first reconciliation's period start
// when a book has no history: one cycle back from the closing date.
func PeriodStartForCycle(closeDate time.Time, cycle Cycle) (time.Time, error) {
	switch cycle {
	case CycleMonthly:
		return closeDate.AddDate(0, -1, 0), nil
	case CycleFortnightly:
		return closeDate.AddDate(0, 0, -14), nil
	default:
		return time.Time{}, ErrUnsupportedCycle
	}
}

// Expense is one budgeted line item.
type Expense struct {
	BucketCode string
	Amount     decimal.Decimal
	Active     bool
}

// Model is one budget: a cadence plus expenses keyed by bucket code,
// effective from a date until superseded.
type Model struct {
	EffectiveFrom time.Time
	Cycle         Cycle
	Active        bool
	expenses      map[string]Expense
}

// NewModel builds a budget model from its expenses.
func NewModel(effectiveFrom time.Time, cycle Cycle, expenses []Expense) *Model {
	m := &Model{
		EffectiveFrom: effectiveFrom,
		Cycle:         cycle,
		Active:        true,
		expenses:      make(map[string]Expense, len(expenses)),
	}
	for _, e := range expenses {
		m.expenses[e.BucketCode] = e
	}
	return m
}

// Expense returns the budgeted line item for a bucket code. The zero
// Expense (inactive, zero amount) is returned for unknown codes.
func (m *Model) Expense(bucketCode string) (Expense, bool) {
	e, ok := m.expenses[bucketCode]
	return e, ok
}

// Expenses returns all budgeted line items.
func (m *Model) Expenses() []Expense {
	out := make([]Expense, 0, len(m.expenses))
	for _, e := range m.expenses {
		out = append(out, e)
	}
	return out
}

// Collection holds the budgets over time and resolves the one active for a
// given date.
type Collection struct {
	models []*Model
}

func NewCollection(models ...*Model) *Collection {
	return &Collection{models: models}
}

// ForDate returns the budget in effect at the given date: the latest model
// whose EffectiveFrom is on or before it. Nil when none applies.
func (c *Collection) ForDate(date time.Time) *Model {
	var best *Model
	for _, m := range c.models {
		if m.EffectiveFrom.After(date) {
			continue
		}
		if best == nil || m.EffectiveFrom.After(best.EffectiveFrom) {
			best = m
		}
	}
	return best
}
