/*
Package rules is the notification sink for single-use auto-categorization
rules. When a reconciliation generates a transfer instruction carrying an
auto-matching reference, the engine registers a rule so the eventual
statement import assigns the correct bucket to the matching transfer
transaction without user intervention.

Rules created here are single-use: once a transaction matches, the rule is
consumed.
*/
package rules

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Benrnz/BudgetAnalyser-sub004/statement"
)

// Sink accepts rule registrations from the reconciliation engine.
type Sink interface {
	// CreateRule registers a single-use categorization rule: a statement
	// transaction carrying the reference (and, when non-nil, the amount)
	// is assigned the given bucket code.
	CreateRule(bucketCode, reference string, amount *decimal.Decimal)
}

// SingleUseRule matches at most one statement transaction.
type SingleUseRule struct {
	ID         uuid.UUID
	BucketCode string
	Reference  string
	Amount     *decimal.Decimal
	consumed   bool
}

// Matches reports whether the rule applies to the transaction. A consumed
// rule never matches again.
func (r *SingleUseRule) Matches(t statement.Transaction) bool {
	if r.consumed {
		return false
	}
	if !t.MatchesReference(r.Reference) {
		return false
	}
	if r.Amount != nil && !t.Amount.Abs().Equal(r.Amount.Abs()) {
		return false
	}
	return true
}

func (r *SingleUseRule) Consumed() bool { return r.consumed }

// RuleBook is an in-memory Sink that can also apply its rules to
// uncategorized statement transactions.
type RuleBook struct {
	mu    sync.Mutex
	rules []*SingleUseRule
}

func NewRuleBook() *RuleBook { return &RuleBook{} }

func (b *RuleBook) CreateRule(bucketCode, reference string, amount *decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules = append(b.rules, &SingleUseRule{
		ID:         uuid.New(),
		BucketCode: bucketCode,
		Reference:  reference,
		Amount:     amount,
	})
}

// Rules returns the registered rules.
func (b *RuleBook) Rules() []*SingleUseRule {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*SingleUseRule(nil), b.rules...)
}

// Categorize assigns bucket codes to uncategorized transactions that match
// a live rule, consuming each rule on first use. Returns the number of
// transactions categorized.
func (b *RuleBook) Categorize(txs []statement.Transaction) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for i := range txs {
		if txs[i].BucketCode != "" {
			continue
		}
		for _, r := range b.rules {
			if r.Matches(txs[i]) {
				txs[i].BucketCode = r.BucketCode
				r.consumed = true
				n++
				break
			}
		}
	}
	return n
}
