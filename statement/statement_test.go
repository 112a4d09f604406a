package statement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func txOn(date time.Time) Transaction {
	return Transaction{ID: uuid.New(), Date: date, Amount: decimal.NewFromInt(-10), Kind: KindDebit}
}

func TestMatchesReference(t *testing.T) {
	tx := Transaction{Reference1: "ABCD1234", Reference2: "rent", Reference3: "wk30"}
	assert.True(t, tx.MatchesReference("ABCD1234"))
	assert.True(t, tx.MatchesReference("rent"))
	assert.True(t, tx.MatchesReference("wk30"))
	assert.False(t, tx.MatchesReference("abcd1234"), "matching is exact, not case-folded")
	assert.False(t, tx.MatchesReference(""))
}

func TestNarrative(t *testing.T) {
	tx := Transaction{Description: "Countdown", Reference1: "groc", Reference3: "wk30"}
	assert.Equal(t, "Countdown; groc; wk30", tx.Narrative())

	assert.Equal(t, "POWER", Transaction{BucketCode: "POWER"}.Narrative())
	assert.Equal(t, "[No description]", Transaction{}.Narrative())
}

func TestInPeriod_Boundaries(t *testing.T) {
	start := time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC)
	closing := time.Date(2025, time.July, 20, 0, 0, 0, 0, time.UTC)
	s := &Statement{Transactions: []Transaction{
		txOn(start.AddDate(0, 0, -1)), // before the period
		txOn(start),                   // first instant: included
		txOn(closing.Add(-time.Second)),
		txOn(closing), // closing date: excluded
	}}

	got := s.InPeriod(start, closing)
	assert.Len(t, got, 2)
	for _, tx := range got {
		assert.False(t, tx.Date.Before(start))
		assert.True(t, tx.Date.Before(closing))
	}
}

func TestOnOrAfter(t *testing.T) {
	closing := time.Date(2025, time.July, 20, 0, 0, 0, 0, time.UTC)
	s := &Statement{Transactions: []Transaction{
		txOn(closing.Add(-time.Hour)),
		txOn(closing),
		txOn(closing.AddDate(0, 0, 3)),
	}}
	assert.Len(t, s.OnOrAfter(closing), 2)
}

func TestEarliestAndLatestDates(t *testing.T) {
	closing := time.Date(2025, time.July, 20, 0, 0, 0, 0, time.UTC)

	empty := &Statement{}
	assert.True(t, empty.EarliestDate().IsZero())
	assert.True(t, empty.LastTransactionDateBefore(closing).IsZero())

	s := &Statement{Transactions: []Transaction{
		txOn(closing.AddDate(0, -1, 0)),
		txOn(closing.Add(-6 * time.Hour)),
		txOn(closing.AddDate(0, 0, 2)), // after the close; ignored by the freshness check
	}}
	assert.Equal(t, closing.AddDate(0, -1, 0), s.EarliestDate())
	assert.Equal(t, closing.Add(-6*time.Hour), s.LastTransactionDateBefore(closing))
}
