package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestApplyReconciliationBehaviour(t *testing.T) {
	now := time.Date(2025, time.July, 20, 0, 0, 0, 0, time.UTC)
	d := decimal.RequireFromString

	cases := []struct {
		name        string
		kind        BucketKind
		opening     string
		txAmounts   []string
		wantChange  bool
		wantClosing string
	}{
		{"spent-per-period remainder returns to surplus", KindSpentPerPeriod, "0", []string{"400", "-310.45"}, true, "0"},
		{"spent-per-period overspend supplemented", KindSpentPerPeriod, "0", []string{"400", "-425"}, true, "0"},
		{"spent-per-period exactly spent", KindSpentPerPeriod, "0", []string{"400", "-400"}, false, "0"},
		{"saved-up-for accumulates", KindSavedUpFor, "100", []string{"50"}, false, "150"},
		{"saved-up-for shortfall supplemented to zero", KindSavedUpFor, "100", []string{"-250"}, true, "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bucket := Bucket{BudgetBucketCode: "TEST", StoredInAccount: "CHEQUE", Kind: tc.kind}
			var txs []*Transaction
			for _, a := range tc.txAmounts {
				txs = append(txs, NewCredit(d(a), "", now))
			}

			out, changed := bucket.ApplyReconciliationBehaviour(d(tc.opening), txs, now)
			if changed != tc.wantChange {
				t.Fatalf("changed = %v, want %v", changed, tc.wantChange)
			}
			closing := d(tc.opening).Add(SumTransactions(out))
			if !closing.Equal(d(tc.wantClosing)) {
				t.Fatalf("closing = %s, want %s", closing, tc.wantClosing)
			}
			if !changed && len(out) != len(txs) {
				t.Fatalf("unchanged bucket must not alter the transaction list")
			}
		})
	}
}
