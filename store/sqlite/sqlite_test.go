package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benrnz/BudgetAnalyser-sub004/ledger"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleBook(t *testing.T) *ledger.Book {
	t.Helper()
	book := ledger.NewBook("household")
	book.TrackBucket(ledger.Bucket{BudgetBucketCode: "POWER", StoredInAccount: "CHEQUE", Kind: ledger.KindSavedUpFor})
	book.TrackBucket(ledger.Bucket{BudgetBucketCode: "INSHOME", StoredInAccount: "SAVINGS", Kind: ledger.KindSavedUpFor})
	book.SetDeclaredOpening("POWER", dec("85.50"))

	date := time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC)
	credit := ledger.NewBudgetCredit(dec("300"), "Budgeted amount", date)
	credit.AutoMatchRef = "REF300X1"

	entry := ledger.RehydrateEntry(
		ledger.Bucket{BudgetBucketCode: "INSHOME", StoredInAccount: "SAVINGS", Kind: ledger.KindSavedUpFor},
		decimal.Zero, dec("300"), []*ledger.Transaction{credit})
	adjustment := ledger.NewBalanceAdjustment(dec("-300"), "Adjustment for transfers yet to be made against CHEQUE", "CHEQUE", date)
	book.RestoreLine(ledger.RehydrateLine(date, "June close", []ledger.BankBalance{
		{Account: "CHEQUE", Balance: dec("1000")},
		{Account: "SAVINGS", Balance: dec("500")},
	}, []*ledger.Transaction{adjustment}, []*ledger.Entry{entry}))
	return book
}

func TestSaveAndLoadBook_RoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	book := sampleBook(t)

	require.NoError(t, store.SaveBook(ctx, book))

	loaded, err := store.LoadBook(ctx, "household")
	require.NoError(t, err)

	assert.Equal(t, "household", loaded.Name)
	require.NoError(t, loaded.Validate())
	assert.Len(t, loaded.Buckets(), 2)
	assert.True(t, loaded.DeclaredOpening("POWER").Equal(dec("85.50")))
	assert.True(t, loaded.DeclaredOpening("INSHOME").IsZero())

	require.Equal(t, 1, loaded.LineCount())
	line := loaded.RecentLine()
	assert.False(t, line.IsNew(), "rehydrated lines are committed history")
	assert.Equal(t, "June close", line.Remarks)
	assert.True(t, line.TotalBankBalance().Equal(dec("1500")))
	assert.True(t, line.TotalBalanceAdjustments().Equal(dec("-300")))

	entry := line.EntryForBucket("INSHOME")
	require.NotNil(t, entry)
	assert.True(t, entry.Balance().Equal(dec("300")))
	require.Len(t, entry.Transactions(), 1)
	tx := entry.Transactions()[0]
	assert.Equal(t, ledger.KindBudgetCredit, tx.Kind)
	assert.Equal(t, "REF300X1", tx.AutoMatchRef)
	assert.False(t, tx.Matched)

	assert.True(t, loaded.TotalCalculatedSurplus().Equal(book.TotalCalculatedSurplus()),
		"the surplus invariant must survive a round trip")
}

func TestSaveBook_RefreshesAutoMatchState(t *testing.T) {
	// GIVEN: A saved book whose pending reference is later resolved
	// WHEN:  Saving again and reloading
	// THEN:  The matched flag survives the restart

	store := testStore(t)
	ctx := context.Background()
	book := sampleBook(t)
	require.NoError(t, store.SaveBook(ctx, book))

	pending := book.RecentLine().EntryForBucket("INSHOME").Transactions()[0]
	require.NoError(t, pending.MarkMatched())
	require.NoError(t, store.SaveBook(ctx, book))

	loaded, err := store.LoadBook(ctx, "household")
	require.NoError(t, err)
	assert.True(t, loaded.RecentLine().EntryForBucket("INSHOME").Transactions()[0].Matched)
}

func TestLoadBook_NotFound(t *testing.T) {
	store := testStore(t)
	_, err := store.LoadBook(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestListBooks(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	names, err := store.ListBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.SaveBook(ctx, sampleBook(t)))
	other := ledger.NewBook("bach")
	require.NoError(t, store.SaveBook(ctx, other))

	names, err = store.ListBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bach", "household"}, names)
}

func TestSaveBook_LinesRemainAppendOnly(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	book := sampleBook(t)
	require.NoError(t, store.SaveBook(ctx, book))

	// A later reconciliation adds a second line; both survive the save.
	later := time.Date(2025, time.July, 20, 0, 0, 0, 0, time.UTC)
	line := ledger.NewEntryLine(later, []ledger.BankBalance{{Account: "CHEQUE", Balance: dec("900")}})
	require.NoError(t, book.CommitLine(line))
	require.NoError(t, store.SaveBook(ctx, book))

	loaded, err := store.LoadBook(ctx, "household")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.LineCount())
	assert.Equal(t, later, loaded.RecentLine().Date)
}
