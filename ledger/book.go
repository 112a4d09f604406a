/*
book.go - The ledger book

PURPOSE:
  A LedgerBook is an ordered, most-recent-first collection of
  reconciliation lines plus the current canonical set of buckets tracked by
  the book.

CRITICAL INVARIANT:
  The sum of CalculatedSurplus across all existing reconciliation lines
  must never change as a side effect of creating or mutating a new line.
  This is the historical-integrity invariant enforced by the consistency
  guard in the reconcile package. Violating it means the engine has
  silently edited frozen history - a bug, never a business condition.

SEE ALSO:
  - reconcile/consistency.go: The scoped guard enforcing the invariant
  - reconcile/builder.go: Produces new lines for the book
*/
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrLineNotNew is a fatal logic error: only a freshly built line may
	// be committed to the book.
	ErrLineNotNew = errors.New("only a new reconciliation line can be added to the book")

	// ErrBookInvalid indicates the book failed internal validation.
	ErrBookInvalid = errors.New("ledger book is internally invalid")
)

// Book is an ordered, most-recent-first collection of reconciliation lines.
type Book struct {
	Name     string
	Modified time.Time

	lines           []*EntryLine // index 0 is the most recent
	buckets         []Bucket
	openingBalances map[string]decimal.Decimal
}

// NewBook creates an empty ledger book.
func NewBook(name string) *Book {
	return &Book{
		Name:            name,
		Modified:        time.Now(),
		openingBalances: make(map[string]decimal.Decimal),
	}
}

// TrackBucket adds a bucket to the canonical set, or updates its stored-in
// account and kind if the code is already tracked.
func (b *Book) TrackBucket(bucket Bucket) {
	for i, existing := range b.buckets {
		if existing.BudgetBucketCode == bucket.BudgetBucketCode {
			b.buckets[i] = bucket
			return
		}
	}
	b.buckets = append(b.buckets, bucket)
}

// Buckets returns the canonical set of tracked buckets.
func (b *Book) Buckets() []Bucket { return b.buckets }

// BucketFor resolves a tracked bucket by its budget-bucket code.
func (b *Book) BucketFor(code string) (Bucket, bool) {
	for _, bucket := range b.buckets {
		if bucket.BudgetBucketCode == code {
			return bucket, true
		}
	}
	return Bucket{}, false
}

// SetDeclaredOpening declares the opening balance a brand-new bucket starts
// from on the book's first reconciliation. Unspecified buckets start at 0.
func (b *Book) SetDeclaredOpening(code string, balance decimal.Decimal) {
	b.openingBalances[code] = balance
}

// DeclaredOpening returns the declared opening balance for a bucket code.
func (b *Book) DeclaredOpening(code string) decimal.Decimal {
	if bal, ok := b.openingBalances[code]; ok {
		return bal
	}
	return decimal.Zero
}

// Lines returns the reconciliation lines, most recent first.
func (b *Book) Lines() []*EntryLine { return b.lines }

func (b *Book) LineCount() int { return len(b.lines) }

// RecentLine returns the most recent reconciliation line, or nil for a book
// with no history.
func (b *Book) RecentLine() *EntryLine {
	if len(b.lines) == 0 {
		return nil
	}
	return b.lines[0]
}

// CommitLine finalizes a freshly built line and prepends it to the book.
func (b *Book) CommitLine(line *EntryLine) error {
	if !line.IsNew() {
		return ErrLineNotNew
	}
	if err := line.Finalize(); err != nil {
		return err
	}
	b.lines = append([]*EntryLine{line}, b.lines...)
	b.Modified = time.Now()
	return nil
}

// RestoreLine appends a committed line during rehydration from persistence.
// Lines must be restored most recent first.
func (b *Book) RestoreLine(line *EntryLine) {
	b.lines = append(b.lines, line)
}

// TotalCalculatedSurplus sums CalculatedSurplus across all lines. The
// consistency guard compares this value before and after a reconciliation
// operation.
func (b *Book) TotalCalculatedSurplus() decimal.Decimal {
	total := decimal.Zero
	for _, line := range b.lines {
		total = total.Add(line.CalculatedSurplus())
	}
	return total
}

// Validate checks the book's internal structure: line ordering and bucket
// references. A failure here is a hard error for any reconciliation.
func (b *Book) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("%w: book has no name", ErrBookInvalid)
	}
	for i := 0; i < len(b.lines)-1; i++ {
		if !b.lines[i].Date.After(b.lines[i+1].Date) {
			return fmt.Errorf("%w: lines out of order at %s", ErrBookInvalid, b.lines[i].Date.Format("2006-01-02"))
		}
	}
	for _, line := range b.lines {
		for _, e := range line.Entries() {
			if e.Bucket().BudgetBucketCode == "" {
				return fmt.Errorf("%w: entry with empty bucket code in line %s", ErrBookInvalid, line.Date.Format("2006-01-02"))
			}
		}
	}
	return nil
}
