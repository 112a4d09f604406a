package budget

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodStartForCycle(t *testing.T) {
	closing := date(2025, time.July, 20)

	start, err := PeriodStartForCycle(closing, CycleMonthly)
	if err != nil {
		t.Fatal(err)
	}
	if !start.Equal(date(2025, time.June, 20)) {
		t.Fatalf("monthly start = %s", start)
	}

	start, err = PeriodStartForCycle(closing, CycleFortnightly)
	if err != nil {
		t.Fatal(err)
	}
	if !start.Equal(date(2025, time.July, 6)) {
		t.Fatalf("fortnightly start = %s", start)
	}

	if _, err = PeriodStartForCycle(closing, Cycle("weekly")); err == nil {
		t.Fatal("unsupported cycle must fail")
	}
}

func TestModel_Expense(t *testing.T) {
	m := NewModel(date(2025, time.January, 1), CycleMonthly, []Expense{
		{BucketCode: "POWER", Amount: decimal.NewFromInt(140), Active: true},
	})

	e, ok := m.Expense("POWER")
	if !ok || !e.Amount.Equal(decimal.NewFromInt(140)) {
		t.Fatalf("POWER expense = %+v ok=%v", e, ok)
	}
	if _, ok := m.Expense("UNKNOWN"); ok {
		t.Fatal("unknown bucket must report absence")
	}
}

func TestCollection_ForDate(t *testing.T) {
	older := NewModel(date(2024, time.January, 1), CycleMonthly, nil)
	newer := NewModel(date(2025, time.June, 1), CycleFortnightly, nil)
	c := NewCollection(older, newer)

	if got := c.ForDate(date(2025, time.July, 20)); got != newer {
		t.Fatal("latest effective model wins")
	}
	if got := c.ForDate(date(2024, time.June, 1)); got != older {
		t.Fatal("earlier dates fall back to the older model")
	}
	if got := c.ForDate(date(2023, time.June, 1)); got != nil {
		t.Fatal("no model in effect before the first EffectiveFrom")
	}
}
