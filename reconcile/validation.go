/*
validation.go - Pre-reconciliation validation

Validation failures come in two tiers. Hard errors (invalid book, bad date
ordering) can never be suppressed. Warnings represent plausible-but-risky
situations; each carries a stable code so the caller can suppress a
specific category on retry without being re-prompted for it. A fresh
attempt always re-evaluates every category.
*/
package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Benrnz/BudgetAnalyser-sub004/budget"
	"github.com/Benrnz/BudgetAnalyser-sub004/ledger"
	"github.com/Benrnz/BudgetAnalyser-sub004/statement"
)

// Hard validation errors. Never suppressible.
var (
	ErrCloseDateNotAfterPrevious = errors.New("closing date must be strictly after the previous reconciliation date")
	ErrCloseDateTooSoon          = errors.New("monthly reconciliation must be at least 4 weeks after the previous")
	ErrBudgetInactive            = errors.New("no active budget for the closing date")
)

// WarningCode is the stable category code for a suppressible warning.
type WarningCode string

const (
	WarnDayOfMonthMismatch WarningCode = "day_of_month_mismatch"
	WarnFortnightNotExact  WarningCode = "fortnight_not_exact"
	WarnStatementCoverage  WarningCode = "statement_coverage"
	WarnUncategorised      WarningCode = "uncategorised_transactions"
	WarnOrphanedReferences WarningCode = "orphaned_auto_match_references"
	WarnStaleStatement     WarningCode = "stale_statement"
)

// Warning is one suppressible validation finding.
type Warning struct {
	Code    WarningCode
	Message string
}

// ValidationWarningsError aggregates the unsuppressed warnings of an
// attempt. Callers retry with the reported codes suppressed.
type ValidationWarningsError struct {
	Warnings []Warning
}

func (e *ValidationWarningsError) Error() string {
	codes := make([]string, len(e.Warnings))
	for i, w := range e.Warnings {
		codes[i] = string(w.Code)
	}
	return fmt.Sprintf("reconciliation blocked by %d warning(s): %s", len(e.Warnings), strings.Join(codes, ", "))
}

// validate runs every pre-reconciliation rule. Hard failures return an
// error immediately; otherwise all warnings are collected and returned.
func validate(book *ledger.Book, in BuildInput, periodStart time.Time) ([]Warning, error) {
	if err := book.Validate(); err != nil {
		return nil, err
	}

	var warnings []Warning
	if ws, err := validateDateSpacing(book, in); err != nil {
		return nil, err
	} else {
		warnings = append(warnings, ws...)
	}

	warnings = append(warnings, validateStatementCoverage(in, periodStart)...)
	warnings = append(warnings, validateCategorization(in, periodStart)...)
	warnings = append(warnings, orphanedAutoMatchWarnings(book, in.Statement.InPeriod(periodStart, in.CloseDate))...)
	warnings = append(warnings, validateStatementFreshness(in)...)
	return warnings, nil
}

func validateDateSpacing(book *ledger.Book, in BuildInput) ([]Warning, error) {
	previous := book.RecentLine()
	if previous == nil {
		return nil, nil
	}
	if !in.CloseDate.After(previous.Date) {
		return nil, fmt.Errorf("%w: %s is not after %s", ErrCloseDateNotAfterPrevious,
			in.CloseDate.Format("2006-01-02"), previous.Date.Format("2006-01-02"))
	}

	// Calendar days, not durations: a DST transition makes exactly 14 or 28
	// calendar days come out an hour short or long.
	var warnings []Warning
	switch in.Budget.Cycle {
	case budget.CycleFortnightly:
		if !in.CloseDate.Equal(previous.Date.AddDate(0, 0, 14)) {
			warnings = append(warnings, Warning{
				Code:    WarnFortnightNotExact,
				Message: fmt.Sprintf("fortnightly reconciliation should be exactly 14 days after %s", previous.Date.Format("2006-01-02")),
			})
		}
	default: // monthly
		if in.CloseDate.Before(previous.Date.AddDate(0, 0, 28)) {
			return nil, fmt.Errorf("%w: previous reconciliation was %s", ErrCloseDateTooSoon, previous.Date.Format("2006-01-02"))
		}
		if in.CloseDate.Day() != previous.Date.Day() {
			warnings = append(warnings, Warning{
				Code:    WarnDayOfMonthMismatch,
				Message: fmt.Sprintf("closing date falls on day %d but the previous reconciliation was on day %d", in.CloseDate.Day(), previous.Date.Day()),
			})
		}
	}
	return warnings, nil
}

func validateStatementCoverage(in BuildInput, periodStart time.Time) []Warning {
	earliest := in.Statement.EarliestDate()
	if earliest.IsZero() || earliest.After(periodStart) {
		return []Warning{{
			Code:    WarnStatementCoverage,
			Message: fmt.Sprintf("statement has no transactions covering the period start %s", periodStart.Format("2006-01-02")),
		}}
	}
	return nil
}

func validateCategorization(in BuildInput, periodStart time.Time) []Warning {
	uncategorised := 0
	for _, t := range in.Statement.InPeriod(periodStart, in.CloseDate) {
		if t.BucketCode == "" {
			uncategorised++
		}
	}
	if uncategorised > 0 {
		return []Warning{{
			Code:    WarnUncategorised,
			Message: fmt.Sprintf("%d statement transaction(s) in the period lack a budget-bucket categorization", uncategorised),
		}}
	}
	return nil
}

func validateStatementFreshness(in BuildInput) []Warning {
	last := in.Statement.LastTransactionDateBefore(in.CloseDate)
	if last.IsZero() || in.CloseDate.Sub(last) > 24*time.Hour {
		return []Warning{{
			Code:    WarnStaleStatement,
			Message: "no statement transactions within 24 hours of the closing date; recent transactions may not have been imported",
		}}
	}
	return nil
}

// orphanedAutoMatchWarnings finds pending auto-matching references on the
// most recent line with no candidate among the given statement
// transactions. Shared with the builder's resolution step.
func orphanedAutoMatchWarnings(book *ledger.Book, txns []statement.Transaction) []Warning {
	previous := book.RecentLine()
	if previous == nil {
		return nil
	}
	var warnings []Warning
	for _, e := range previous.Entries() {
		for _, pending := range e.PendingAutoMatchTransactions() {
			if len(matchingStatementTransactions(txns, pending.AutoMatchRef)) == 0 {
				warnings = append(warnings, Warning{
					Code: WarnOrphanedReferences,
					Message: fmt.Sprintf("no statement transaction carries reference %s for bucket %s; the transfer of %s may be missing",
						pending.AutoMatchRef, e.Bucket().BudgetBucketCode, pending.Amount.StringFixed(2)),
				})
			}
		}
	}
	return warnings
}
