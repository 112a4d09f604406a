/*
scheduler.go - Reconciliation reminder scheduler

PURPOSE:
  Periodically scans all saved books and flags the ones overdue for a
  period-end reconciliation, so the user is nudged before statements go
  stale. Reminders are served by GET /api/reminders.

DESIGN:
  - cron-driven background sweep (default: daily at 08:00)
  - A book is overdue when its newest line is older than the grace window
    (default: 35 days, monthly cycle plus a few days of slack)
  - Books with no lines are never flagged; there is nothing to close off
  - The latest sweep result is cached; ListReminders also recomputes on
    demand so the endpoint never serves a stale empty list on startup

USAGE:
  sched := NewReminderScheduler(store, log)
  if err := sched.Start("0 8 * * *"); err != nil { ... }
  // ... later
  sched.Stop()

SEE ALSO:
  - handlers.go: ListReminders endpoint
  - store/sqlite/sqlite.go: Book listing and loading
*/
package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Benrnz/BudgetAnalyser-sub004/store/sqlite"
)

// DefaultReminderGrace is how long after the newest line a book may sit
// before it is flagged as overdue.
const DefaultReminderGrace = 35 * 24 * time.Hour

// Reminder flags one book as overdue for reconciliation.
type Reminder struct {
	Book          string `json:"book"`
	LastReconcile string `json:"last_reconcile"`
	DaysOverdue   int    `json:"days_overdue"`
}

// ReminderScheduler sweeps the store on a cron schedule.
type ReminderScheduler struct {
	Store *sqlite.Store
	Grace time.Duration
	Log   zerolog.Logger

	cron *cron.Cron
	mu   sync.RWMutex
	last []Reminder
}

// NewReminderScheduler creates a scheduler with the default grace window.
func NewReminderScheduler(store *sqlite.Store, log zerolog.Logger) *ReminderScheduler {
	return &ReminderScheduler{
		Store: store,
		Grace: DefaultReminderGrace,
		Log:   log,
		cron:  cron.New(),
	}
}

// Start registers the sweep on the given cron spec and starts the scheduler.
func (rs *ReminderScheduler) Start(spec string) error {
	if _, err := rs.cron.AddFunc(spec, func() { rs.sweep(context.Background()) }); err != nil {
		return err
	}
	rs.cron.Start()
	rs.Log.Info().Str("spec", spec).Msg("reminder scheduler started")
	return nil
}

// Stop stops the scheduler. Pending sweeps run to completion.
func (rs *ReminderScheduler) Stop() {
	ctx := rs.cron.Stop()
	<-ctx.Done()
	rs.Log.Info().Msg("reminder scheduler stopped")
}

// Reminders returns the result of the latest sweep.
func (rs *ReminderScheduler) Reminders() []Reminder {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]Reminder, len(rs.last))
	copy(out, rs.last)
	return out
}

func (rs *ReminderScheduler) sweep(ctx context.Context) []Reminder {
	reminders := rs.Sweep(ctx, time.Now())

	rs.mu.Lock()
	rs.last = reminders
	rs.mu.Unlock()

	for _, rem := range reminders {
		rs.Log.Warn().
			Str("book", rem.Book).
			Int("days_overdue", rem.DaysOverdue).
			Msg("book overdue for reconciliation")
	}
	return reminders
}

// Sweep computes the overdue books as of now. Exposed for the HTTP handler
// and for tests; it does not touch the cached result.
func (rs *ReminderScheduler) Sweep(ctx context.Context, now time.Time) []Reminder {
	names, err := rs.Store.ListBooks(ctx)
	if err != nil {
		rs.Log.Error().Err(err).Msg("reminder sweep failed to list books")
		return nil
	}

	reminders := []Reminder{}
	for _, name := range names {
		book, err := rs.Store.LoadBook(ctx, name)
		if err != nil {
			rs.Log.Error().Err(err).Str("book", name).Msg("reminder sweep failed to load book")
			continue
		}
		recent := book.RecentLine()
		if recent == nil {
			continue
		}
		overdue := now.Sub(recent.Date) - rs.Grace
		if overdue <= 0 {
			continue
		}
		reminders = append(reminders, Reminder{
			Book:          name,
			LastReconcile: recent.Date.UTC().Format("2006-01-02"),
			DaysOverdue:   int(overdue.Hours() / 24),
		})
	}
	sort.Slice(reminders, func(i, j int) bool { return reminders[i].DaysOverdue > reminders[j].DaysOverdue })
	return reminders
}

// ListReminders returns the books overdue for reconciliation.
// GET /api/reminders
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	grace := h.ReminderGrace
	if grace == 0 {
		grace = DefaultReminderGrace
	}
	sched := &ReminderScheduler{Store: h.Store, Grace: grace, Log: h.Log}
	writeJSON(w, http.StatusOK, sched.Sweep(r.Context(), time.Now()))
}
