/*
handlers.go - HTTP API handlers for the ledger reconciliation engine

PURPOSE:
  Exposes ledger books and the reconciliation engine via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Books:
    GET    /api/books                    List saved books
    GET    /api/books/{name}             Full book with all lines
    POST   /api/books/{name}             Create an empty book with buckets
    POST   /api/books/{name}/reconcile   Period-end reconciliation
    POST   /api/books/{name}/transfer    Fund transfer on the newest line
    POST   /api/books/{name}/orphan-check Unresolved reference pre-check

  Reminders:
    GET    /api/reminders                Books overdue for reconciliation

REQUEST FLOW:
  1. Parse HTTP request
  2. Load the book from the store
  3. Call domain logic (reconcile.Manager)
  4. Save the mutated book
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Book not found
  - 422: Suppressible validation warnings (codes in the body)
  - 500: Internal errors, corrupted ledger

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - reconcile/manager.go: The operations exposed here
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Benrnz/BudgetAnalyser-sub004/account"
	"github.com/Benrnz/BudgetAnalyser-sub004/budget"
	"github.com/Benrnz/BudgetAnalyser-sub004/ledger"
	"github.com/Benrnz/BudgetAnalyser-sub004/reconcile"
	"github.com/Benrnz/BudgetAnalyser-sub004/rules"
	"github.com/Benrnz/BudgetAnalyser-sub004/statement"
	"github.com/Benrnz/BudgetAnalyser-sub004/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Accounts account.Registry
	Rules    rules.Sink
	Log      zerolog.Logger

	// ReminderGrace is the overdue window for GET /api/reminders; zero
	// means DefaultReminderGrace. Kept in sync with the cron scheduler by
	// the entry point.
	ReminderGrace time.Duration
}

// NewHandler creates a new handler with the given store and collaborators.
func NewHandler(store *sqlite.Store, accounts account.Registry, sink rules.Sink, log zerolog.Logger) *Handler {
	return &Handler{Store: store, Accounts: accounts, Rules: sink, Log: log}
}

func (h *Handler) manager() *reconcile.Manager {
	return reconcile.NewManager(h.Accounts, h.Rules, h.Log)
}

// =============================================================================
// BOOK HANDLERS
// =============================================================================

// ListBooks returns the names of all saved books.
// GET /api/books
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	names, err := h.Store.ListBooks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list books", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

// GetBook returns a full book with all its reconciliation lines.
// GET /api/books/{name}
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	book, ok := h.loadBook(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toBookDTO(book))
}

// CreateBookRequest declares a new book's buckets and opening balances.
type CreateBookRequest struct {
	Buckets  []BucketDTO                `json:"buckets"`
	Openings map[string]decimal.Decimal `json:"openings,omitempty"`
}

// CreateBook creates an empty ledger book.
// POST /api/books/{name}
func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req CreateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	book := ledger.NewBook(name)
	for _, b := range req.Buckets {
		book.TrackBucket(ledger.Bucket{
			BudgetBucketCode: b.Code,
			StoredInAccount:  b.StoredInAccount,
			Kind:             ledger.BucketKind(b.Kind),
		})
	}
	for code, balance := range req.Openings {
		book.SetDeclaredOpening(code, balance)
	}
	if err := book.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid book", err)
		return
	}
	if err := h.Store.SaveBook(r.Context(), book); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save book", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookDTO(book))
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// Reconcile performs a period-end reconciliation on a book.
// POST /api/books/{name}/reconcile
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	book, ok := h.loadBook(w, r)
	if !ok {
		return
	}

	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid reconciliation request", err)
		return
	}

	result, err := h.manager().PeriodEndReconciliation(r.Context(), book, in)
	if err != nil {
		writeReconcileError(w, err)
		return
	}

	if err := h.Store.SaveBook(r.Context(), book); err != nil {
		writeError(w, http.StatusInternalServerError, "Reconciled but failed to save book", err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{
		Line:  toLineDTO(result.Line),
		Tasks: toTaskDTOs(result.Tasks),
	})
}

// Transfer moves funds between two buckets on the most recent line.
// POST /api/books/{name}/transfer
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	book, ok := h.loadBook(w, r)
	if !ok {
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cmd, err := h.toTransferCommand(book, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transfer", err)
		return
	}

	if err := h.manager().TransferFunds(book, cmd, book.RecentLine()); err != nil {
		switch {
		case errors.Is(err, reconcile.ErrLedgerCorrupt):
			writeError(w, http.StatusInternalServerError, "Ledger corrupt", err)
		default:
			writeError(w, http.StatusBadRequest, "Transfer rejected", err)
		}
		return
	}

	if err := h.Store.SaveBook(r.Context(), book); err != nil {
		writeError(w, http.StatusInternalServerError, "Transferred but failed to save book", err)
		return
	}
	writeJSON(w, http.StatusOK, toLineDTO(book.RecentLine()))
}

// OrphanCheck reports unresolved auto-matching references against a
// candidate statement, before the user attempts a reconciliation.
// POST /api/books/{name}/orphan-check
func (h *Handler) OrphanCheck(w http.ResponseWriter, r *http.Request) {
	book, ok := h.loadBook(w, r)
	if !ok {
		return
	}

	var payload StatementPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	stmt, err := payload.toStatement()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid statement", err)
		return
	}

	resp := OrphanCheckResponse{Warnings: []TaskDTO{}}
	for _, task := range reconcile.ValidateAgainstOrphanedAutoMatchingTransactions(book, stmt) {
		resp.Warnings = append(resp.Warnings, TaskDTO{Summary: task.Summary(), SystemGenerated: task.IsSystemGenerated()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) loadBook(w http.ResponseWriter, r *http.Request) (*ledger.Book, bool) {
	name := chi.URLParam(r, "name")
	book, err := h.Store.LoadBook(r.Context(), name)
	if errors.Is(err, sqlite.ErrBookNotFound) {
		writeError(w, http.StatusNotFound, "Book not found", err)
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load book", err)
		return nil, false
	}
	return book, true
}

func (req ReconcileRequest) toInput() (reconcile.ReconcileInput, error) {
	closeDate, err := time.Parse("2006-01-02", req.CloseDate)
	if err != nil {
		return reconcile.ReconcileInput{}, fmt.Errorf("bad close_date: %w", err)
	}
	model, err := req.Budget.toModel()
	if err != nil {
		return reconcile.ReconcileInput{}, fmt.Errorf("bad budget: %w", err)
	}
	stmt, err := req.Statement.toStatement()
	if err != nil {
		return reconcile.ReconcileInput{}, fmt.Errorf("bad statement: %w", err)
	}

	balances := make([]ledger.BankBalance, 0, len(req.BankBalances))
	for _, b := range req.BankBalances {
		balances = append(balances, ledger.BankBalance{Account: b.Account, Balance: b.Balance})
	}
	suppressed := make([]reconcile.WarningCode, 0, len(req.SuppressedWarnings))
	for _, code := range req.SuppressedWarnings {
		suppressed = append(suppressed, reconcile.WarningCode(code))
	}

	return reconcile.ReconcileInput{
		CloseDate:          closeDate,
		Budgets:            budget.NewCollection(model),
		Statement:          stmt,
		BankBalances:       balances,
		SuppressedWarnings: suppressed,
	}, nil
}

func (h *Handler) toTransferCommand(book *ledger.Book, req TransferRequest) (reconcile.TransferFundsCommand, error) {
	from, err := resolveBucket(book, req.FromBucket)
	if err != nil {
		return reconcile.TransferFundsCommand{}, err
	}
	to, err := resolveBucket(book, req.ToBucket)
	if err != nil {
		return reconcile.TransferFundsCommand{}, err
	}

	cmd := reconcile.TransferFundsCommand{
		Amount:               req.Amount,
		Narrative:            req.Narrative,
		FromBucket:           from,
		ToBucket:             to,
		BankTransferRequired: req.BankTransferRequired,
	}
	if req.BankTransferRequired {
		cmd.AutoMatchRef = ledger.NewAutoMatchRef()
	}
	return cmd, nil
}

// resolveBucket accepts a tracked bucket code or the surplus pseudo-bucket.
func resolveBucket(book *ledger.Book, code string) (ledger.Bucket, error) {
	if code == ledger.SurplusBucketCode {
		return ledger.Bucket{BudgetBucketCode: ledger.SurplusBucketCode}, nil
	}
	bucket, ok := book.BucketFor(code)
	if !ok {
		return ledger.Bucket{}, fmt.Errorf("bucket %s is not tracked by this book", code)
	}
	return bucket, nil
}

func parseStatementTransaction(p StatementTransactionPayload) (statement.Transaction, error) {
	date, err := time.Parse(time.RFC3339, p.Date)
	if err != nil {
		// Date-only payloads are common for manually entered transactions.
		date, err = time.Parse("2006-01-02", p.Date)
		if err != nil {
			return statement.Transaction{}, fmt.Errorf("bad transaction date %q: %w", p.Date, err)
		}
	}

	id := uuid.New()
	if p.ID != "" {
		id, err = uuid.Parse(p.ID)
		if err != nil {
			return statement.Transaction{}, fmt.Errorf("bad transaction id %q: %w", p.ID, err)
		}
	}

	kind := statement.Kind(p.Kind)
	if kind != statement.KindDebit && kind != statement.KindCredit {
		return statement.Transaction{}, fmt.Errorf("bad transaction kind %q", p.Kind)
	}

	return statement.Transaction{
		ID:          id,
		Date:        date,
		Amount:      p.Amount,
		Account:     p.Account,
		BucketCode:  p.BucketCode,
		Kind:        kind,
		Description: p.Description,
		Reference1:  p.Reference1,
		Reference2:  p.Reference2,
		Reference3:  p.Reference3,
	}, nil
}

func writeReconcileError(w http.ResponseWriter, err error) {
	var warnErr *reconcile.ValidationWarningsError
	switch {
	case errors.As(err, &warnErr):
		resp := ErrorResponse{Error: "Reconciliation blocked by validation warnings"}
		for _, warning := range warnErr.Warnings {
			resp.Warnings = append(resp.Warnings, WarningDTO{Code: string(warning.Code), Message: warning.Message})
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, reconcile.ErrLedgerCorrupt):
		writeError(w, http.StatusInternalServerError, "Ledger corrupt", err)
	default:
		writeError(w, http.StatusBadRequest, "Reconciliation rejected", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
