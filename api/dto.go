/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts travel as JSON strings ("134.44"), the decimal library's
  default encoding. Floats are never used for money.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/: The domain model these shapes mirror
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Benrnz/BudgetAnalyser-sub004/budget"
	"github.com/Benrnz/BudgetAnalyser-sub004/ledger"
	"github.com/Benrnz/BudgetAnalyser-sub004/statement"
	"github.com/Benrnz/BudgetAnalyser-sub004/tasks"
)

// =============================================================================
// BOOK SHAPES
// =============================================================================

// BookDTO is a ledger book in API responses.
type BookDTO struct {
	Name     string      `json:"name"`
	Modified string      `json:"modified"`
	Buckets  []BucketDTO `json:"buckets"`
	Lines    []LineDTO   `json:"lines"`
}

// BucketDTO is one tracked bucket.
type BucketDTO struct {
	Code            string `json:"code"`
	StoredInAccount string `json:"stored_in_account"`
	Kind            string `json:"kind"`
}

// LineDTO is one reconciliation line.
type LineDTO struct {
	Date               string           `json:"date"`
	Remarks            string           `json:"remarks,omitempty"`
	BankBalances       []BankBalanceDTO `json:"bank_balances"`
	BalanceAdjustments []TransactionDTO `json:"balance_adjustments,omitempty"`
	Entries            []EntryDTO       `json:"entries"`
	CalculatedSurplus  decimal.Decimal  `json:"calculated_surplus"`
}

// BankBalanceDTO is one declared account balance.
type BankBalanceDTO struct {
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

// EntryDTO is one bucket's position within a line.
type EntryDTO struct {
	BucketCode     string           `json:"bucket_code"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	ClosingBalance decimal.Decimal  `json:"closing_balance"`
	Transactions   []TransactionDTO `json:"transactions"`
}

// TransactionDTO is one ledger transaction.
type TransactionDTO struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Narrative    string          `json:"narrative,omitempty"`
	Date         string          `json:"date,omitempty"`
	AutoMatchRef string          `json:"auto_match_ref,omitempty"`
	Matched      bool            `json:"matched,omitempty"`
	BankAccount  string          `json:"bank_account,omitempty"`
}

// TaskDTO is one follow-up task from a reconciliation.
type TaskDTO struct {
	Summary         string `json:"summary"`
	SystemGenerated bool   `json:"system_generated"`

	// Transfer fields, present only for transfer tasks.
	Amount               *decimal.Decimal `json:"amount,omitempty"`
	SourceAccount        string           `json:"source_account,omitempty"`
	DestinationAccount   string           `json:"destination_account,omitempty"`
	BucketCode           string           `json:"bucket_code,omitempty"`
	Reference            string           `json:"reference,omitempty"`
	BankTransferRequired bool             `json:"bank_transfer_required,omitempty"`
}

// =============================================================================
// RECONCILIATION REQUESTS
// =============================================================================

// BudgetPayload carries the budget in effect for the reconciliation.
type BudgetPayload struct {
	EffectiveFrom string           `json:"effective_from"`
	Cycle         string           `json:"cycle"`
	Expenses      []ExpensePayload `json:"expenses"`
}

// ExpensePayload is one budgeted line item.
type ExpensePayload struct {
	BucketCode string          `json:"bucket_code"`
	Amount     decimal.Decimal `json:"amount"`
	Active     bool            `json:"active"`
}

// StatementPayload carries the imported bank statement.
type StatementPayload struct {
	Transactions []StatementTransactionPayload `json:"transactions"`
}

// StatementTransactionPayload is one statement transaction.
type StatementTransactionPayload struct {
	ID          string          `json:"id,omitempty"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Account     string          `json:"account"`
	BucketCode  string          `json:"bucket_code,omitempty"`
	Kind        string          `json:"kind"`
	Description string          `json:"description,omitempty"`
	Reference1  string          `json:"reference1,omitempty"`
	Reference2  string          `json:"reference2,omitempty"`
	Reference3  string          `json:"reference3,omitempty"`
}

// ReconcileRequest is the request to close off a period.
type ReconcileRequest struct {
	CloseDate          string           `json:"close_date"`
	Budget             BudgetPayload    `json:"budget"`
	Statement          StatementPayload `json:"statement"`
	BankBalances       []BankBalanceDTO `json:"bank_balances"`
	SuppressedWarnings []string         `json:"suppressed_warnings,omitempty"`
}

// ReconcileResponse is the outcome of a successful reconciliation.
type ReconcileResponse struct {
	Line  LineDTO   `json:"line"`
	Tasks []TaskDTO `json:"tasks"`
}

// TransferRequest moves funds between buckets on the most recent line.
type TransferRequest struct {
	Amount               decimal.Decimal `json:"amount"`
	Narrative            string          `json:"narrative"`
	FromBucket           string          `json:"from_bucket"`
	ToBucket             string          `json:"to_bucket"`
	BankTransferRequired bool            `json:"bank_transfer_required"`
}

// OrphanCheckResponse lists unresolved auto-matching references.
type OrphanCheckResponse struct {
	Warnings []TaskDTO `json:"warnings"`
}

// WarningDTO is one suppressible validation finding.
type WarningDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error    string       `json:"error"`
	Details  string       `json:"details,omitempty"`
	Warnings []WarningDTO `json:"warnings,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toBookDTO(book *ledger.Book) BookDTO {
	dto := BookDTO{
		Name:     book.Name,
		Modified: book.Modified.UTC().Format(time.RFC3339),
		Buckets:  make([]BucketDTO, 0, len(book.Buckets())),
		Lines:    make([]LineDTO, 0, book.LineCount()),
	}
	for _, b := range book.Buckets() {
		dto.Buckets = append(dto.Buckets, BucketDTO{
			Code:            b.BudgetBucketCode,
			StoredInAccount: b.StoredInAccount,
			Kind:            string(b.Kind),
		})
	}
	for _, line := range book.Lines() {
		dto.Lines = append(dto.Lines, toLineDTO(line))
	}
	return dto
}

func toLineDTO(line *ledger.EntryLine) LineDTO {
	dto := LineDTO{
		Date:              line.Date.UTC().Format("2006-01-02"),
		Remarks:           line.Remarks,
		BankBalances:      make([]BankBalanceDTO, 0, len(line.BankBalances())),
		CalculatedSurplus: line.CalculatedSurplus(),
	}
	for _, b := range line.BankBalances() {
		dto.BankBalances = append(dto.BankBalances, BankBalanceDTO{Account: b.Account, Balance: b.Balance})
	}
	for _, adj := range line.BalanceAdjustments() {
		dto.BalanceAdjustments = append(dto.BalanceAdjustments, toTransactionDTO(adj))
	}
	for _, e := range line.Entries() {
		entry := EntryDTO{
			BucketCode:     e.Bucket().BudgetBucketCode,
			OpeningBalance: e.OpeningBalance(),
			ClosingBalance: e.Balance(),
			Transactions:   make([]TransactionDTO, 0, len(e.Transactions())),
		}
		for _, tx := range e.Transactions() {
			entry.Transactions = append(entry.Transactions, toTransactionDTO(tx))
		}
		dto.Entries = append(dto.Entries, entry)
	}
	return dto
}

func toTransactionDTO(tx *ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:           tx.ID.String(),
		Kind:         string(tx.Kind),
		Amount:       tx.Amount,
		Narrative:    tx.Narrative,
		AutoMatchRef: tx.AutoMatchRef,
		Matched:      tx.Matched,
		BankAccount:  tx.BankAccount,
	}
	if tx.Date != nil {
		dto.Date = tx.Date.UTC().Format("2006-01-02")
	}
	return dto
}

func toTaskDTOs(list *tasks.ToDoList) []TaskDTO {
	out := make([]TaskDTO, 0, list.Len())
	for _, task := range list.All() {
		dto := TaskDTO{Summary: task.Summary(), SystemGenerated: task.IsSystemGenerated()}
		if transfer, ok := task.(*tasks.TransferTask); ok {
			amount := transfer.Amount
			dto.Amount = &amount
			dto.SourceAccount = transfer.SourceAccount
			dto.DestinationAccount = transfer.DestinationAccount
			dto.BucketCode = transfer.BucketCode
			dto.Reference = transfer.Reference
			dto.BankTransferRequired = transfer.BankTransferRequired
		}
		out = append(out, dto)
	}
	return out
}

func (p BudgetPayload) toModel() (*budget.Model, error) {
	effective, err := time.Parse("2006-01-02", p.EffectiveFrom)
	if err != nil {
		return nil, err
	}
	expenses := make([]budget.Expense, 0, len(p.Expenses))
	for _, e := range p.Expenses {
		expenses = append(expenses, budget.Expense{BucketCode: e.BucketCode, Amount: e.Amount, Active: e.Active})
	}
	return budget.NewModel(effective, budget.Cycle(p.Cycle), expenses), nil
}

func (p StatementPayload) toStatement() (*statement.Statement, error) {
	stmt := &statement.Statement{Transactions: make([]statement.Transaction, 0, len(p.Transactions))}
	for _, t := range p.Transactions {
		parsed, err := parseStatementTransaction(t)
		if err != nil {
			return nil, err
		}
		stmt.Transactions = append(stmt.Transactions, parsed)
	}
	return stmt, nil
}
