/*
Package tasks holds the user-facing follow-up items the reconciliation
engine produces: plain to-do reminders and transfer instructions.

System-generated tasks are ephemeral - regenerated on every reconciliation
and never persisted. User-created tasks persist.
*/
package tasks

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Task is anything the user should follow up on after a reconciliation.
type Task interface {
	Summary() string
	IsSystemGenerated() bool
}

// ToDoTask is a plain follow-up reminder.
type ToDoTask struct {
	ID              uuid.UUID
	Description     string
	SystemGenerated bool
}

func NewToDoTask(description string, systemGenerated bool) *ToDoTask {
	return &ToDoTask{ID: uuid.New(), Description: description, SystemGenerated: systemGenerated}
}

func (t *ToDoTask) Summary() string         { return t.Description }
func (t *ToDoTask) IsSystemGenerated() bool { return t.SystemGenerated }

// TransferTask instructs the user to move money between accounts. It
// carries the auto-matching reference so the eventual statement transaction
// can be reconciled back to the ledger entry that expected it.
type TransferTask struct {
	ToDoTask
	Amount               decimal.Decimal
	SourceAccount        string
	DestinationAccount   string
	BucketCode           string
	Reference            string
	BankTransferRequired bool
}

func NewTransferTask(description string, amount decimal.Decimal, source, destination, bucketCode, reference string) *TransferTask {
	return &TransferTask{
		ToDoTask:             ToDoTask{ID: uuid.New(), Description: description, SystemGenerated: true},
		Amount:               amount,
		SourceAccount:        source,
		DestinationAccount:   destination,
		BucketCode:           bucketCode,
		Reference:            reference,
		BankTransferRequired: true,
	}
}

// ToDoList collects tasks during a reconciliation. Safe for concurrent Add:
// the wrong-account behaviour proposes tasks from parallel workers.
type ToDoList struct {
	mu    sync.Mutex
	items []Task
}

func NewToDoList() *ToDoList { return &ToDoList{} }

func (l *ToDoList) Add(t Task) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, t)
}

// All returns the collected tasks in insertion order.
func (l *ToDoList) All() []Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Task(nil), l.items...)
}

func (l *ToDoList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// TransferTasks returns only the transfer instructions.
func (l *ToDoList) TransferTasks() []*TransferTask {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*TransferTask
	for _, t := range l.items {
		if tt, ok := t.(*TransferTask); ok {
			out = append(out, tt)
		}
	}
	return out
}
