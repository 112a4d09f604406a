// Package account resolves bank account identifiers for the reconciliation
// engine. It distinguishes the salary (primary income) account and excludes
// credit-card-type accounts from balance calculations.
package account

import (
	"errors"
	"fmt"
	"sync"
)

// Type classifies an account.
type Type string

const (
	TypeCheque     Type = "cheque"
	TypeSavings    Type = "savings"
	TypeVisa       Type = "visa"
	TypeMastercard Type = "mastercard"
	TypeAmex       Type = "amex"
)

// IsCreditCard reports whether the type is a credit-card account.
func (t Type) IsCreditCard() bool {
	switch t {
	case TypeVisa, TypeMastercard, TypeAmex:
		return true
	}
	return false
}

var (
	ErrUnknownAccount  = errors.New("account does not resolve")
	ErrNoSalaryAccount = errors.New("no salary account registered")
)

// Account is a bank account known to the registry.
type Account struct {
	Name   string
	Type   Type
	Salary bool
}

// Registry resolves accounts by name and identifies the salary account.
type Registry interface {
	Resolve(name string) (Account, error)
	SalaryAccount() (Account, error)
}

// InMemoryRegistry is a Registry backed by a map. Safe for concurrent use.
type InMemoryRegistry struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

func NewInMemoryRegistry(accounts ...Account) *InMemoryRegistry {
	r := &InMemoryRegistry{accounts: make(map[string]Account)}
	for _, a := range accounts {
		r.accounts[a.Name] = a
	}
	return r
}

func (r *InMemoryRegistry) Add(a Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.Name] = a
}

func (r *InMemoryRegistry) Resolve(name string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[name]
	if !ok {
		return Account{}, fmt.Errorf("%w: %q", ErrUnknownAccount, name)
	}
	return a, nil
}

func (r *InMemoryRegistry) SalaryAccount() (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if a.Salary {
			return a, nil
		}
	}
	return Account{}, ErrNoSalaryAccount
}

// All returns every registered account.
func (r *InMemoryRegistry) All() []Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out
}
