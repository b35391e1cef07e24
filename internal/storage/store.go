// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ExpenseStore persists the authoritative expense list. Balances are never
// stored; they are rebuilt from ListExpensesByGroup.
type ExpenseStore interface {
	// CreateExpense persists a new expense.
	// The ID and CreatedAt fields are populated by the store when empty.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense retrieves an expense with its payers and splits.
	// Returns ErrNotFound if the expense does not exist.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// UpdateExpense replaces an existing expense's fields, payers and splits.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense and its payers and splits.
	DeleteExpense(ctx context.Context, expenseID string) error

	// ListExpensesByGroup returns a group's expenses oldest first.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error)
}

// RateStore persists the latest exchange rate per currency pair. It
// satisfies fx.RateProvider.
type RateStore interface {
	// PutRate inserts or replaces the rate for r.From -> r.To.
	PutRate(ctx context.Context, r models.ExchangeRate) error

	// GetRate returns the stored rate, or ErrNotFound.
	GetRate(ctx context.Context, from, to money.Code) (models.ExchangeRate, error)
}

// Store combines every persistence concern of the service.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	ExpenseStore
	RateStore

	// Close releases any resources held by the store.
	Close() error
}
