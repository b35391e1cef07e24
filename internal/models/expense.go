package models

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/money"
)

// SplitType selects how an expense total is divided among its recipients.
type SplitType string

const (
	SplitEqual      SplitType = "EQUAL"
	SplitExact      SplitType = "EXACT"
	SplitPercentage SplitType = "PERCENTAGE"
	SplitShares     SplitType = "SHARES"
)

// SplitTypes lists every split type in declaration order.
var SplitTypes = []SplitType{SplitEqual, SplitExact, SplitPercentage, SplitShares}

// Valid reports whether t is one of the known split types.
func (t SplitType) Valid() bool {
	for _, known := range SplitTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Expense is a recorded cost shared by members of a group.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string `json:"id"`

	// GroupID is the group this expense belongs to.
	GroupID string `json:"group_id"`

	// Description is a free-form label (e.g., "Groceries").
	Description string `json:"description,omitempty"`

	// Total is the full cost. Every payer and split amount is in Total's currency.
	Total money.Money `json:"total"`

	// SplitType decides which field of each SplitEntry is read.
	SplitType SplitType `json:"split_type"`

	// Payers lists who paid. Their amounts must sum to Total.
	Payers []Payer `json:"payers"`

	// Splits lists who consumed the expense.
	Splits []SplitEntry `json:"splits"`

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64 `json:"created_at"`
}

// Payer is one contribution towards an expense total.
type Payer struct {
	UserID string      `json:"user_id"`
	Amount money.Money `json:"amount"`
}

// SplitEntry is one recipient of an expense. Only the field matching the
// expense's SplitType is read: nothing for EQUAL, Amount for EXACT,
// Percentage for PERCENTAGE and Shares for SHARES.
type SplitEntry struct {
	UserID     string           `json:"user_id"`
	Amount     *money.Money     `json:"amount,omitempty"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
	Shares     int64            `json:"shares,omitempty"`
}

// ResolvedSplit is one member's effect on balances from a single expense.
type ResolvedSplit struct {
	ExpenseID string      `json:"expense_id"`
	UserID    string      `json:"user_id"`
	Paid      money.Money `json:"paid"`
	Owed      money.Money `json:"owed"`
}

// Net returns paid minus owed in minor units.
func (s ResolvedSplit) Net() int64 {
	return s.Paid.MinorUnits - s.Owed.MinorUnits
}
