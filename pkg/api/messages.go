package api

import "github.com/shopspring/decimal"

// Money is an amount in integer minor units of Currency.
type Money struct {
	MinorUnits int64  `json:"minor_units"`
	Currency   string `json:"currency"`
}

type Payer struct {
	UserID string `json:"user_id"`
	Amount Money  `json:"amount"`
}

// SplitEntry carries the one field its expense's split type reads.
type SplitEntry struct {
	UserID     string           `json:"user_id"`
	Amount     *Money           `json:"amount,omitempty"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
	Shares     int64            `json:"shares,omitempty"`
}

type Expense struct {
	ID          string       `json:"id,omitempty"`
	GroupID     string       `json:"group_id"`
	Description string       `json:"description,omitempty"`
	Total       Money        `json:"total"`
	SplitType   string       `json:"split_type"`
	Payers      []Payer      `json:"payers"`
	Splits      []SplitEntry `json:"splits"`
	CreatedAt   int64        `json:"created_at,omitempty"`
}

type ResolvedSplit struct {
	UserID string `json:"user_id"`
	Paid   Money  `json:"paid"`
	Owed   Money  `json:"owed"`
}

type Balance struct {
	UserID        string `json:"user_id"`
	Currency      string `json:"currency"`
	Net           int64  `json:"net"`
	DisplayAmount string `json:"display_amount"`
}

type Transfer struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Amount        Money  `json:"amount"`
	DisplayAmount string `json:"display_amount"`
}

// ExchangeRate converts one unit of From into Rate units of To. AsOf is a
// Unix timestamp in seconds; zero means now.
type ExchangeRate struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Rate decimal.Decimal `json:"rate"`
	AsOf int64           `json:"as_of,omitempty"`
}

type RecordExpenseRequest struct {
	Expense Expense `json:"expense"`
}

func (r *RecordExpenseRequest) GetGroupID() string { return r.Expense.GroupID }

type RecordExpenseResponse struct {
	Expense Expense         `json:"expense"`
	Splits  []ResolvedSplit `json:"splits"`
}

// UpdateExpenseRequest replaces the expense with the same ID.
type UpdateExpenseRequest struct {
	Expense Expense `json:"expense"`
}

func (r *UpdateExpenseRequest) GetGroupID() string { return r.Expense.GroupID }

type UpdateExpenseResponse struct {
	Expense Expense         `json:"expense"`
	Splits  []ResolvedSplit `json:"splits"`
}

type DeleteExpenseRequest struct {
	GroupID   string `json:"group_id"`
	ExpenseID string `json:"expense_id"`
}

func (r *DeleteExpenseRequest) GetGroupID() string { return r.GroupID }

type DeleteExpenseResponse struct{}

// ResolveExpenseRequest previews an expense without recording it.
type ResolveExpenseRequest struct {
	Expense Expense `json:"expense"`
}

func (r *ResolveExpenseRequest) GetGroupID() string { return r.Expense.GroupID }

type ResolveExpenseResponse struct {
	Splits []ResolvedSplit `json:"splits"`
}

// RecordSettlementRequest records that FromUserID paid ToUserID.
type RecordSettlementRequest struct {
	GroupID    string `json:"group_id"`
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Amount     Money  `json:"amount"`
	Note       string `json:"note,omitempty"`
}

func (r *RecordSettlementRequest) GetGroupID() string { return r.GroupID }

type RecordSettlementResponse struct {
	Expense Expense `json:"expense"`
}

// GetGroupBalancesRequest leaves ReportingCurrency empty to use the server
// default, or sets it to "NATIVE" to force native currencies.
type GetGroupBalancesRequest struct {
	GroupID           string `json:"group_id"`
	ReportingCurrency string `json:"reporting_currency,omitempty"`
}

func (r *GetGroupBalancesRequest) GetGroupID() string { return r.GroupID }

type GetGroupBalancesResponse struct {
	Balances          []Balance `json:"balances"`
	ReportingCurrency string    `json:"reporting_currency,omitempty"`
}

type SimplifyDebtsRequest struct {
	GroupID           string `json:"group_id"`
	ReportingCurrency string `json:"reporting_currency,omitempty"`
}

func (r *SimplifyDebtsRequest) GetGroupID() string { return r.GroupID }

type SimplifyDebtsResponse struct {
	Transfers []Transfer `json:"transfers"`
}

type PutExchangeRateRequest struct {
	Rate ExchangeRate `json:"rate"`
}

type PutExchangeRateResponse struct {
	Rate ExchangeRate `json:"rate"`
}

// NativeCurrencies as a reporting currency keeps balances in the currencies
// they were recorded in, overriding any server default.
const NativeCurrencies = "NATIVE"
