package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/money"
)

// Balance is the running net of one member in one currency.
// Positive = the group owes the member, negative = the member owes the group.
type Balance struct {
	GroupID  string     `json:"group_id"`
	UserID   string     `json:"user_id"`
	Currency money.Code `json:"currency"`
	Net      int64      `json:"net"`
}

// BalanceView is a display row returned by balance queries.
type BalanceView struct {
	UserID        string     `json:"user_id"`
	Currency      money.Code `json:"currency"`
	Net           int64      `json:"net"`
	DisplayAmount string     `json:"display_amount"`
}

// Transfer is a recommended payment that moves From's debt to To.
// Transfers are recomputed on demand and never persisted as ground truth.
type Transfer struct {
	From   string      `json:"from"`
	To     string      `json:"to"`
	Amount money.Money `json:"amount"`
}

// ExchangeRate converts one unit of From into Rate units of To.
type ExchangeRate struct {
	From money.Code      `json:"from"`
	To   money.Code      `json:"to"`
	Rate decimal.Decimal `json:"rate"`
	AsOf time.Time       `json:"as_of"`
}

// SettlementExpense records a payment between two members as an EXACT
// expense: the debtor pays and the creditor is the single recipient, so the
// debtor's net rises and the creditor's net falls by the same amount.
func SettlementExpense(groupID string, t Transfer, note string) *Expense {
	amount := t.Amount
	if note == "" {
		note = "Settlement"
	}
	return &Expense{
		GroupID:     groupID,
		Description: note,
		Total:       amount,
		SplitType:   SplitExact,
		Payers:      []Payer{{UserID: t.From, Amount: amount}},
		Splits:      []SplitEntry{{UserID: t.To, Amount: &amount}},
	}
}
