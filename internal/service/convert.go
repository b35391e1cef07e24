package service

import (
	"strings"
	"time"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/pkg/api"
)

func toMoney(m api.Money) money.Money {
	return money.New(m.MinorUnits, money.Code(strings.ToUpper(m.Currency)))
}

func fromMoney(m money.Money) api.Money {
	return api.Money{MinorUnits: m.MinorUnits, Currency: string(m.Currency)}
}

// toExpense converts a wire expense. Split types are matched case-insensitively.
func toExpense(e api.Expense) *models.Expense {
	out := &models.Expense{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Description: strings.TrimSpace(e.Description),
		Total:       toMoney(e.Total),
		SplitType:   models.SplitType(strings.ToUpper(e.SplitType)),
		CreatedAt:   e.CreatedAt,
	}
	out.Payers = make([]models.Payer, len(e.Payers))
	for i, p := range e.Payers {
		out.Payers[i] = models.Payer{UserID: p.UserID, Amount: toMoney(p.Amount)}
	}
	out.Splits = make([]models.SplitEntry, len(e.Splits))
	for i, s := range e.Splits {
		entry := models.SplitEntry{UserID: s.UserID, Percentage: s.Percentage, Shares: s.Shares}
		if s.Amount != nil {
			m := toMoney(*s.Amount)
			entry.Amount = &m
		}
		out.Splits[i] = entry
	}
	return out
}

func fromExpense(e *models.Expense) api.Expense {
	out := api.Expense{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Description: e.Description,
		Total:       fromMoney(e.Total),
		SplitType:   string(e.SplitType),
		CreatedAt:   e.CreatedAt,
	}
	out.Payers = make([]api.Payer, len(e.Payers))
	for i, p := range e.Payers {
		out.Payers[i] = api.Payer{UserID: p.UserID, Amount: fromMoney(p.Amount)}
	}
	out.Splits = make([]api.SplitEntry, len(e.Splits))
	for i, s := range e.Splits {
		entry := api.SplitEntry{UserID: s.UserID, Percentage: s.Percentage, Shares: s.Shares}
		if s.Amount != nil {
			m := fromMoney(*s.Amount)
			entry.Amount = &m
		}
		out.Splits[i] = entry
	}
	return out
}

func fromSplits(splits []models.ResolvedSplit) []api.ResolvedSplit {
	out := make([]api.ResolvedSplit, len(splits))
	for i, s := range splits {
		out[i] = api.ResolvedSplit{UserID: s.UserID, Paid: fromMoney(s.Paid), Owed: fromMoney(s.Owed)}
	}
	return out
}

func fromBalanceViews(views []models.BalanceView) []api.Balance {
	out := make([]api.Balance, len(views))
	for i, v := range views {
		out[i] = api.Balance{
			UserID:        v.UserID,
			Currency:      string(v.Currency),
			Net:           v.Net,
			DisplayAmount: v.DisplayAmount,
		}
	}
	return out
}

func fromTransfers(transfers []models.Transfer) []api.Transfer {
	out := make([]api.Transfer, len(transfers))
	for i, t := range transfers {
		out[i] = api.Transfer{
			From:          t.From,
			To:            t.To,
			Amount:        fromMoney(t.Amount),
			DisplayAmount: t.Amount.Format(),
		}
	}
	return out
}

func toRate(r api.ExchangeRate) models.ExchangeRate {
	out := models.ExchangeRate{
		From: money.Code(strings.ToUpper(r.From)),
		To:   money.Code(strings.ToUpper(r.To)),
		Rate: r.Rate,
	}
	if r.AsOf != 0 {
		out.AsOf = time.Unix(r.AsOf, 0).UTC()
	}
	return out
}

func fromRate(r models.ExchangeRate) api.ExchangeRate {
	return api.ExchangeRate{From: string(r.From), To: string(r.To), Rate: r.Rate, AsOf: r.AsOf.Unix()}
}
