package calculator

import (
	"fmt"
	"sort"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// NetBalances folds resolved splits into one net per member per currency.
// Zero nets are dropped. The result is sorted by user ID, then currency.
func NetBalances(groupID string, splits []models.ResolvedSplit) ([]models.Balance, error) {
	type key struct {
		user     string
		currency money.Code
	}
	nets := make(map[key]int64)
	for _, s := range splits {
		if s.Paid.Currency != s.Owed.Currency {
			return nil, fmt.Errorf("%w: split %s/%s", money.ErrCurrencyMismatch, s.ExpenseID, s.UserID)
		}
		nets[key{s.UserID, s.Paid.Currency}] += s.Net()
	}

	out := make([]models.Balance, 0, len(nets))
	for k, net := range nets {
		if net == 0 {
			continue
		}
		out = append(out, models.Balance{GroupID: groupID, UserID: k.user, Currency: k.currency, Net: net})
	}
	SortBalances(out)
	return out, nil
}

// SortBalances orders balances by user ID, then currency.
func SortBalances(balances []models.Balance) {
	sort.Slice(balances, func(i, j int) bool {
		if balances[i].UserID != balances[j].UserID {
			return balances[i].UserID < balances[j].UserID
		}
		return balances[i].Currency < balances[j].Currency
	})
}

// party is one side of the greedy matching; amount is always positive.
type party struct {
	userID string
	amount int64
}

// SimplifyDebts computes transfers that bring every balance to zero.
// All balances must share one currency and sum to zero.
//
// Algorithm (greedy, deterministic):
//   - split members into creditors (net > 0) and debtors (net < 0)
//   - pair the largest creditor with the largest debtor, ties by ascending user ID
//   - transfer min(credit, debt) from debtor to creditor
//   - drop whoever reaches zero and repeat until both sides are empty
func SimplifyDebts(balances []models.Balance) ([]models.Transfer, error) {
	transfers := []models.Transfer{}
	if len(balances) == 0 {
		return transfers, nil
	}

	currency := balances[0].Currency
	nets := make(map[string]int64, len(balances))
	var total int64
	for _, b := range balances {
		if b.Currency != currency {
			return nil, fmt.Errorf("%w: %s vs %s", money.ErrCurrencyMismatch, currency, b.Currency)
		}
		nets[b.UserID] += b.Net
		total += b.Net
	}
	if total != 0 {
		return nil, fmt.Errorf("%w: off by %d %s", ErrUnbalancedInput, total, currency)
	}

	var creditors, debtors []party
	for user, net := range nets {
		switch {
		case net > 0:
			creditors = append(creditors, party{user, net})
		case net < 0:
			debtors = append(debtors, party{user, -net})
		}
	}

	for len(creditors) > 0 && len(debtors) > 0 {
		ci := largest(creditors)
		di := largest(debtors)

		amount := min(creditors[ci].amount, debtors[di].amount)
		transfers = append(transfers, models.Transfer{
			From:   debtors[di].userID,
			To:     creditors[ci].userID,
			Amount: money.New(amount, currency),
		})

		creditors[ci].amount -= amount
		debtors[di].amount -= amount
		if creditors[ci].amount == 0 {
			creditors = removeAt(creditors, ci)
		}
		if debtors[di].amount == 0 {
			debtors = removeAt(debtors, di)
		}
	}

	if len(creditors) != 0 || len(debtors) != 0 {
		return nil, fmt.Errorf("%w: unmatched parties remain", ErrUnbalancedInput)
	}
	return transfers, nil
}

// largest returns the index of the biggest amount, ties broken by ascending user ID.
func largest(parties []party) int {
	best := 0
	for i := 1; i < len(parties); i++ {
		p, b := parties[i], parties[best]
		if p.amount > b.amount || (p.amount == b.amount && p.userID < b.userID) {
			best = i
		}
	}
	return best
}

func removeAt(parties []party, i int) []party {
	parties[i] = parties[len(parties)-1]
	return parties[:len(parties)-1]
}
