package calculator

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

var hundred = decimal.NewFromInt(100)

// ResolveExpense computes what every participant paid and owes for one expense.
//
// Algorithm:
//   - paid[u] is the sum of u's payer entries; payers must sum to the total
//   - owed[u] follows the split type (EQUAL, EXACT, PERCENTAGE, SHARES)
//   - rounding leftovers are handed out one minor unit at a time in ascending
//     user-ID order, so Σowed == total exactly
//
// The result has one entry per distinct payer or recipient, sorted by user ID.
func ResolveExpense(expense *models.Expense) ([]models.ResolvedSplit, error) {
	if expense == nil {
		return nil, fmt.Errorf("%w: nil expense", ErrNoParticipants)
	}
	total := expense.Total
	if _, err := money.Lookup(total.Currency); err != nil {
		return nil, err
	}
	if total.MinorUnits < 0 {
		return nil, fmt.Errorf("%w: total %s", ErrNegativeAmount, total)
	}

	paid, err := sumPayers(expense)
	if err != nil {
		return nil, err
	}

	recipients, err := sortedRecipients(expense)
	if err != nil {
		return nil, err
	}

	owed, err := allocate(expense.SplitType, total, recipients)
	if err != nil {
		return nil, err
	}

	return merge(expense.ID, total.Currency, paid, recipients, owed), nil
}

func sumPayers(expense *models.Expense) (map[string]int64, error) {
	total := expense.Total
	paid := make(map[string]int64, len(expense.Payers))
	sum := money.Zero(total.Currency)
	for _, p := range expense.Payers {
		if p.UserID == "" {
			return nil, fmt.Errorf("%w: payer", ErrEmptyUserID)
		}
		if p.Amount.MinorUnits < 0 {
			return nil, fmt.Errorf("%w: payer %s", ErrNegativeAmount, p.UserID)
		}
		var err error
		if sum, err = sum.Add(p.Amount); err != nil {
			return nil, fmt.Errorf("payer %s: %w", p.UserID, err)
		}
		paid[p.UserID] += p.Amount.MinorUnits
	}
	if sum.MinorUnits != total.MinorUnits {
		return nil, fmt.Errorf("%w: payers sum to %d, total is %d", ErrPayerSumMismatch, sum.MinorUnits, total.MinorUnits)
	}
	return paid, nil
}

// sortedRecipients returns the split entries in the pinned remainder order:
// ascending user ID.
func sortedRecipients(expense *models.Expense) ([]models.SplitEntry, error) {
	if len(expense.Splits) == 0 {
		if expense.SplitType == models.SplitShares {
			return nil, ErrInvalidShares
		}
		return nil, ErrNoParticipants
	}

	recipients := make([]models.SplitEntry, len(expense.Splits))
	copy(recipients, expense.Splits)
	sort.Slice(recipients, func(i, j int) bool { return recipients[i].UserID < recipients[j].UserID })

	for i, r := range recipients {
		if r.UserID == "" {
			return nil, fmt.Errorf("%w: split recipient", ErrEmptyUserID)
		}
		if i > 0 && recipients[i-1].UserID == r.UserID {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParticipant, r.UserID)
		}
	}
	return recipients, nil
}

func allocate(splitType models.SplitType, total money.Money, recipients []models.SplitEntry) ([]int64, error) {
	switch splitType {
	case models.SplitEqual:
		return allocateEqual(total, len(recipients)), nil
	case models.SplitExact:
		return allocateExact(total, recipients)
	case models.SplitPercentage:
		return allocatePercentage(total, recipients)
	case models.SplitShares:
		return allocateShares(total, recipients)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSplitType, splitType)
	}
}

func allocateEqual(total money.Money, n int) []int64 {
	base := total.MinorUnits / int64(n)
	remainder := total.MinorUnits % int64(n)

	owed := make([]int64, n)
	for i := range owed {
		owed[i] = base
		if int64(i) < remainder {
			owed[i]++
		}
	}
	return owed
}

func allocateExact(total money.Money, recipients []models.SplitEntry) ([]int64, error) {
	owed := make([]int64, len(recipients))
	sum := money.Zero(total.Currency)
	for i, r := range recipients {
		if r.Amount == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingExactAmount, r.UserID)
		}
		if r.Amount.MinorUnits < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNegativeAmount, r.UserID)
		}
		var err error
		if sum, err = sum.Add(*r.Amount); err != nil {
			return nil, fmt.Errorf("recipient %s: %w", r.UserID, err)
		}
		owed[i] = r.Amount.MinorUnits
	}
	if sum.MinorUnits != total.MinorUnits {
		return nil, fmt.Errorf("%w: amounts sum to %d, total is %d", ErrSplitSumMismatch, sum.MinorUnits, total.MinorUnits)
	}
	return owed, nil
}

func allocatePercentage(total money.Money, recipients []models.SplitEntry) ([]int64, error) {
	sum := decimal.Zero
	for _, r := range recipients {
		if r.Percentage == nil {
			return nil, fmt.Errorf("%w: missing percentage for %s", ErrInvalidPercentageSum, r.UserID)
		}
		if r.Percentage.IsNegative() {
			return nil, fmt.Errorf("%w: negative percentage for %s", ErrInvalidPercentageSum, r.UserID)
		}
		sum = sum.Add(*r.Percentage)
	}
	if !sum.Equal(hundred) {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidPercentageSum, sum)
	}

	owed := make([]int64, len(recipients))
	eligible := make([]bool, len(recipients))
	for i, r := range recipients {
		num, den, err := percentRatio(*r.Percentage)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPercentageSum, r.UserID, err)
		}
		share, _, err := total.MultiplyByRatio(num, den)
		if err != nil {
			return nil, err
		}
		owed[i] = share.MinorUnits
		eligible[i] = num != 0
	}
	return distributeResidue(total.MinorUnits, owed, eligible)
}

// percentRatio turns p percent into an exact integer ratio num/den.
func percentRatio(p decimal.Decimal) (int64, int64, error) {
	num := p.Coefficient()
	den := big.NewInt(100)
	exp := p.Exponent()
	if exp > 0 {
		num.Mul(num, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
	} else if exp < 0 {
		den.Mul(den, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-exp)), nil))
	}
	if !num.IsInt64() || !den.IsInt64() {
		return 0, 0, fmt.Errorf("percentage %s is too precise", p)
	}
	return num.Int64(), den.Int64(), nil
}

func allocateShares(total money.Money, recipients []models.SplitEntry) ([]int64, error) {
	var sum int64
	for _, r := range recipients {
		if r.Shares <= 0 {
			return nil, fmt.Errorf("%w: %s has %d shares", ErrInvalidShares, r.UserID, r.Shares)
		}
		if sum+r.Shares < sum {
			return nil, fmt.Errorf("%w: share total overflows", ErrInvalidShares)
		}
		sum += r.Shares
	}

	owed := make([]int64, len(recipients))
	eligible := make([]bool, len(recipients))
	for i, r := range recipients {
		share, _, err := total.MultiplyByRatio(r.Shares, sum)
		if err != nil {
			return nil, err
		}
		owed[i] = share.MinorUnits
		eligible[i] = true
	}
	return distributeResidue(total.MinorUnits, owed, eligible)
}

// distributeResidue moves total − Σowed one minor unit at a time over the
// eligible recipients in order. Recipients already at zero never give a unit back.
func distributeResidue(total int64, owed []int64, eligible []bool) ([]int64, error) {
	diff := total
	for _, o := range owed {
		diff -= o
	}

	step := int64(1)
	if diff < 0 {
		step = -1
	}
	for diff != 0 {
		moved := false
		for i := range owed {
			if diff == 0 {
				break
			}
			if !eligible[i] || (step < 0 && owed[i] == 0) {
				continue
			}
			owed[i] += step
			diff -= step
			moved = true
		}
		if !moved {
			return nil, fmt.Errorf("%w: cannot place residue of %d", ErrUnbalancedInput, diff)
		}
	}
	return owed, nil
}

func merge(expenseID string, currency money.Code, paid map[string]int64, recipients []models.SplitEntry, owed []int64) []models.ResolvedSplit {
	owedBy := make(map[string]int64, len(recipients))
	users := make([]string, 0, len(recipients)+len(paid))
	for i, r := range recipients {
		owedBy[r.UserID] = owed[i]
		users = append(users, r.UserID)
	}
	for u := range paid {
		if _, ok := owedBy[u]; !ok {
			users = append(users, u)
		}
	}
	sort.Strings(users)

	out := make([]models.ResolvedSplit, len(users))
	for i, u := range users {
		out[i] = models.ResolvedSplit{
			ExpenseID: expenseID,
			UserID:    u,
			Paid:      money.New(paid[u], currency),
			Owed:      money.New(owedBy[u], currency),
		}
	}
	return out
}
