// Package money implements exact integer money arithmetic.
//
// Amounts are held as int64 minor units (cents for USD, yen for JPY) and never
// pass through floating point. Operations between two values require the same
// currency; conversions go through the fx package.
package money

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrOverflow         = errors.New("amount overflows int64 minor units")
	ErrZeroDenominator  = errors.New("ratio denominator must be positive")
)

// Money is an amount of minor units in a single currency.
type Money struct {
	MinorUnits int64 `json:"minor_units"`
	Currency   Code  `json:"currency"`
}

// Fraction is an exact rounding residue: Num/Den of one minor unit.
type Fraction struct {
	Num int64
	Den int64
}

// IsZero reports whether the residue is zero.
func (f Fraction) IsZero() bool { return f.Num == 0 }

// New returns minor units of the given currency.
func New(minorUnits int64, currency Code) Money {
	return Money{MinorUnits: minorUnits, Currency: currency}
}

// Zero returns a zero amount in currency.
func Zero(currency Code) Money {
	return Money{Currency: currency}
}

func (m Money) sameCurrency(other Money) error {
	if m.Currency != other.Currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return nil
}

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	sum := m.MinorUnits + other.MinorUnits
	if (other.MinorUnits > 0 && sum < m.MinorUnits) || (other.MinorUnits < 0 && sum > m.MinorUnits) {
		return Money{}, ErrOverflow
	}
	return Money{MinorUnits: sum, Currency: m.Currency}, nil
}

// Subtract returns m - other.
func (m Money) Subtract(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	if other.MinorUnits == math.MinInt64 {
		return Money{}, ErrOverflow
	}
	return m.Add(Money{MinorUnits: -other.MinorUnits, Currency: other.Currency})
}

// Negate returns -m. Negating math.MinInt64 minor units is not representable
// and saturates at math.MaxInt64.
func (m Money) Negate() Money {
	if m.MinorUnits == math.MinInt64 {
		return Money{MinorUnits: math.MaxInt64, Currency: m.Currency}
	}
	return Money{MinorUnits: -m.MinorUnits, Currency: m.Currency}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.MinorUnits == 0
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.MinorUnits < 0
}

// Compare returns -1, 0 or +1 as m is less than, equal to or greater than other.
func (m Money) Compare(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	switch {
	case m.MinorUnits < other.MinorUnits:
		return -1, nil
	case m.MinorUnits > other.MinorUnits:
		return 1, nil
	default:
		return 0, nil
	}
}

// MultiplyByRatio returns m × num / den rounded to the nearest minor unit,
// ties away from zero. The second result is the exact residue left by the
// rounding, so that m × num / den == result + residue.Num/residue.Den.
func (m Money) MultiplyByRatio(num, den int64) (Money, Fraction, error) {
	if den <= 0 {
		return Money{}, Fraction{}, ErrZeroDenominator
	}

	product := new(big.Int).Mul(big.NewInt(m.MinorUnits), big.NewInt(num))
	d := big.NewInt(den)
	q, r := new(big.Int).QuoRem(product, d, new(big.Int))

	// |2r| >= den rounds away from zero.
	twice := new(big.Int).Abs(r)
	twice.Lsh(twice, 1)
	if twice.Cmp(d) >= 0 {
		if product.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
			r.Add(r, d)
		} else {
			q.Add(q, big.NewInt(1))
			r.Sub(r, d)
		}
	}

	if !q.IsInt64() {
		return Money{}, Fraction{}, ErrOverflow
	}
	return Money{MinorUnits: q.Int64(), Currency: m.Currency}, Fraction{Num: r.Int64(), Den: den}, nil
}

// Format renders the amount with the currency symbol and precision,
// e.g. "$1.05", "-€0.50", "¥300". Unknown currencies fall back to the code.
func (m Money) Format() string {
	info, err := Lookup(m.Currency)
	if err != nil {
		return strconv.FormatInt(m.MinorUnits, 10) + " " + string(m.Currency)
	}

	abs := new(big.Int).Abs(big.NewInt(m.MinorUnits)).String()
	if info.Precision > 0 {
		if len(abs) <= info.Precision {
			abs = strings.Repeat("0", info.Precision-len(abs)+1) + abs
		}
		cut := len(abs) - info.Precision
		abs = abs[:cut] + "." + abs[cut:]
	}

	sign := ""
	if m.MinorUnits < 0 {
		sign = "-"
	}
	return sign + info.Symbol + abs
}

// String implements fmt.Stringer.
func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.MinorUnits, m.Currency)
}

// Sum adds amounts that all share currency. An empty list sums to zero.
func Sum(currency Code, amounts ...Money) (Money, error) {
	total := Zero(currency)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}
