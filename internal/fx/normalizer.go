// Package fx converts money between currencies using an injected rate provider.
package fx

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

var (
	ErrRateUnavailable = errors.New("exchange rate unavailable")
	ErrStaleRate       = fmt.Errorf("%w: rate is stale", ErrRateUnavailable)
)

// RateProvider supplies exchange rates. Implementations own freshness and
// caching policy; the Normalizer treats every call as a pure lookup.
type RateProvider interface {
	GetRate(ctx context.Context, from, to money.Code) (models.ExchangeRate, error)
}

// Normalizer converts amounts into a target currency.
type Normalizer struct {
	provider RateProvider
}

// NewNormalizer creates a Normalizer backed by provider.
func NewNormalizer(provider RateProvider) *Normalizer {
	return &Normalizer{provider: provider}
}

// Normalize converts amount into target. Same-currency amounts are returned
// unchanged without consulting the provider. Otherwise the result is
// minor × rate × 10^(target precision − source precision), rounded half away
// from zero to a whole minor unit.
func (n *Normalizer) Normalize(ctx context.Context, amount money.Money, target money.Code) (money.Money, error) {
	q, err := n.Quote(ctx, amount.Currency, target)
	if err != nil {
		return money.Money{}, err
	}
	return q.Convert(amount.MinorUnits)
}

// Quote is a rate fixed for one conversion batch.
type Quote struct {
	src, dst money.CurrencyInfo
	rate     decimal.Decimal
}

// Quote looks up the from->to rate once so that a batch of amounts converts
// at a single consistent rate.
func (n *Normalizer) Quote(ctx context.Context, from, to money.Code) (Quote, error) {
	src, err := money.Lookup(from)
	if err != nil {
		return Quote{}, err
	}
	dst, err := money.Lookup(to)
	if err != nil {
		return Quote{}, err
	}
	if src.Code == dst.Code {
		return Quote{src: src, dst: dst, rate: decimal.NewFromInt(1)}, nil
	}

	rate, err := n.rate(ctx, src.Code, dst.Code)
	if err != nil {
		return Quote{}, err
	}
	return Quote{src: src, dst: dst, rate: rate}, nil
}

// Convert converts minor units of the quote's source currency.
func (q Quote) Convert(minor int64) (money.Money, error) {
	if q.src.Code == q.dst.Code {
		return money.New(minor, q.dst.Code), nil
	}
	return Convert(minor, q.rate, q.src, q.dst)
}

// Target is the currency the quote converts into.
func (q Quote) Target() money.Code { return q.dst.Code }

func (n *Normalizer) rate(ctx context.Context, from, to money.Code) (decimal.Decimal, error) {
	if n == nil || n.provider == nil {
		return decimal.Decimal{}, fmt.Errorf("%w: no provider for %s->%s", ErrRateUnavailable, from, to)
	}
	r, err := n.provider.GetRate(ctx, from, to)
	if err != nil {
		if errors.Is(err, ErrRateUnavailable) {
			return decimal.Decimal{}, err
		}
		return decimal.Decimal{}, fmt.Errorf("%w: %s->%s: %v", ErrRateUnavailable, from, to, err)
	}
	if r.From != from || r.To != to {
		return decimal.Decimal{}, fmt.Errorf("%w: provider returned %s->%s for %s->%s", ErrRateUnavailable, r.From, r.To, from, to)
	}
	if !r.Rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: non-positive rate %s for %s->%s", ErrRateUnavailable, r.Rate, from, to)
	}
	return r.Rate, nil
}

// Convert applies rate to minor units of src, producing minor units of dst.
func Convert(minor int64, rate decimal.Decimal, src, dst money.CurrencyInfo) (money.Money, error) {
	converted := decimal.New(minor, 0).
		Mul(rate).
		Shift(int32(dst.Precision - src.Precision)).
		Round(0)

	units := converted.BigInt()
	if !units.IsInt64() {
		return money.Money{}, money.ErrOverflow
	}
	return money.New(units.Int64(), dst.Code), nil
}
