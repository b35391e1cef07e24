package fx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// countingProvider records how often it is asked for a rate.
type countingProvider struct {
	RateProvider
	calls int
}

func (c *countingProvider) GetRate(ctx context.Context, from, to money.Code) (models.ExchangeRate, error) {
	c.calls++
	return c.RateProvider.GetRate(ctx, from, to)
}

func rate(from, to money.Code, r string) models.ExchangeRate {
	return models.ExchangeRate{From: from, To: to, Rate: decimal.RequireFromString(r), AsOf: time.Now()}
}

func TestNormalize(t *testing.T) {
	provider := NewStaticProvider(
		rate("EUR", "USD", "1.1"),
		rate("USD", "JPY", "151.237"),
		rate("JPY", "USD", "0.0066"),
		rate("USD", "KWD", "0.3071"),
	)
	n := NewNormalizer(provider)
	ctx := context.Background()

	tests := []struct {
		name   string
		amount money.Money
		target money.Code
		want   int64
	}{
		{"EUR to USD", money.New(1000, "EUR"), "USD", 1100},
		{"negative EUR to USD", money.New(-1000, "EUR"), "USD", -1100},
		{"USD cents to whole yen", money.New(1999, "USD"), "JPY", 3023}, // 19.99 × 151.237 = 3023.22763
		{"yen to USD cents", money.New(1500, "JPY"), "USD", 990},       // 1500 × 0.0066 = 9.90
		{"half rounds away from zero", money.New(5, "EUR"), "USD", 6},  // 5.5
		{"negative half rounds away from zero", money.New(-5, "EUR"), "USD", -6},
		{"USD to three-digit KWD", money.New(1000, "USD"), "KWD", 3071}, // 10 × 0.3071 = 3.071
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(ctx, tt.amount, tt.target)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if got.MinorUnits != tt.want || got.Currency != tt.target {
				t.Errorf("Normalize = %v, want %d %s", got, tt.want, tt.target)
			}
		})
	}
}

func TestNormalize_SameCurrencySkipsProvider(t *testing.T) {
	provider := &countingProvider{RateProvider: NewStaticProvider()}
	n := NewNormalizer(provider)

	got, err := n.Normalize(context.Background(), money.New(123, "USD"), "USD")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got.MinorUnits != 123 {
		t.Errorf("Normalize = %v, want 123 USD", got)
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times, want 0", provider.calls)
	}
}

func TestNormalize_Errors(t *testing.T) {
	provider := NewStaticProvider(
		rate("EUR", "USD", "0"),
		models.ExchangeRate{From: "GBP", To: "EUR", Rate: decimal.RequireFromString("1.17")},
	)
	n := NewNormalizer(provider)
	ctx := context.Background()

	tests := []struct {
		name    string
		amount  money.Money
		target  money.Code
		wantErr error
	}{
		{"unknown source", money.New(1, "ZZZ"), "USD", money.ErrUnsupportedCurrency},
		{"unknown target", money.New(1, "USD"), "ZZZ", money.ErrUnsupportedCurrency},
		{"missing rate", money.New(1, "USD"), "EUR", ErrRateUnavailable},
		{"zero rate", money.New(1, "EUR"), "USD", ErrRateUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := n.Normalize(ctx, tt.amount, tt.target); !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewNormalizer(nil).Normalize(ctx, money.New(1, "GBP"), "EUR"); !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("nil provider: got %v, want ErrRateUnavailable", err)
	}
}

func TestFreshnessGuard(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	inner := NewStaticProvider(
		models.ExchangeRate{From: "EUR", To: "USD", Rate: decimal.RequireFromString("1.1"), AsOf: now.Add(-time.Hour)},
		models.ExchangeRate{From: "GBP", To: "USD", Rate: decimal.RequireFromString("1.3"), AsOf: now.Add(-48 * time.Hour)},
	)
	guard := &FreshnessGuard{Provider: inner, MaxAge: 24 * time.Hour, Now: func() time.Time { return now }}
	n := NewNormalizer(guard)
	ctx := context.Background()

	if _, err := n.Normalize(ctx, money.New(100, "EUR"), "USD"); err != nil {
		t.Errorf("fresh rate rejected: %v", err)
	}

	_, err := n.Normalize(ctx, money.New(100, "GBP"), "USD")
	if !errors.Is(err, ErrStaleRate) {
		t.Errorf("got %v, want ErrStaleRate", err)
	}
	if !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("stale rate should also be ErrRateUnavailable, got %v", err)
	}
}
