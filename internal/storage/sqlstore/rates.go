package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// PutRate inserts or replaces the rate for r.From -> r.To.
func (s *Store) PutRate(ctx context.Context, r models.ExchangeRate) error {
	if r.AsOf.IsZero() {
		r.AsOf = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO exchange_rates (from_currency, to_currency, rate, as_of)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (from_currency, to_currency)
		 DO UPDATE SET rate = excluded.rate, as_of = excluded.as_of`),
		string(r.From), string(r.To), r.Rate, r.AsOf.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert exchange rate: %w", err)
	}
	return nil
}

// GetRate returns the stored from -> to rate. It satisfies fx.RateProvider.
func (s *Store) GetRate(ctx context.Context, from, to money.Code) (models.ExchangeRate, error) {
	var rate decimal.Decimal
	var asOf int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		"SELECT rate, as_of FROM exchange_rates WHERE from_currency = ? AND to_currency = ?"),
		string(from), string(to),
	).Scan(&rate, &asOf)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ExchangeRate{}, fmt.Errorf("rate %s->%s: %w", from, to, storage.ErrNotFound)
	}
	if err != nil {
		return models.ExchangeRate{}, fmt.Errorf("failed to get exchange rate: %w", err)
	}
	return models.ExchangeRate{From: from, To: to, Rate: rate, AsOf: time.UnixMilli(asOf).UTC()}, nil
}
