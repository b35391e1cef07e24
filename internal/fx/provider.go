package fx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

type pair struct {
	from, to money.Code
}

// StaticProvider serves rates from an in-memory table.
type StaticProvider struct {
	mu    sync.RWMutex
	rates map[pair]models.ExchangeRate
}

// NewStaticProvider creates a provider preloaded with rates.
func NewStaticProvider(rates ...models.ExchangeRate) *StaticProvider {
	p := &StaticProvider{rates: make(map[pair]models.ExchangeRate, len(rates))}
	for _, r := range rates {
		p.Set(r)
	}
	return p
}

// Set inserts or replaces the rate for r.From -> r.To.
func (p *StaticProvider) Set(r models.ExchangeRate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rates[pair{r.From, r.To}] = r
}

// GetRate implements RateProvider.
func (p *StaticProvider) GetRate(_ context.Context, from, to money.Code) (models.ExchangeRate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.rates[pair{from, to}]
	if !ok {
		return models.ExchangeRate{}, fmt.Errorf("%w: no rate for %s->%s", ErrRateUnavailable, from, to)
	}
	return r, nil
}

// FreshnessGuard rejects rates older than MaxAge.
type FreshnessGuard struct {
	Provider RateProvider
	MaxAge   time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// GetRate implements RateProvider.
func (g *FreshnessGuard) GetRate(ctx context.Context, from, to money.Code) (models.ExchangeRate, error) {
	r, err := g.Provider.GetRate(ctx, from, to)
	if err != nil {
		return models.ExchangeRate{}, err
	}
	if g.MaxAge <= 0 {
		return r, nil
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	if age := now().Sub(r.AsOf); age > g.MaxAge {
		return models.ExchangeRate{}, fmt.Errorf("%w: %s->%s is %s old (max %s)", ErrStaleRate, from, to, age.Truncate(time.Second), g.MaxAge)
	}
	return r, nil
}
