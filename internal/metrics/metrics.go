// Package metrics holds the Prometheus collectors for the balance engine.
package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mmynk/splitledger/internal/fx"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

const namespace = "splitledger"

// Ledger operation labels.
const (
	OpApply    = "apply"
	OpRetract  = "retract"
	OpRebuild  = "rebuild"
	OpSimplify = "simplify"
)

// Rate lookup result labels.
const (
	RateOK          = "ok"
	RateStale       = "stale"
	RateUnavailable = "unavailable"
)

// Metrics bundles the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations  *prometheus.CounterVec
	faults      prometheus.Counter
	rateLookups *prometheus.CounterVec
	transfers   prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Ledger mutations and queries by operation.",
		}, []string{"op"}),
		faults: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invariant_faults_total",
			Help:      "Balance sets that failed the zero-sum invariant.",
		}),
		rateLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_lookups_total",
			Help:      "Exchange-rate lookups by result.",
		}, []string{"result"}),
		transfers: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfers_per_simplification",
			Help:      "Number of transfers produced by one debt simplification.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
}

// LedgerOp counts one ledger operation.
func (m *Metrics) LedgerOp(op string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op).Inc()
}

// InvariantFault counts one invariant violation.
func (m *Metrics) InvariantFault() {
	if m == nil {
		return
	}
	m.faults.Inc()
}

// Transfers observes the size of one simplification result.
func (m *Metrics) Transfers(n int) {
	if m == nil {
		return
	}
	m.transfers.Observe(float64(n))
}

// RateLookup counts one rate lookup outcome.
func (m *Metrics) RateLookup(result string) {
	if m == nil {
		return
	}
	m.rateLookups.WithLabelValues(result).Inc()
}

// InstrumentedProvider counts lookups made through Provider.
type InstrumentedProvider struct {
	Provider fx.RateProvider
	Metrics  *Metrics
}

// GetRate implements fx.RateProvider.
func (p *InstrumentedProvider) GetRate(ctx context.Context, from, to money.Code) (models.ExchangeRate, error) {
	r, err := p.Provider.GetRate(ctx, from, to)
	switch {
	case err == nil:
		p.Metrics.RateLookup(RateOK)
	case errors.Is(err, fx.ErrStaleRate):
		p.Metrics.RateLookup(RateStale)
	default:
		p.Metrics.RateLookup(RateUnavailable)
	}
	return r, err
}
