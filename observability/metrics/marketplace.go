package metrics

import (
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketplaceMetrics exposes counters describing marketplace engine activity.
type MarketplaceMetrics struct {
	operations     *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	activeListings prometheus.Gauge
	volume         *prometheus.CounterVec
	fees           prometheus.Counter
	payoutCredits  *prometheus.CounterVec
}

var (
	marketplaceOnce     sync.Once
	marketplaceRegistry *MarketplaceMetrics
)

// Marketplace returns the process-wide marketplace collectors, registering
// them with the default Prometheus registry on first use.
func Marketplace() *MarketplaceMetrics {
	marketplaceOnce.Do(func() {
		marketplaceRegistry = &MarketplaceMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "marketplace_operations_total",
				Help: "Count of marketplace operations by name and result.",
			}, []string{"op", "result"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "marketplace_operation_duration_seconds",
				Help:    "Latency of marketplace operations including collaborator calls.",
				Buckets: prometheus.DefBuckets,
			}, []string{"op"}),
			activeListings: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "marketplace_active_listings",
				Help: "Listings currently held in escrow.",
			}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "marketplace_settled_volume_wei_total",
				Help: "Settled sale volume in base units by sale mode.",
			}, []string{"mode"}),
			fees: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "marketplace_fees_wei_total",
				Help: "Trading fees charged in base units.",
			}),
			payoutCredits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "marketplace_payout_credits_total",
				Help: "Rejected payouts converted into pending withdrawals, by reason.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			marketplaceRegistry.operations,
			marketplaceRegistry.latency,
			marketplaceRegistry.activeListings,
			marketplaceRegistry.volume,
			marketplaceRegistry.fees,
			marketplaceRegistry.payoutCredits,
		)
	})
	return marketplaceRegistry
}

func (m *MarketplaceMetrics) ObserveOperation(op, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetActiveListings seeds the gauge from the persisted ledger so later
// increments start from the true count.
func (m *MarketplaceMetrics) SetActiveListings(n int) {
	if m == nil {
		return
	}
	m.activeListings.Set(float64(n))
}

func (m *MarketplaceMetrics) AddActiveListings(delta int) {
	if m == nil {
		return
	}
	m.activeListings.Add(float64(delta))
}

// ObserveSettlement records a completed sale. Amounts are converted to
// float64, which is precise enough for dashboards.
func (m *MarketplaceMetrics) ObserveSettlement(mode string, price, fee *big.Int) {
	if m == nil {
		return
	}
	m.volume.WithLabelValues(mode).Add(toFloat(price))
	m.fees.Add(toFloat(fee))
}

func (m *MarketplaceMetrics) ObservePayoutCredited(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.payoutCredits.WithLabelValues(reason).Inc()
}

func toFloat(v *big.Int) float64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
