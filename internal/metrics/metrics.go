// Package metrics exposes engine activity as Prometheus metrics. Collectors
// are fed from the event bus, so the engine itself never imports this
// package.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/ammsim/internal/domain"
)

const namespace = "ammsim"

// Metrics holds all collectors for the simulator.
type Metrics struct {
	// Swap metrics
	SwapsTotal        *prometheus.CounterVec
	SwapVolume        *prometheus.CounterVec
	SwapFeesCollected *prometheus.CounterVec
	SwapSlippage      prometheus.Histogram
	SwapPriceImpact   prometheus.Histogram

	// Pool metrics
	PoolReserves *prometheus.GaugeVec
	PoolPrice    prometheus.Gauge
	PoolFeeRate  prometheus.Gauge
	PoolUsers    prometheus.Gauge
	PoolUpdates  *prometheus.CounterVec

	// Market metrics
	MarketPrice      *prometheus.GaugeVec
	MarketVolatility *prometheus.GaugeVec

	// Arbitrage metrics
	ArbitrageOpportunities *prometheus.CounterVec
	ArbitrageDivergence    prometheus.Histogram

	reg *prometheus.Registry
}

// New creates the collectors on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		SwapsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "swap",
				Name:      "total",
				Help:      "Total number of swaps executed",
			},
			[]string{"from", "to", "origin"},
		),
		SwapVolume: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "swap",
				Name:      "volume_total",
				Help:      "Total swap input volume per asset",
			},
			[]string{"asset"},
		),
		SwapFeesCollected: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "swap",
				Name:      "fees_collected_total",
				Help:      "Total swap fees collected per asset",
			},
			[]string{"asset"},
		),
		SwapSlippage: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "swap",
				Name:      "slippage_percent",
				Help:      "Swap slippage percentage",
				Buckets:   []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
		),
		SwapPriceImpact: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "swap",
				Name:      "price_impact_percent",
				Help:      "Swap price impact percentage",
				Buckets:   []float64{0.5, 1.0, 2.0, 3.0, 5.0, 10.0},
			},
		),

		PoolReserves: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "reserve",
				Help:      "Current pool reserve per asset",
			},
			[]string{"asset"},
		),
		PoolPrice: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "price",
				Help:      "Pool BTC per ETH rate",
			},
		),
		PoolFeeRate: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "fee_rate",
				Help:      "Current dynamic fee rate",
			},
		),
		PoolUsers: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "users",
				Help:      "Number of liquidity providers",
			},
		),
		PoolUpdates: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "updates_total",
				Help:      "Liquidity changes by action",
			},
			[]string{"action"},
		),

		MarketPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "market",
				Name:      "price",
				Help:      "Reference market price per asset",
			},
			[]string{"asset"},
		),
		MarketVolatility: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "market",
				Name:      "volatility_percent",
				Help:      "EWMA volatility per asset and overall",
			},
			[]string{"asset"},
		),

		ArbitrageOpportunities: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "arbitrage",
				Name:      "opportunities_total",
				Help:      "Detected arbitrage opportunities by direction",
			},
			[]string{"direction"},
		),
		ArbitrageDivergence: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "arbitrage",
				Name:      "divergence_percent",
				Help:      "Pool/market divergence at detection",
				Buckets:   []float64{5, 7.5, 10, 15, 20, 30, 50},
			},
		),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Observe updates collectors from one bus event. It matches the bus handler
// signature and never fails.
func (m *Metrics) Observe(_ context.Context, ev domain.Event) error {
	switch e := ev.(type) {
	case domain.TradeExecuted:
		m.SwapsTotal.WithLabelValues(string(e.From), string(e.To), string(e.Origin)).Inc()
		m.SwapVolume.WithLabelValues(string(e.From)).Add(e.AmountIn)
		m.SwapFeesCollected.WithLabelValues(string(e.From)).Add(e.Fee)
		m.SwapSlippage.Observe(e.Slippage)
		m.SwapPriceImpact.Observe(e.PriceImpact)
		m.observePool(e.PoolAfter)
	case domain.PoolUpdated:
		m.PoolUpdates.WithLabelValues(string(e.Action)).Inc()
		m.observePool(e.Pool)
	case domain.PriceChangeEvent:
		m.MarketPrice.WithLabelValues(string(domain.AssetETH)).Set(e.After.Eth)
		m.MarketPrice.WithLabelValues(string(domain.AssetBTC)).Set(e.After.Btc)
		m.MarketVolatility.WithLabelValues("eth").Set(e.Volatility.Eth)
		m.MarketVolatility.WithLabelValues("btc").Set(e.Volatility.Btc)
		m.MarketVolatility.WithLabelValues("overall").Set(e.Volatility.Overall)
	case domain.ArbitrageOpportunity:
		m.ArbitrageOpportunities.WithLabelValues(string(e.Direction)).Inc()
		m.ArbitrageDivergence.Observe(e.Percentage)
	}
	return nil
}

func (m *Metrics) observePool(p domain.Pool) {
	m.PoolReserves.WithLabelValues(string(domain.AssetETH)).Set(p.EthReserve)
	m.PoolReserves.WithLabelValues(string(domain.AssetBTC)).Set(p.BtcReserve)
	m.PoolPrice.Set(p.Price())
	m.PoolFeeRate.Set(p.FeeRate)
	m.PoolUsers.Set(float64(len(p.Users)))
}
