// Package arbitrage watches the pool against the reference market and turns
// price divergence into corrective trades.
package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/ammsim/internal/domain"
	"github.com/alanyoungcy/ammsim/internal/eventbus"
	"github.com/alanyoungcy/ammsim/internal/swap"
)

// PoolReader is the read side of the liquidity pool.
type PoolReader interface {
	Snapshot() domain.Pool
	Initialized() bool
}

// MarketReader exposes the reference rate comparable to the pool price.
type MarketReader interface {
	MarketRate() float64
}

// TradeExecutor executes corrective trades.
type TradeExecutor interface {
	ExecuteArbitrageTrade(ctx context.Context, opp domain.ArbitrageOpportunity) (domain.TradeResult, error)
}

// Publisher is the subset of the event bus the monitor publishes on.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event)
}

// Config holds detection parameters.
type Config struct {
	ThresholdPct float64 // minimum divergence, in percent, that counts
	AutoDetect   bool    // re-check after user trades and price moves
	AutoExecute  bool    // execute published opportunities immediately
	RecentSize   int     // opportunities kept for Recent
}

// DefaultConfig returns a 5% threshold with automatic correction.
func DefaultConfig() Config {
	return Config{
		ThresholdPct: 5,
		AutoDetect:   true,
		AutoExecute:  true,
		RecentSize:   50,
	}
}

// Monitor detects pool/market divergence.
type Monitor struct {
	cfg    Config
	pool   PoolReader
	market MarketReader
	exec   TradeExecutor
	bus    Publisher
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	recent   []domain.ArbitrageOpportunity
	executed int64
}

// NewMonitor creates a monitor. Call Register to attach it to the bus.
func NewMonitor(cfg Config, pool PoolReader, market MarketReader, exec TradeExecutor, bus Publisher, logger *slog.Logger) *Monitor {
	return &Monitor{
		cfg:    cfg,
		pool:   pool,
		market: market,
		exec:   exec,
		bus:    bus,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "arb_monitor")),
	}
}

// Detect compares the pool rate poolBtc/poolEth with the market rate. It
// returns nil when the divergence is below the threshold. Detect never
// publishes.
func (m *Monitor) Detect(poolEth, poolBtc float64) *domain.ArbitrageOpportunity {
	if !(poolEth > 0) || !(poolBtc > 0) {
		return nil
	}
	return m.detect(poolBtc/poolEth, m.market.MarketRate())
}

func (m *Monitor) detect(poolPrice, marketPrice float64) *domain.ArbitrageOpportunity {
	if !(marketPrice > 0) {
		return nil
	}
	diff := math.Abs(poolPrice - marketPrice)
	pct := diff / marketPrice * 100
	if pct < m.cfg.ThresholdPct {
		return nil
	}

	dir := domain.ArbBuyBtcSellEth
	if poolPrice < marketPrice {
		dir = domain.ArbBuyEthSellBtc
	}
	return &domain.ArbitrageOpportunity{
		ID:          uuid.NewString(),
		Timestamp:   m.now(),
		PoolPrice:   swap.Round(poolPrice, swap.AmountPlaces),
		MarketPrice: swap.Round(marketPrice, swap.AmountPlaces),
		Difference:  swap.Round(diff, swap.AmountPlaces),
		Percentage:  swap.Round(pct, swap.PercentPlaces),
		Direction:   dir,
	}
}

// CheckAndEmitArbitrageOpportunity runs Detect and, when an opportunity is
// found, records it and publishes it on the bus.
func (m *Monitor) CheckAndEmitArbitrageOpportunity(ctx context.Context, poolEth, poolBtc float64) *domain.ArbitrageOpportunity {
	opp := m.Detect(poolEth, poolBtc)
	if opp == nil {
		return nil
	}
	m.emit(ctx, opp)
	return opp
}

func (m *Monitor) emit(ctx context.Context, opp *domain.ArbitrageOpportunity) {
	m.remember(*opp)
	m.logger.InfoContext(ctx, "arbitrage opportunity detected",
		slog.String("opp_id", opp.ID),
		slog.String("direction", string(opp.Direction)),
		slog.Float64("pool_price", opp.PoolPrice),
		slog.Float64("market_price", opp.MarketPrice),
		slog.Float64("percentage", opp.Percentage),
	)
	m.bus.Publish(ctx, *opp)
}

// CheckAndExecuteArbitrage detects against the current pool and, if an
// opportunity exists, publishes it as claimed and executes the corrective
// trade directly. The execute subscriber skips claimed opportunities.
func (m *Monitor) CheckAndExecuteArbitrage(ctx context.Context) (domain.ArbitrageCheck, error) {
	if !m.pool.Initialized() {
		return domain.ArbitrageCheck{}, fmt.Errorf("arbitrage: check: %w", domain.ErrNotInitialized)
	}
	snap := m.pool.Snapshot()
	opp := m.Detect(snap.EthReserve, snap.BtcReserve)
	if opp == nil {
		return domain.ArbitrageCheck{Message: "no arbitrage opportunity"}, nil
	}
	opp.Claimed = true
	m.emit(ctx, opp)

	res, err := m.exec.ExecuteArbitrageTrade(ctx, *opp)
	if err != nil {
		return domain.ArbitrageCheck{Opportunity: opp}, fmt.Errorf("arbitrage: execute %s: %w", opp.ID, err)
	}
	m.markExecuted()
	return domain.ArbitrageCheck{
		Executed:    true,
		Message:     "arbitrage trade executed",
		Opportunity: opp,
		Result:      &res,
	}, nil
}

// Register subscribes the monitor to the bus. Opportunities are executed in
// the same dispatch; user trades and price moves trigger a re-check.
// Arbitrage trades never trigger detection, so each correction is terminal.
func (m *Monitor) Register(bus *eventbus.Bus) {
	bus.Subscribe("arb_monitor.execute", domain.TopicArbitrageOpportunity, m.onOpportunity)
	if !m.cfg.AutoDetect {
		return
	}
	bus.Subscribe("arb_monitor.trade", domain.TopicTradeExecuted, m.onTrade)
	bus.Subscribe("arb_monitor.price", domain.TopicPriceChanged, m.onPriceChange)
}

func (m *Monitor) onOpportunity(ctx context.Context, ev domain.Event) error {
	if !m.cfg.AutoExecute {
		return nil
	}
	opp, ok := ev.(domain.ArbitrageOpportunity)
	if !ok || opp.Claimed {
		return nil
	}
	if _, err := m.exec.ExecuteArbitrageTrade(ctx, opp); err != nil {
		return fmt.Errorf("arbitrage: execute %s: %w", opp.ID, err)
	}
	m.markExecuted()
	return nil
}

func (m *Monitor) onTrade(ctx context.Context, ev domain.Event) error {
	te, ok := ev.(domain.TradeExecuted)
	if !ok || te.Origin == domain.TradeOriginArbitrage {
		return nil
	}
	m.CheckAndEmitArbitrageOpportunity(ctx, te.PoolAfter.EthReserve, te.PoolAfter.BtcReserve)
	return nil
}

func (m *Monitor) onPriceChange(ctx context.Context, _ domain.Event) error {
	if !m.pool.Initialized() {
		return nil
	}
	snap := m.pool.Snapshot()
	m.CheckAndEmitArbitrageOpportunity(ctx, snap.EthReserve, snap.BtcReserve)
	return nil
}

// Recent returns up to limit of the latest opportunities, newest first.
func (m *Monitor) Recent(limit int) []domain.ArbitrageOpportunity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.recent) {
		limit = len(m.recent)
	}
	out := make([]domain.ArbitrageOpportunity, 0, limit)
	for i := len(m.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.recent[i])
	}
	return out
}

// Executed returns how many corrective trades the monitor has run.
func (m *Monitor) Executed() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.executed
}

func (m *Monitor) remember(opp domain.ArbitrageOpportunity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent = append(m.recent, opp)
	if n := m.cfg.RecentSize; n > 0 && len(m.recent) > n {
		m.recent = append([]domain.ArbitrageOpportunity(nil), m.recent[len(m.recent)-n:]...)
	}
}

func (m *Monitor) markExecuted() {
	m.mu.Lock()
	m.executed++
	m.mu.Unlock()
}
