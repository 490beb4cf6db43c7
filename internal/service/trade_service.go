package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/ammsim/internal/domain"
	"github.com/alanyoungcy/ammsim/internal/swap"
)

const (
	randomRatioMin = 0.01
	randomRatioMax = 0.06
	arbRatioMin    = 0.01
	arbRatioMax    = 0.03
)

// LiquidityPool is the pool contract the trade service drives.
type LiquidityPool interface {
	Snapshot() domain.Pool
	Initialized() bool
	CalculateFee(amountIn float64) float64
	ApplySwap(res domain.SwapResult) error
}

// Quoter prices swaps against a pool snapshot.
type Quoter interface {
	Quote(from, to domain.Asset, amountInGross, fee float64, snap domain.Pool) (domain.SwapResult, error)
}

// EventPublisher dispatches events to in-process subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.Event)
}

// TradeService orchestrates a full trade: fee, quote, commit, publish.
type TradeService struct {
	pool   LiquidityPool
	quoter Quoter
	bus    EventPublisher
	rnd    domain.Rand
	now    func() time.Time
	logger *slog.Logger
}

// NewTradeService creates a TradeService with all required dependencies.
func NewTradeService(
	pool LiquidityPool,
	quoter Quoter,
	bus EventPublisher,
	rnd domain.Rand,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		pool:   pool,
		quoter: quoter,
		bus:    bus,
		rnd:    rnd,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "trade_service")),
	}
}

// ExecuteTrade swaps ratio of the from reserve into to. On success exactly
// one TradeExecuted event is published before returning; on failure the pool
// is untouched and nothing is published.
func (s *TradeService) ExecuteTrade(ctx context.Context, from, to domain.Asset, ratio float64) (domain.TradeResult, error) {
	return s.execute(ctx, from, to, ratio, domain.TradeOriginUser)
}

// ExecuteRandomTrade picks a direction uniformly and a ratio in [0.01, 0.06].
func (s *TradeService) ExecuteRandomTrade(ctx context.Context) (domain.TradeResult, error) {
	from, to := domain.AssetETH, domain.AssetBTC
	if s.rnd.IntN(2) == 1 {
		from, to = to, from
	}
	ratio := randomRatioMin + s.rnd.Float64()*(randomRatioMax-randomRatioMin)
	return s.execute(ctx, from, to, ratio, domain.TradeOriginRandom)
}

// ExecuteArbitrageTrade sizes a corrective trade from the opportunity's
// divergence, clamped to [0.01, 0.03] of the input reserve.
func (s *TradeService) ExecuteArbitrageTrade(ctx context.Context, opp domain.ArbitrageOpportunity) (domain.TradeResult, error) {
	if !opp.Direction.Valid() {
		return domain.TradeResult{}, fmt.Errorf("trade_service: arbitrage: %w: direction %q", domain.ErrInvalidTrade, opp.Direction)
	}
	from, to := opp.Direction.PoolSide()
	ratio := clamp(opp.Percentage/1000, arbRatioMin, arbRatioMax)
	return s.execute(ctx, from, to, ratio, domain.TradeOriginArbitrage)
}

func (s *TradeService) execute(ctx context.Context, from, to domain.Asset, ratio float64, origin domain.TradeOrigin) (domain.TradeResult, error) {
	if !from.Valid() || !to.Valid() || from == to {
		return domain.TradeResult{}, fmt.Errorf("trade_service: execute: %w: %s -> %s", domain.ErrInvalidTrade, from, to)
	}
	if !(ratio > 0) || ratio >= 1 {
		return domain.TradeResult{}, fmt.Errorf("trade_service: execute: %w: ratio %v outside (0, 1)", domain.ErrInvalidTrade, ratio)
	}
	if !s.pool.Initialized() {
		return domain.TradeResult{}, fmt.Errorf("trade_service: execute: %w", domain.ErrNotInitialized)
	}

	before := s.pool.Snapshot()
	gross := ratio * before.Reserve(from)
	fee := s.pool.CalculateFee(gross)

	res, err := s.quoter.Quote(from, to, gross, fee, before)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("trade_service: quote: %w", err)
	}
	if err := s.pool.ApplySwap(res); err != nil {
		return domain.TradeResult{}, fmt.Errorf("trade_service: commit: %w", err)
	}
	after := s.pool.Snapshot()
	// ApplySwap stored the rate the fee was charged at.
	before.FeeRate = after.FeeRate

	trade := domain.Trade{
		ID:          uuid.NewString(),
		From:        from,
		To:          to,
		AmountIn:    res.AmountIn,
		AmountOut:   res.AmountOut,
		Fee:         res.Fee,
		Slippage:    res.Slippage,
		PriceImpact: res.PriceImpact,
		Origin:      origin,
		Timestamp:   s.now(),
	}
	result := domain.TradeResult{
		Trade:      trade,
		PoolBefore: before,
		PoolAfter:  after,
		PriceInfo: domain.PriceInfo{
			ExpectedPrice:  res.ExpectedPrice,
			ActualPrice:    res.ActualPrice,
			PoolPriceAfter: swap.Round(after.Price(), swap.AmountPlaces),
			FeeRate:        res.FeeRate,
		},
	}

	s.logger.InfoContext(ctx, "trade executed",
		slog.String("trade_id", trade.ID),
		slog.String("origin", string(origin)),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.Float64("amount_in", trade.AmountIn),
		slog.Float64("amount_out", trade.AmountOut),
		slog.Float64("fee", trade.Fee),
	)

	s.bus.Publish(ctx, domain.TradeExecuted{
		TradeID:     trade.ID,
		From:        from,
		To:          to,
		AmountIn:    trade.AmountIn,
		AmountOut:   trade.AmountOut,
		Fee:         trade.Fee,
		Slippage:    trade.Slippage,
		PriceImpact: trade.PriceImpact,
		Origin:      origin,
		PoolBefore:  before,
		PoolAfter:   after,
		Timestamp:   trade.Timestamp,
	})
	return result, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
