package service_test

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ammsim/internal/domain"
	"github.com/alanyoungcy/ammsim/internal/eventbus"
	"github.com/alanyoungcy/ammsim/internal/pool"
	"github.com/alanyoungcy/ammsim/internal/service"
	"github.com/alanyoungcy/ammsim/internal/swap"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type recorder struct {
	events []domain.Event
}

func (r *recorder) handle(_ context.Context, ev domain.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) trades() []domain.TradeExecuted {
	var out []domain.TradeExecuted
	for _, ev := range r.events {
		if te, ok := ev.(domain.TradeExecuted); ok {
			out = append(out, te)
		}
	}
	return out
}

func newTradeService(t *testing.T) (*service.TradeService, *pool.Pool, *recorder) {
	t.Helper()
	rnd := rand.New(rand.NewPCG(7, 11))
	p := pool.New(pool.DefaultConfig(), rnd, discard())
	_, err := p.Initialize(1000, 30000, 10)
	require.NoError(t, err)

	bus := eventbus.New(discard())
	rec := &recorder{}
	bus.SubscribeAll("recorder", rec.handle)
	return service.NewTradeService(p, swap.NewEngine(), bus, rnd, discard()), p, rec
}

func TestExecuteTradeWorkedExample(t *testing.T) {
	svc, p, rec := newTradeService(t)

	res, err := svc.ExecuteTrade(context.Background(), domain.AssetETH, domain.AssetBTC, 0.05)
	require.NoError(t, err)

	assert.Equal(t, 50.0, res.Trade.AmountIn)
	assert.Equal(t, 0.15, res.Trade.Fee)
	assert.Equal(t, 1424.489213, res.Trade.AmountOut)
	assert.Equal(t, domain.TradeOriginUser, res.Trade.Origin)
	assert.NotEmpty(t, res.Trade.ID)

	assert.Equal(t, 1000.0, res.PoolBefore.EthReserve)
	assert.Equal(t, 0.003, res.PoolBefore.FeeRate)
	assert.InDelta(t, 1049.85, res.PoolAfter.EthReserve, 1e-9)
	assert.Equal(t, 30000000.0, res.PoolAfter.K)
	assert.InEpsilon(t, 30000000.0, res.PoolAfter.EthReserve*res.PoolAfter.BtcReserve, 1e-12)
	assert.Equal(t, 30.0, res.PriceInfo.ExpectedPrice)
	assert.Equal(t, 27.218661, res.PriceInfo.PoolPriceAfter)
	assert.Equal(t, int64(1), p.Snapshot().TradeCount)

	trades := rec.trades()
	require.Len(t, trades, 1)
	assert.Equal(t, res.Trade.ID, trades[0].TradeID)
	assert.Equal(t, res.PoolBefore.EthReserve, trades[0].PoolBefore.EthReserve)
	assert.Equal(t, res.PoolAfter.BtcReserve, trades[0].PoolAfter.BtcReserve)
}

func TestExecuteTradeRejectsInvalidInput(t *testing.T) {
	svc, p, rec := newTradeService(t)
	before := p.Snapshot()

	cases := []struct {
		name     string
		from, to domain.Asset
		ratio    float64
	}{
		{"same asset", domain.AssetETH, domain.AssetETH, 0.05},
		{"unknown asset", domain.Asset("DOGE"), domain.AssetBTC, 0.05},
		{"zero ratio", domain.AssetETH, domain.AssetBTC, 0},
		{"negative ratio", domain.AssetBTC, domain.AssetETH, -0.1},
		{"whole reserve", domain.AssetBTC, domain.AssetETH, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ExecuteTrade(context.Background(), tc.from, tc.to, tc.ratio)
			assert.ErrorIs(t, err, domain.ErrInvalidTrade)
		})
	}
	assert.Equal(t, before, p.Snapshot())
	assert.Empty(t, rec.events)
}

func TestExecuteTradeRequiresInitializedPool(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 1))
	p := pool.New(pool.DefaultConfig(), rnd, discard())
	svc := service.NewTradeService(p, swap.NewEngine(), eventbus.New(discard()), rnd, discard())

	_, err := svc.ExecuteTrade(context.Background(), domain.AssetETH, domain.AssetBTC, 0.05)
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
}

func TestExecuteRandomTradeSizeWithinBounds(t *testing.T) {
	svc, p, rec := newTradeService(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		before := p.Snapshot()
		res, err := svc.ExecuteRandomTrade(ctx)
		require.NoError(t, err)

		ratio := res.Trade.AmountIn / before.Reserve(res.Trade.From)
		assert.GreaterOrEqual(t, ratio, 0.01-1e-6)
		assert.LessOrEqual(t, ratio, 0.06+1e-6)
		assert.Equal(t, domain.TradeOriginRandom, res.Trade.Origin)
		assert.NotEqual(t, res.Trade.From, res.Trade.To)
	}
	assert.Len(t, rec.trades(), 50)
	assert.InEpsilon(t, 30000000.0, p.Snapshot().EthReserve*p.Snapshot().BtcReserve, 1e-9)
}

func TestExecuteArbitrageTradeSizing(t *testing.T) {
	cases := []struct {
		name      string
		dir       domain.ArbDirection
		pct       float64
		wantFrom  domain.Asset
		wantRatio float64
	}{
		{"small divergence floors at 1%", domain.ArbBuyEthSellBtc, 5, domain.AssetBTC, 0.01},
		{"mid divergence scales", domain.ArbBuyBtcSellEth, 20, domain.AssetETH, 0.02},
		{"large divergence caps at 3%", domain.ArbBuyBtcSellEth, 80, domain.AssetETH, 0.03},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, rec := newTradeService(t)

			res, err := svc.ExecuteArbitrageTrade(context.Background(), domain.ArbitrageOpportunity{
				ID: "opp", Direction: tc.dir, Percentage: tc.pct,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.wantFrom, res.Trade.From)
			assert.Equal(t, domain.TradeOriginArbitrage, res.Trade.Origin)
			assert.InDelta(t, tc.wantRatio, res.Trade.AmountIn/res.PoolBefore.Reserve(tc.wantFrom), 1e-6)
			assert.Len(t, rec.trades(), 1)
		})
	}
}

func TestExecuteArbitrageTradeRejectsUnknownDirection(t *testing.T) {
	svc, _, rec := newTradeService(t)

	_, err := svc.ExecuteArbitrageTrade(context.Background(), domain.ArbitrageOpportunity{Direction: "sideways", Percentage: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidTrade)
	assert.Empty(t, rec.events)
}

type failingQuoter struct{}

func (failingQuoter) Quote(domain.Asset, domain.Asset, float64, float64, domain.Pool) (domain.SwapResult, error) {
	return domain.SwapResult{}, domain.ErrInsufficientLiquidity
}

func TestFailedQuoteLeavesPoolUntouched(t *testing.T) {
	rnd := rand.New(rand.NewPCG(2, 3))
	p := pool.New(pool.DefaultConfig(), rnd, discard())
	_, err := p.Initialize(1000, 30000, 10)
	require.NoError(t, err)
	// volatility moved but no trade has refreshed the stored rate yet
	p.UpdateVolatility(domain.Volatility{Eth: 5, Btc: 3, Overall: 4}, p.Snapshot().UpdatedAt)
	before := p.Snapshot()

	bus := eventbus.New(discard())
	rec := &recorder{}
	bus.SubscribeAll("recorder", rec.handle)
	svc := service.NewTradeService(p, failingQuoter{}, bus, rnd, discard())

	_, err = svc.ExecuteTrade(context.Background(), domain.AssetETH, domain.AssetBTC, 0.05)
	require.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
	assert.Equal(t, before, p.Snapshot())
	assert.Empty(t, rec.events)
}
