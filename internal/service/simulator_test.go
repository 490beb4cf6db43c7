package service_test

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ammsim/internal/domain"
	"github.com/alanyoungcy/ammsim/internal/eventbus"
	"github.com/alanyoungcy/ammsim/internal/pool"
	"github.com/alanyoungcy/ammsim/internal/service"
)

func newSimulator(t *testing.T, mutate func(*service.SimulatorConfig)) (*service.Simulator, *recorder) {
	t.Helper()
	cfg := service.DefaultSimulatorConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	bus := eventbus.New(discard())
	rec := &recorder{}
	bus.SubscribeAll("recorder", rec.handle)

	sim, err := service.NewSimulator(cfg, rand.New(rand.NewPCG(42, 7)), bus, discard())
	require.NoError(t, err)
	return sim, rec
}

func TestSimulatorRejectsBadOracleConfig(t *testing.T) {
	cfg := service.DefaultSimulatorConfig()
	cfg.Oracle.InitialEth = 0
	_, err := service.NewSimulator(cfg, rand.New(rand.NewPCG(1, 1)), eventbus.New(discard()), discard())
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestInitLiquidityDefaults(t *testing.T) {
	sim, rec := newSimulator(t, nil)
	ctx := context.Background()

	_, err := sim.GetPool()
	require.ErrorIs(t, err, domain.ErrNotInitialized)

	snap, err := sim.InitLiquidity(ctx, service.InitParams{})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, snap.EthReserve)
	assert.Equal(t, 30000.0, snap.BtcReserve)
	assert.Equal(t, 30000000.0, snap.K)
	assert.Len(t, snap.Users, 10)
	assert.InDelta(t, 1, pool.ShareSum(snap), pool.ShareTolerance)

	require.Len(t, rec.events, 1)
	upd := rec.events[0].(domain.PoolUpdated)
	assert.Equal(t, domain.PoolActionInitialized, upd.Action)

	negative := -1
	_, err = sim.InitLiquidity(ctx, service.InitParams{Users: &negative})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestInitLiquidityExplicitZeroIsNotDefaulted(t *testing.T) {
	sim, rec := newSimulator(t, nil)
	ctx := context.Background()
	zero := 0.0
	none := 0

	_, err := sim.InitLiquidity(ctx, service.InitParams{Eth: &zero})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	_, err = sim.InitLiquidity(ctx, service.InitParams{Btc: &zero})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	_, err = sim.InitLiquidity(ctx, service.InitParams{Users: &none})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	assert.Empty(t, rec.events)

	eth, btc := 500.0, 20000.0
	snap, err := sim.InitLiquidity(ctx, service.InitParams{Eth: &eth, Btc: &btc})
	require.NoError(t, err)
	assert.Equal(t, 500.0, snap.EthReserve)
	assert.Equal(t, 20000.0, snap.BtcReserve)
	assert.Len(t, snap.Users, 10)
}

func TestUserTradeIsCorrectedOnceByArbitrage(t *testing.T) {
	sim, rec := newSimulator(t, nil)
	ctx := context.Background()
	_, err := sim.InitLiquidity(ctx, service.InitParams{})
	require.NoError(t, err)
	rec.events = nil

	res, err := sim.ExecuteTrade(ctx, domain.AssetETH, domain.AssetBTC, 0.05)
	require.NoError(t, err)
	assert.Equal(t, 1424.489213, res.Trade.AmountOut)

	// user trade, the opportunity it opened, then the single correction
	require.Len(t, rec.events, 3)
	first := rec.events[0].(domain.TradeExecuted)
	opp := rec.events[1].(domain.ArbitrageOpportunity)
	fix := rec.events[2].(domain.TradeExecuted)

	assert.Equal(t, res.Trade.ID, first.TradeID)
	assert.Equal(t, domain.ArbBuyEthSellBtc, opp.Direction)
	assert.InDelta(t, 9.2711, opp.Percentage, 1e-9)
	assert.Equal(t, domain.TradeOriginArbitrage, fix.Origin)
	assert.Equal(t, domain.AssetBTC, fix.From)
	assert.Greater(t, fix.PoolAfter.Price(), first.PoolAfter.Price())

	snap, err := sim.GetPool()
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.TradeCount)
	assert.InEpsilon(t, 30000000.0, snap.EthReserve*snap.BtcReserve, 1e-9)

	st := sim.Status()
	assert.Equal(t, int64(1), st.ArbitrageExecuted)
	assert.Equal(t, int64(2), st.TradeCount)
}

func TestSmallTradeOpensNoOpportunity(t *testing.T) {
	sim, rec := newSimulator(t, nil)
	ctx := context.Background()
	_, err := sim.InitLiquidity(ctx, service.InitParams{})
	require.NoError(t, err)
	rec.events = nil

	_, err = sim.ExecuteTrade(ctx, domain.AssetBTC, domain.AssetETH, 0.01)
	require.NoError(t, err)
	assert.Len(t, rec.events, 1)
	assert.Nil(t, sim.GetMarketStatus().ArbitrageOpportunity)
}

func TestMarketStatusDoesNotPublish(t *testing.T) {
	sim, rec := newSimulator(t, func(c *service.SimulatorConfig) { c.Arbitrage.AutoDetect = false })
	ctx := context.Background()
	_, err := sim.InitLiquidity(ctx, service.InitParams{})
	require.NoError(t, err)

	_, err = sim.SetMarketPrice(ctx, 2000, 66000) // rate 33 against a pool at 30
	require.NoError(t, err)
	rec.events = nil

	status := sim.GetMarketStatus()
	require.NotNil(t, status.ArbitrageOpportunity)
	assert.Equal(t, domain.ArbBuyEthSellBtc, status.ArbitrageOpportunity.Direction)
	assert.InDelta(t, 9.0909, status.ArbitrageOpportunity.Percentage, 1e-9)
	assert.Equal(t, 66000.0, status.CurrentPrice.Btc)
	assert.Empty(t, rec.events)
}

func TestCheckAndEmitArbitrageOpportunityThresholds(t *testing.T) {
	sim, rec := newSimulator(t, func(c *service.SimulatorConfig) { c.Arbitrage.AutoExecute = false })
	ctx := context.Background()

	// market rate is 30: a pool at 33 is 10% rich in BTC terms
	opp := sim.CheckAndEmitArbitrageOpportunity(ctx, 1000, 33000)
	require.NotNil(t, opp)
	assert.Equal(t, 10.0, opp.Percentage)
	assert.Equal(t, domain.ArbBuyBtcSellEth, opp.Direction)

	assert.Nil(t, sim.CheckAndEmitArbitrageOpportunity(ctx, 1000, 30600))

	require.Len(t, rec.events, 1)
	assert.Equal(t, domain.TopicArbitrageOpportunity, rec.events[0].Topic())
	assert.Equal(t, opp.ID, sim.RecentOpportunities(1)[0].ID)
}

func TestCheckAndExecuteArbitrageAfterPriceMove(t *testing.T) {
	sim, rec := newSimulator(t, func(c *service.SimulatorConfig) { c.Arbitrage.AutoDetect = false })
	ctx := context.Background()
	_, err := sim.InitLiquidity(ctx, service.InitParams{})
	require.NoError(t, err)

	res, err := sim.CheckAndExecuteArbitrage(ctx)
	require.NoError(t, err)
	assert.False(t, res.Executed)

	_, err = sim.SetMarketPrice(ctx, 2000, 66000)
	require.NoError(t, err)
	rec.events = nil

	res, err = sim.CheckAndExecuteArbitrage(ctx)
	require.NoError(t, err)
	require.True(t, res.Executed)
	assert.Equal(t, domain.AssetBTC, res.Result.Trade.From)
	assert.Greater(t, res.Result.PoolAfter.Price(), res.Result.PoolBefore.Price())

	// the claimed opportunity, then the single corrective trade
	require.Len(t, rec.events, 2)
	opp, ok := rec.events[0].(domain.ArbitrageOpportunity)
	require.True(t, ok)
	assert.True(t, opp.Claimed)
	assert.Equal(t, res.Opportunity.ID, opp.ID)
	te, ok := rec.events[1].(domain.TradeExecuted)
	require.True(t, ok)
	assert.Equal(t, domain.TradeOriginArbitrage, te.Origin)
	assert.Equal(t, int64(1), sim.Status().ArbitrageExecuted)
}

func TestExecuteArbitrageTradeManually(t *testing.T) {
	sim, _ := newSimulator(t, nil)
	ctx := context.Background()
	_, err := sim.InitLiquidity(ctx, service.InitParams{})
	require.NoError(t, err)

	res, err := sim.ExecuteArbitrageTradeManually(ctx, domain.ArbitrageOpportunity{
		ID: "manual", Direction: domain.ArbBuyBtcSellEth, Percentage: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AssetETH, res.Trade.From)
	assert.InDelta(t, 20.0, res.Trade.AmountIn, 1e-6)
}

func TestPriceChangeFeedsFeeModel(t *testing.T) {
	sim, rec := newSimulator(t, func(c *service.SimulatorConfig) { c.Arbitrage.AutoDetect = false })
	ctx := context.Background()
	_, err := sim.InitLiquidity(ctx, service.InitParams{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ev := sim.SimulatePriceChange(ctx)
		assert.LessOrEqual(t, math.Abs(ev.Change.Eth), 5.0)
		assert.LessOrEqual(t, math.Abs(ev.Change.Btc), 5.0)
	}
	snap, err := sim.GetPool()
	require.NoError(t, err)
	market := sim.GetMarketStatus()
	assert.Equal(t, market.Volatility, snap.Volatility)
	assert.Greater(t, snap.FeeRate, 0.003)
	assert.Len(t, sim.PriceHistory(0), 5)
	assert.Equal(t, market.CurrentPrice, sim.GetCurrentPrice())

	var priceEvents int
	for _, ev := range rec.events {
		if ev.Topic() == domain.TopicPriceChanged {
			priceEvents++
		}
	}
	assert.Equal(t, 5, priceEvents)
}

func TestMembershipChangesPublishPoolUpdates(t *testing.T) {
	sim, rec := newSimulator(t, nil)
	ctx := context.Background()
	_, err := sim.InitLiquidity(ctx, service.InitParams{})
	require.NoError(t, err)

	_, err = sim.RemoveRandomUser(ctx)
	require.ErrorIs(t, err, domain.ErrBelowMinimum)

	added, err := sim.AddRandomUser(ctx)
	require.NoError(t, err)
	assert.Len(t, added.Pool.Users, 11)
	assert.InDelta(t, 30.0, added.Pool.Price(), 1e-9)

	removed, err := sim.RemoveRandomUser(ctx)
	require.NoError(t, err)
	assert.Len(t, removed.Pool.Users, 10)
	assert.InDelta(t, 1, pool.ShareSum(removed.Pool), pool.ShareTolerance)

	var actions []domain.PoolAction
	for _, ev := range rec.events {
		if upd, ok := ev.(domain.PoolUpdated); ok {
			actions = append(actions, upd.Action)
		}
	}
	assert.Equal(t, []domain.PoolAction{
		domain.PoolActionInitialized, domain.PoolActionUserAdded, domain.PoolActionUserRemoved,
	}, actions)
}

func TestConcurrentTradesKeepInvariant(t *testing.T) {
	sim, _ := newSimulator(t, nil)
	ctx := context.Background()
	_, err := sim.InitLiquidity(ctx, service.InitParams{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, _ = sim.ExecuteRandomTrade(ctx)
				sim.SimulatePriceChange(ctx)
			}
		}()
	}
	wg.Wait()

	snap, err := sim.GetPool()
	require.NoError(t, err)
	assert.InEpsilon(t, 30000000.0, snap.EthReserve*snap.BtcReserve, 1e-9)
	assert.GreaterOrEqual(t, snap.TradeCount, int64(80))
}
