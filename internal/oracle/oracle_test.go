package oracle

import (
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ammsim/internal/domain"
)

func newTestOracle(t *testing.T, seed uint64) *Oracle {
	t.Helper()
	o, err := New(DefaultConfig(), rand.New(rand.NewPCG(seed, 99)), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return o
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rnd := rand.New(rand.NewPCG(1, 2))

	cfg := DefaultConfig()
	cfg.InitialEth = 0
	_, err := New(cfg, rnd, logger)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	cfg = DefaultConfig()
	cfg.VolatilityAlpha = 0
	_, err = New(cfg, rnd, logger)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestCurrentPrice(t *testing.T) {
	o := newTestOracle(t, 1)
	p := o.CurrentPrice()
	assert.Equal(t, 2000.0, p.Eth)
	assert.Equal(t, 60000.0, p.Btc)
	assert.InDelta(t, 2000.0/60000.0, p.Ratio, 1e-6)
	assert.Equal(t, 30.0, o.MarketRate())
}

func TestSimulatePriceChangeIsBounded(t *testing.T) {
	o := newTestOracle(t, 2)
	for i := 0; i < 200; i++ {
		ev := o.SimulatePriceChange()
		assert.LessOrEqual(t, math.Abs(ev.Change.Eth), 5.0+1e-3)
		assert.LessOrEqual(t, math.Abs(ev.Change.Btc), 5.0+1e-3)
		assert.Equal(t, ev.After, o.CurrentPrice())
		assert.InDelta(t, ev.After.Eth/ev.After.Btc, ev.After.Ratio, 1e-6)
		assert.GreaterOrEqual(t, ev.Volatility.Overall, 0.0)
	}
	assert.Len(t, o.History(0), 100)
	assert.Len(t, o.History(5), 5)
}

func TestSimulatePriceChangeIsDeterministicForSeed(t *testing.T) {
	a, b := newTestOracle(t, 42), newTestOracle(t, 42)
	for i := 0; i < 10; i++ {
		ea, eb := a.SimulatePriceChange(), b.SimulatePriceChange()
		assert.Equal(t, ea.After.Eth, eb.After.Eth)
		assert.Equal(t, ea.After.Btc, eb.After.Btc)
		assert.Equal(t, ea.Volatility, eb.Volatility)
	}
}

func TestVolatilityIsExponentiallyWeighted(t *testing.T) {
	o := newTestOracle(t, 3)

	ev, err := o.SetPrice(2100, 60000)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, ev.Change.Eth, 1e-9)
	assert.InDelta(t, 0.3*5.0, ev.Volatility.Eth, 1e-9)
	assert.Zero(t, ev.Volatility.Btc)
	assert.InDelta(t, 0.75, ev.Volatility.Overall, 1e-9)

	ev, err = o.SetPrice(2100, 60000)
	require.NoError(t, err)
	assert.InDelta(t, 0.7*1.5, ev.Volatility.Eth, 1e-9)

	_, err = o.SetPrice(-1, 60000)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestPriceChangeIsRoundedToPercentPlaces(t *testing.T) {
	o := newTestOracle(t, 5)

	ev, err := o.SetPrice(2000+1.0/3, 60000)
	require.NoError(t, err)
	assert.Equal(t, 0.0167, ev.Change.Eth)
	assert.Equal(t, 0.005, ev.Volatility.Eth)
	assert.Equal(t, 0.0025, ev.Volatility.Overall)
}
