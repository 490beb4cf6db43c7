package swap

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/alanyoungcy/ammsim/internal/domain"
)

func snapshot(eth, btc float64) domain.Pool {
	return domain.Pool{EthReserve: eth, BtcReserve: btc, K: eth * btc}
}

func TestQuoteWorkedExample(t *testing.T) {
	e := NewEngine()
	snap := snapshot(1000, 30000)

	res, err := e.Quote(domain.AssetETH, domain.AssetBTC, 50, 50*0.003, snap)
	require.NoError(t, err)

	want := 30000 - 30000000/(1000+49.85)
	assert.Equal(t, 0.15, res.Fee)
	assert.Equal(t, 49.85, res.AmountInNet)
	assert.Equal(t, Round(want, AmountPlaces), res.AmountOut)
	assert.Equal(t, 30000000.0, res.K)
	assert.InDelta(t, 30000000.0, res.NewEthReserve*res.NewBtcReserve, 1e-6)
	assert.InDelta(t, 1049.85, res.NewEthReserve, 1e-9)
	assert.Equal(t, 30.0, res.ExpectedPrice)
	assert.Equal(t, Round(49.85/1000*100, PercentPlaces), res.PriceImpact)
	assert.Greater(t, res.Slippage, 0.0)
}

func TestQuoteBtcToEth(t *testing.T) {
	e := NewEngine()
	res, err := e.Quote(domain.AssetBTC, domain.AssetETH, 300, 0.9, snapshot(1000, 30000))
	require.NoError(t, err)
	assert.InDelta(t, 30299.1, res.NewBtcReserve, 1e-9)
	assert.Less(t, res.NewEthReserve, 1000.0)
	assert.InDelta(t, 1000-30000000/30299.1, res.AmountOut, 1e-6)
}

func TestQuoteRejectsBadInput(t *testing.T) {
	e := NewEngine()
	snap := snapshot(1000, 30000)

	tests := []struct {
		name     string
		from, to domain.Asset
		gross    float64
		fee      float64
		snap     domain.Pool
		want     error
	}{
		{"same asset", domain.AssetETH, domain.AssetETH, 10, 0, snap, domain.ErrInvalidTrade},
		{"unknown asset", domain.Asset("DOGE"), domain.AssetBTC, 10, 0, snap, domain.ErrInvalidTrade},
		{"zero amount", domain.AssetETH, domain.AssetBTC, 0, 0, snap, domain.ErrInsufficientLiquidity},
		{"fee eats input", domain.AssetETH, domain.AssetBTC, 1, 1, snap, domain.ErrInsufficientLiquidity},
		{"empty pool", domain.AssetETH, domain.AssetBTC, 1, 0, domain.Pool{}, domain.ErrInsufficientLiquidity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Quote(tt.from, tt.to, tt.gross, tt.fee, tt.snap)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestQuoteDoesNotMutateSnapshot(t *testing.T) {
	snap := snapshot(1000, 30000)
	before := snap
	_, err := NewEngine().Quote(domain.AssetETH, domain.AssetBTC, 10, 0.03, snap)
	require.NoError(t, err)
	assert.Equal(t, before, snap)
}

func TestQuotePreservesInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		eth := rapid.Float64Range(1, 1e6).Draw(t, "eth")
		btc := rapid.Float64Range(1, 1e6).Draw(t, "btc")
		ratio := rapid.Float64Range(0.0001, 0.5).Draw(t, "ratio")
		feeRate := rapid.Float64Range(0.0005, 0.01).Draw(t, "feeRate")
		fromETH := rapid.Bool().Draw(t, "fromETH")

		from, to := domain.AssetBTC, domain.AssetETH
		if fromETH {
			from, to = domain.AssetETH, domain.AssetBTC
		}
		snap := snapshot(eth, btc)
		gross := ratio * snap.Reserve(from)

		res, err := NewEngine().Quote(from, to, gross, gross*feeRate, snap)
		if err != nil {
			t.Fatalf("quote failed: %v", err)
		}
		if rel := math.Abs(res.NewEthReserve*res.NewBtcReserve-snap.K) / snap.K; rel > 1e-9 {
			t.Fatalf("k drifted by %g", rel)
		}
		if res.NewEthReserve <= 0 || res.NewBtcReserve <= 0 {
			t.Fatalf("non-positive reserve %v/%v", res.NewEthReserve, res.NewBtcReserve)
		}
	})
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.234568, Round(1.2345675, 6))
	assert.Equal(t, 2.5, Round(2.49999999, 4))
	assert.True(t, math.IsInf(Round(math.Inf(1), 6), 1))
}
