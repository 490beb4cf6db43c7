package domain

import "time"

// ArbDirection is the correction direction of an arbitrage opportunity,
// named after the trade taken against the pool.
type ArbDirection string

const (
	// ArbBuyEthSellBtc: ETH is cheap in the pool (pool rate below market), so
	// ETH is bought from the pool with BTC.
	ArbBuyEthSellBtc ArbDirection = "buy_eth_sell_btc"
	// ArbBuyBtcSellEth: ETH is rich in the pool, so ETH is sold into the pool
	// for BTC.
	ArbBuyBtcSellEth ArbDirection = "buy_btc_sell_eth"
)

// Valid reports whether d is one of the two correction directions.
func (d ArbDirection) Valid() bool {
	return d == ArbBuyEthSellBtc || d == ArbBuyBtcSellEth
}

// PoolSide returns the asset sold into the pool and the asset taken out.
func (d ArbDirection) PoolSide() (from, to Asset) {
	if d == ArbBuyEthSellBtc {
		return AssetBTC, AssetETH
	}
	return AssetETH, AssetBTC
}

// ArbitrageOpportunity is a detected divergence between the pool rate and the
// reference market rate. Consumed exactly once: Claimed is set when the
// publisher executes the correction itself, and subscribers must not act on it.
type ArbitrageOpportunity struct {
	ID          string       `json:"id"`
	Timestamp   time.Time    `json:"timestamp"`
	PoolPrice   float64      `json:"poolPrice"`
	MarketPrice float64      `json:"marketPrice"`
	Difference  float64      `json:"difference"`
	Percentage  float64      `json:"percentage"`
	Direction   ArbDirection `json:"direction"`
	Claimed     bool         `json:"claimed,omitempty"`
}

// ArbitrageCheck is the outcome of an on-demand detect-and-execute call.
type ArbitrageCheck struct {
	Executed    bool                  `json:"executed"`
	Message     string                `json:"message"`
	Opportunity *ArbitrageOpportunity `json:"opportunity,omitempty"`
	Result      *TradeResult          `json:"result,omitempty"`
}
