package domain

import "time"

// Volatility is a rolling measure of recent absolute price movement, in
// percent.
type Volatility struct {
	Eth     float64 `json:"eth"`
	Btc     float64 `json:"btc"`
	Overall float64 `json:"overall"`
}

// LPUser is one liquidity provider in the pool's share ledger.
type LPUser struct {
	ID               string    `json:"id"`
	EthDeposit       float64   `json:"ethDeposit"`
	BtcDeposit       float64   `json:"btcDeposit"`
	Share            float64   `json:"share"`
	EarnedEth        float64   `json:"earnedEth"`
	EarnedBtc        float64   `json:"earnedBtc"`
	GovernanceTokens float64   `json:"governanceTokens"`
	JoinedAt         time.Time `json:"joinedAt"`
}

// Pool is an immutable snapshot of the liquidity pool state.
type Pool struct {
	EthReserve           float64    `json:"ethReserve"`
	BtcReserve           float64    `json:"btcReserve"`
	K                    float64    `json:"k"`
	FeeRate              float64    `json:"feeRate"`
	Users                []LPUser   `json:"users"`
	InitialPoolValue     float64    `json:"initialPoolValue"`
	CurrentPoolValue     float64    `json:"currentPoolValue"`
	PoolSizeRatio        float64    `json:"poolSizeRatio"`
	Volatility           Volatility `json:"volatility"`
	LastVolatilityUpdate time.Time  `json:"lastVolatilityUpdate"`
	TotalFeesEth         float64    `json:"totalFeesEth"`
	TotalFeesBtc         float64    `json:"totalFeesBtc"`
	TradeCount           int64      `json:"tradeCount"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// Reserve returns the reserve held for the given asset.
func (p Pool) Reserve(a Asset) float64 {
	if a == AssetETH {
		return p.EthReserve
	}
	return p.BtcReserve
}

// Price returns the pool's implied BTC-per-ETH exchange rate.
func (p Pool) Price() float64 {
	if p.EthReserve == 0 {
		return 0
	}
	return p.BtcReserve / p.EthReserve
}

// Clone returns a deep copy of the snapshot.
func (p Pool) Clone() Pool {
	out := p
	if p.Users != nil {
		out.Users = make([]LPUser, len(p.Users))
		copy(out.Users, p.Users)
	}
	return out
}

// SwapResult is a proposed post-trade pool state produced by the swap engine.
// It is committed with the pool's ApplySwap.
type SwapResult struct {
	From          Asset   `json:"from"`
	To            Asset   `json:"to"`
	AmountIn      float64 `json:"amountIn"`
	AmountInNet   float64 `json:"amountInNet"`
	AmountOut     float64 `json:"amountOut"`
	Fee           float64 `json:"fee"`
	FeeRate       float64 `json:"feeRate"`
	ExpectedPrice float64 `json:"expectedPrice"`
	ActualPrice   float64 `json:"actualPrice"`
	Slippage      float64 `json:"slippage"`
	PriceImpact   float64 `json:"priceImpact"`
	NewEthReserve float64 `json:"newEthReserve"`
	NewBtcReserve float64 `json:"newBtcReserve"`
	K             float64 `json:"k"`
}
