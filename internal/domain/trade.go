package domain

import "time"

// TradeOrigin records what caused a trade.
type TradeOrigin string

const (
	TradeOriginUser      TradeOrigin = "user"
	TradeOriginRandom    TradeOrigin = "random"
	TradeOriginArbitrage TradeOrigin = "arbitrage"
)

// Trade is an executed swap against the pool. Immutable once returned.
type Trade struct {
	ID          string      `json:"id"`
	From        Asset       `json:"from"`
	To          Asset       `json:"to"`
	AmountIn    float64     `json:"amountIn"`
	AmountOut   float64     `json:"amountOut"`
	Fee         float64     `json:"fee"`
	Slippage    float64     `json:"slippage"`
	PriceImpact float64     `json:"priceImpact"`
	Origin      TradeOrigin `json:"origin"`
	Timestamp   time.Time   `json:"timestamp"`
}

// PriceInfo reports the prices observed around a trade.
type PriceInfo struct {
	ExpectedPrice  float64 `json:"expectedPrice"`
	ActualPrice    float64 `json:"actualPrice"`
	PoolPriceAfter float64 `json:"poolPriceAfter"`
	FeeRate        float64 `json:"feeRate"`
}

// TradeResult is the bundle returned by every trade execution.
type TradeResult struct {
	Trade      Trade     `json:"trade"`
	PoolBefore Pool      `json:"poolBefore"`
	PoolAfter  Pool      `json:"poolAfter"`
	PriceInfo  PriceInfo `json:"priceInfo"`
}
