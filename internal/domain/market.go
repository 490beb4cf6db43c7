package domain

import "time"

// MarketPrice is the external reference price of both assets.
type MarketPrice struct {
	Eth       float64   `json:"eth"`
	Btc       float64   `json:"btc"`
	Ratio     float64   `json:"ratio"` // eth / btc
	Timestamp time.Time `json:"timestamp"`
}

// PriceChange holds percentage deltas of a single random-walk step.
type PriceChange struct {
	Eth   float64 `json:"eth"`
	Btc   float64 `json:"btc"`
	Ratio float64 `json:"ratio"`
}

// PriceChangeEvent captures one random-walk step of the reference market.
type PriceChangeEvent struct {
	Before     MarketPrice `json:"before"`
	After      MarketPrice `json:"after"`
	Change     PriceChange `json:"change"`
	Volatility Volatility  `json:"volatility"`
}

// MarketStatus summarises the reference market against the pool.
type MarketStatus struct {
	CurrentPrice         MarketPrice           `json:"currentPrice"`
	Volatility           Volatility            `json:"volatility"`
	ArbitrageOpportunity *ArbitrageOpportunity `json:"arbitrageOpportunity"`
	LastUpdate           time.Time             `json:"lastUpdate"`
}
