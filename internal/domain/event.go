package domain

import (
	"context"
	"time"
)

// Topic names a class of events on the bus.
type Topic string

const (
	TopicTradeExecuted        Topic = "trade_executed"
	TopicArbitrageOpportunity Topic = "arbitrage_opportunity"
	TopicPriceChanged         Topic = "price_changed"
	TopicPoolUpdated          Topic = "pool_updated"
)

// Event is anything that can travel over the event bus.
type Event interface {
	Topic() Topic
}

// TradeExecuted is published exactly once per committed trade.
type TradeExecuted struct {
	TradeID     string      `json:"tradeId"`
	From        Asset       `json:"from"`
	To          Asset       `json:"to"`
	AmountIn    float64     `json:"amountIn"`
	AmountOut   float64     `json:"amountOut"`
	Fee         float64     `json:"fee"`
	Slippage    float64     `json:"slippage"`
	PriceImpact float64     `json:"priceImpact"`
	Origin      TradeOrigin `json:"origin"`
	PoolBefore  Pool        `json:"poolBefore"`
	PoolAfter   Pool        `json:"poolAfter"`
	Timestamp   time.Time   `json:"timestamp"`
}

func (TradeExecuted) Topic() Topic { return TopicTradeExecuted }

func (ArbitrageOpportunity) Topic() Topic { return TopicArbitrageOpportunity }

func (PriceChangeEvent) Topic() Topic { return TopicPriceChanged }

// PoolAction describes an LP membership change.
type PoolAction string

const (
	PoolActionInitialized PoolAction = "initialized"
	PoolActionUserAdded   PoolAction = "user_added"
	PoolActionUserRemoved PoolAction = "user_removed"
)

// PoolUpdated is published when liquidity (not a swap) changes the pool.
type PoolUpdated struct {
	Action PoolAction `json:"action"`
	User   *LPUser    `json:"user,omitempty"`
	Pool   Pool       `json:"pool"`
}

func (PoolUpdated) Topic() Topic { return TopicPoolUpdated }

// EventSink receives serialized events for out-of-process observers.
type EventSink interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}
