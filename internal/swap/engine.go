// Package swap implements the constant-product swap quote. It is a pure
// computation over a pool snapshot and never mutates pool state.
package swap

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammsim/internal/domain"
)

const (
	// AmountPlaces is the reporting precision for amounts and rates.
	AmountPlaces = 6
	// PercentPlaces is the reporting precision for percentages.
	PercentPlaces = 4
)

// Engine quotes swaps. The zero value is ready to use.
type Engine struct{}

// NewEngine returns a swap engine.
func NewEngine() *Engine { return &Engine{} }

// Quote prices a swap of amountInGross of from into to against snap, with fee
// already computed by the pool. Reported figures are rounded; the proposed
// reserves are not, so that k holds exactly when committed.
func (e *Engine) Quote(from, to domain.Asset, amountInGross, fee float64, snap domain.Pool) (domain.SwapResult, error) {
	if !from.Valid() || !to.Valid() || from == to {
		return domain.SwapResult{}, fmt.Errorf("swap: quote: %w: %s -> %s", domain.ErrInvalidTrade, from, to)
	}

	reserveIn := snap.Reserve(from)
	reserveOut := snap.Reserve(to)
	if !(reserveIn > 0) || !(reserveOut > 0) || !(snap.K > 0) {
		return domain.SwapResult{}, fmt.Errorf("swap: quote: %w: empty pool", domain.ErrInsufficientLiquidity)
	}

	amountInNet := amountInGross - fee
	if !(amountInNet > 0) {
		return domain.SwapResult{}, fmt.Errorf("swap: quote: %w: net input %v", domain.ErrInsufficientLiquidity, amountInNet)
	}

	newReserveIn := reserveIn + amountInNet
	newReserveOut := snap.K / newReserveIn
	amountOut := reserveOut - newReserveOut
	if amountOut >= reserveOut || !(newReserveOut > 0) || math.IsInf(newReserveIn, 0) {
		return domain.SwapResult{}, fmt.Errorf("swap: quote: %w: output %v drains reserve %v", domain.ErrInsufficientLiquidity, amountOut, reserveOut)
	}

	expectedPrice := reserveOut / reserveIn
	actualPrice := amountOut / amountInNet
	slippage := math.Abs(actualPrice-expectedPrice) / expectedPrice * 100
	priceImpact := amountInNet / reserveIn * 100

	res := domain.SwapResult{
		From:          from,
		To:            to,
		AmountIn:      Round(amountInGross, AmountPlaces),
		AmountInNet:   Round(amountInNet, AmountPlaces),
		AmountOut:     Round(amountOut, AmountPlaces),
		Fee:           Round(fee, AmountPlaces),
		ExpectedPrice: Round(expectedPrice, AmountPlaces),
		ActualPrice:   Round(actualPrice, AmountPlaces),
		Slippage:      Round(slippage, PercentPlaces),
		PriceImpact:   Round(priceImpact, PercentPlaces),
		K:             snap.K,
	}
	if amountInGross > 0 {
		res.FeeRate = Round(fee/amountInGross, AmountPlaces)
	}
	if from == domain.AssetETH {
		res.NewEthReserve, res.NewBtcReserve = newReserveIn, newReserveOut
	} else {
		res.NewEthReserve, res.NewBtcReserve = newReserveOut, newReserveIn
	}
	return res, nil
}

// Round rounds v half away from zero to places decimals.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
