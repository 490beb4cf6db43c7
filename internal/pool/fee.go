package pool

import "math"

// FeeConfig parameterises the dynamic fee model.
type FeeConfig struct {
	BaseRate              float64
	MinRate               float64
	MaxRate               float64
	SizeSensitivity       float64 // multiplier per unit of |poolSizeRatio-1|
	VolatilitySensitivity float64 // multiplier per unit of overall volatility (fraction)
}

// DefaultFeeConfig returns the fee model used when nothing is configured.
func DefaultFeeConfig() FeeConfig {
	return FeeConfig{
		BaseRate:              0.003,
		MinRate:               0.0005,
		MaxRate:               0.01,
		SizeSensitivity:       0.5,
		VolatilitySensitivity: 20,
	}
}

// FeeRate maps pool size drift and market volatility (percent) onto a fee
// rate. It is non-decreasing in both |poolSizeRatio-1| and volatility and is
// clipped to [MinRate, MaxRate].
func FeeRate(cfg FeeConfig, poolSizeRatio, overallVolatility float64) float64 {
	sizeDrift := math.Abs(poolSizeRatio - 1)
	if math.IsNaN(sizeDrift) || math.IsInf(sizeDrift, 0) {
		sizeDrift = 0
	}
	vol := math.Max(overallVolatility, 0) / 100

	rate := cfg.BaseRate * (1 + cfg.SizeSensitivity*sizeDrift) * (1 + cfg.VolatilitySensitivity*vol)
	return math.Min(math.Max(rate, cfg.MinRate), cfg.MaxRate)
}
