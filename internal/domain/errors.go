package domain

import "errors"

var (
	ErrInvalidConfiguration  = errors.New("invalid configuration")
	ErrCapacityExceeded      = errors.New("liquidity provider capacity exceeded")
	ErrBelowMinimum          = errors.New("liquidity provider count at minimum")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInvalidTrade          = errors.New("invalid trade parameters")
	ErrNotInitialized        = errors.New("pool not initialized")
	ErrNoOpportunity         = errors.New("no arbitrage opportunity")
)
