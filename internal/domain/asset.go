package domain

import (
	"fmt"
	"strings"
)

// Asset is one side of the two-asset pool.
type Asset string

const (
	AssetETH Asset = "ETH"
	AssetBTC Asset = "BTC"
)

// ParseAsset normalizes a user supplied asset symbol.
func ParseAsset(s string) (Asset, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(AssetETH):
		return AssetETH, nil
	case string(AssetBTC):
		return AssetBTC, nil
	default:
		return "", fmt.Errorf("%w: unknown asset %q", ErrInvalidTrade, s)
	}
}

// Other returns the opposite asset of the pair.
func (a Asset) Other() Asset {
	if a == AssetETH {
		return AssetBTC
	}
	return AssetETH
}

// Valid reports whether a is part of the pool universe.
func (a Asset) Valid() bool {
	return a == AssetETH || a == AssetBTC
}
