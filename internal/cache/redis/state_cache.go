package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/ammsim/internal/domain"
)

// StateCache keeps the latest market price and pool reserves in Redis
// hashes at "<prefix>market" and "<prefix>pool".
type StateCache struct {
	rdb    *redis.Client
	prefix string
}

// NewStateCache creates a StateCache backed by the given Client.
func NewStateCache(c *Client, prefix string) *StateCache {
	return &StateCache{rdb: c.rdb, prefix: prefix}
}

func (sc *StateCache) marketKey() string { return sc.prefix + "market" }
func (sc *StateCache) poolKey() string   { return sc.prefix + "pool" }

// SetMarketPrice stores the latest reference price.
func (sc *StateCache) SetMarketPrice(ctx context.Context, p domain.MarketPrice) error {
	fields := map[string]any{
		"eth": formatFloat(p.Eth),
		"btc": formatFloat(p.Btc),
		"ts":  strconv.FormatInt(p.Timestamp.UnixNano(), 10),
	}
	if err := sc.rdb.HSet(ctx, sc.marketKey(), fields).Err(); err != nil {
		return fmt.Errorf("redis: set market price: %w", err)
	}
	return nil
}

// MarketPrice reads the cached price. It returns ok=false when nothing has
// been cached yet.
func (sc *StateCache) MarketPrice(ctx context.Context) (domain.MarketPrice, bool, error) {
	vals, err := sc.rdb.HGetAll(ctx, sc.marketKey()).Result()
	if err != nil {
		return domain.MarketPrice{}, false, fmt.Errorf("redis: get market price: %w", err)
	}
	if len(vals) == 0 {
		return domain.MarketPrice{}, false, nil
	}

	eth, err := strconv.ParseFloat(vals["eth"], 64)
	if err != nil {
		return domain.MarketPrice{}, false, fmt.Errorf("redis: parse eth price: %w", err)
	}
	btc, err := strconv.ParseFloat(vals["btc"], 64)
	if err != nil {
		return domain.MarketPrice{}, false, fmt.Errorf("redis: parse btc price: %w", err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.MarketPrice{}, false, fmt.Errorf("redis: parse ts: %w", err)
	}

	p := domain.MarketPrice{Eth: eth, Btc: btc, Timestamp: time.Unix(0, tsNano).UTC()}
	if btc > 0 {
		p.Ratio = eth / btc
	}
	return p, true, nil
}

// SetPool stores the reserve summary of a pool snapshot.
func (sc *StateCache) SetPool(ctx context.Context, p domain.Pool) error {
	fields := map[string]any{
		"eth_reserve": formatFloat(p.EthReserve),
		"btc_reserve": formatFloat(p.BtcReserve),
		"k":           formatFloat(p.K),
		"fee_rate":    formatFloat(p.FeeRate),
		"users":       strconv.Itoa(len(p.Users)),
		"trade_count": strconv.FormatInt(p.TradeCount, 10),
	}
	if err := sc.rdb.HSet(ctx, sc.poolKey(), fields).Err(); err != nil {
		return fmt.Errorf("redis: set pool: %w", err)
	}
	return nil
}

// Pool returns the raw cached pool fields.
func (sc *StateCache) Pool(ctx context.Context) (map[string]string, error) {
	vals, err := sc.rdb.HGetAll(ctx, sc.poolKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get pool: %w", err)
	}
	return vals, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
