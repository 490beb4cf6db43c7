// Package oracle provides the synthetic external reference market: a random
// walk over ETH and BTC prices with an exponentially weighted volatility
// estimate.
package oracle

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/ammsim/internal/domain"
	"github.com/alanyoungcy/ammsim/internal/swap"
)

// Config parameterises the random walk.
type Config struct {
	InitialEth      float64
	InitialBtc      float64
	MaxChangePct    float64 // per-step perturbation bound, in percent
	VolatilityAlpha float64 // EWMA weight of the newest absolute change
	HistorySize     int
}

// DefaultConfig returns a market whose BTC/ETH rate is 30.
func DefaultConfig() Config {
	return Config{
		InitialEth:      2000,
		InitialBtc:      60000,
		MaxChangePct:    5,
		VolatilityAlpha: 0.3,
		HistorySize:     100,
	}
}

// Oracle owns the current reference price and its volatility history.
type Oracle struct {
	cfg     Config
	rnd     domain.Rand
	now     func() time.Time
	logger  *slog.Logger
	mu      sync.RWMutex
	price   domain.MarketPrice
	vol     domain.Volatility
	history []domain.PriceChangeEvent
}

// New creates an oracle seeded with the configured initial prices.
func New(cfg Config, rnd domain.Rand, logger *slog.Logger) (*Oracle, error) {
	if !(cfg.InitialEth > 0) || !(cfg.InitialBtc > 0) {
		return nil, fmt.Errorf("oracle: %w: initial prices must be positive", domain.ErrInvalidConfiguration)
	}
	if cfg.MaxChangePct < 0 || cfg.MaxChangePct >= 100 {
		return nil, fmt.Errorf("oracle: %w: max change %v%% outside [0, 100)", domain.ErrInvalidConfiguration, cfg.MaxChangePct)
	}
	if cfg.VolatilityAlpha <= 0 || cfg.VolatilityAlpha > 1 {
		return nil, fmt.Errorf("oracle: %w: volatility alpha %v outside (0, 1]", domain.ErrInvalidConfiguration, cfg.VolatilityAlpha)
	}
	o := &Oracle{
		cfg:    cfg,
		rnd:    rnd,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "oracle")),
	}
	o.price = o.makePrice(cfg.InitialEth, cfg.InitialBtc)
	return o, nil
}

// CurrentPrice returns the current reference price.
func (o *Oracle) CurrentPrice() domain.MarketPrice {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.price
}

// Volatility returns the current volatility estimate.
func (o *Oracle) Volatility() domain.Volatility {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.vol
}

// MarketRate returns btc/eth, the reference rate compared against the
// pool's poolBtc/poolEth.
func (o *Oracle) MarketRate() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.price.Btc / o.price.Eth
}

// SimulatePriceChange applies one random-walk step: each asset moves by an
// independent percentage in [-MaxChangePct, MaxChangePct].
func (o *Oracle) SimulatePriceChange() domain.PriceChangeEvent {
	o.mu.Lock()
	defer o.mu.Unlock()

	ethPct := (o.rnd.Float64()*2 - 1) * o.cfg.MaxChangePct
	btcPct := (o.rnd.Float64()*2 - 1) * o.cfg.MaxChangePct
	return o.step(o.price.Eth*(1+ethPct/100), o.price.Btc*(1+btcPct/100))
}

// SetPrice moves the market to an explicit price, recording it like any
// other step so volatility reacts to it.
func (o *Oracle) SetPrice(eth, btc float64) (domain.PriceChangeEvent, error) {
	if !(eth > 0) || !(btc > 0) {
		return domain.PriceChangeEvent{}, fmt.Errorf("oracle: set price: %w: prices must be positive", domain.ErrInvalidConfiguration)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step(eth, btc), nil
}

// History returns up to limit of the most recent price changes, oldest first.
func (o *Oracle) History(limit int) []domain.PriceChangeEvent {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if limit <= 0 || limit > len(o.history) {
		limit = len(o.history)
	}
	out := make([]domain.PriceChangeEvent, limit)
	copy(out, o.history[len(o.history)-limit:])
	return out
}

// step moves to the new prices and updates volatility. Caller holds o.mu.
func (o *Oracle) step(eth, btc float64) domain.PriceChangeEvent {
	before := o.price
	after := o.makePrice(eth, btc)

	change := domain.PriceChange{
		Eth:   pctChange(before.Eth, after.Eth),
		Btc:   pctChange(before.Btc, after.Btc),
		Ratio: pctChange(before.Ratio, after.Ratio),
	}

	a := o.cfg.VolatilityAlpha
	o.vol.Eth = a*math.Abs(change.Eth) + (1-a)*o.vol.Eth
	o.vol.Btc = a*math.Abs(change.Btc) + (1-a)*o.vol.Btc
	o.vol.Overall = (o.vol.Eth + o.vol.Btc) / 2
	o.price = after

	ev := domain.PriceChangeEvent{
		Before: before,
		After:  after,
		Change: domain.PriceChange{
			Eth:   swap.Round(change.Eth, swap.PercentPlaces),
			Btc:   swap.Round(change.Btc, swap.PercentPlaces),
			Ratio: swap.Round(change.Ratio, swap.PercentPlaces),
		},
		Volatility: domain.Volatility{
			Eth:     swap.Round(o.vol.Eth, swap.PercentPlaces),
			Btc:     swap.Round(o.vol.Btc, swap.PercentPlaces),
			Overall: swap.Round(o.vol.Overall, swap.PercentPlaces),
		},
	}

	o.history = append(o.history, ev)
	if n := o.cfg.HistorySize; n > 0 && len(o.history) > n {
		o.history = append([]domain.PriceChangeEvent(nil), o.history[len(o.history)-n:]...)
	}

	o.logger.Debug("market price changed",
		slog.Float64("eth", after.Eth),
		slog.Float64("btc", after.Btc),
		slog.Float64("eth_change_pct", ev.Change.Eth),
		slog.Float64("btc_change_pct", ev.Change.Btc),
		slog.Float64("volatility", ev.Volatility.Overall),
	)
	return ev
}

func (o *Oracle) makePrice(eth, btc float64) domain.MarketPrice {
	eth, btc = swap.Round(eth, swap.AmountPlaces), swap.Round(btc, swap.AmountPlaces)
	return domain.MarketPrice{
		Eth:       eth,
		Btc:       btc,
		Ratio:     swap.Round(eth/btc, swap.AmountPlaces),
		Timestamp: o.now(),
	}
}

func pctChange(before, after float64) float64 {
	if before == 0 {
		return 0
	}
	return (after - before) / before * 100
}
