package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/ammsim/internal/domain"
	"github.com/alanyoungcy/ammsim/internal/service"
)

// Driver is the part of the simulator the background loop steps.
type Driver interface {
	SimulatePriceChange(ctx context.Context) domain.PriceChangeEvent
	ExecuteRandomTrade(ctx context.Context) (domain.TradeResult, error)
	AddRandomUser(ctx context.Context) (service.MembershipChange, error)
	RemoveRandomUser(ctx context.Context) (service.MembershipChange, error)
}

var _ Driver = (*service.Simulator)(nil)

// LoopConfig controls what each tick does.
type LoopConfig struct {
	Interval         time.Duration
	RandomTrades     bool
	ChurnProbability float64
}

// Loop advances the market on a fixed interval and optionally generates
// random trades and LP churn.
type Loop struct {
	cfg    LoopConfig
	sim    Driver
	rnd    domain.Rand
	logger *slog.Logger
	ticks  int64
}

// NewLoop creates a Loop. rnd is owned by the loop.
func NewLoop(cfg LoopConfig, sim Driver, rnd domain.Rand, logger *slog.Logger) *Loop {
	return &Loop{
		cfg:    cfg,
		sim:    sim,
		rnd:    rnd,
		logger: logger.With(slog.String("component", "sim_loop")),
	}
}

// Run ticks until ctx is cancelled. A non-positive interval is rejected.
func (l *Loop) Run(ctx context.Context) error {
	if l.cfg.Interval <= 0 {
		return fmt.Errorf("sim_loop: %w: tick interval %v must be > 0", domain.ErrInvalidConfiguration, l.cfg.Interval)
	}
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	l.logger.InfoContext(ctx, "simulation loop started",
		slog.Duration("interval", l.cfg.Interval),
		slog.Bool("random_trades", l.cfg.RandomTrades),
	)
	for {
		select {
		case <-ctx.Done():
			l.logger.InfoContext(ctx, "simulation loop stopped", slog.Int64("ticks", l.ticks))
			return nil
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick performs one step: a market move, then an optional random trade, then
// an optional membership change. Engine refusals are expected and logged at
// debug level.
func (l *Loop) Tick(ctx context.Context) {
	l.ticks++
	ev := l.sim.SimulatePriceChange(ctx)
	l.logger.DebugContext(ctx, "market moved",
		slog.Float64("eth", ev.After.Eth),
		slog.Float64("btc", ev.After.Btc),
		slog.Float64("volatility", ev.Volatility.Overall),
	)

	if l.cfg.RandomTrades {
		if _, err := l.sim.ExecuteRandomTrade(ctx); err != nil {
			l.logErr(ctx, "random trade skipped", err)
		}
	}

	if l.cfg.ChurnProbability > 0 && l.rnd.Float64() < l.cfg.ChurnProbability {
		var err error
		if l.rnd.IntN(2) == 0 {
			_, err = l.sim.AddRandomUser(ctx)
		} else {
			_, err = l.sim.RemoveRandomUser(ctx)
		}
		if err != nil {
			l.logErr(ctx, "membership change skipped", err)
		}
	}
}

// Ticks reports how many ticks have run.
func (l *Loop) Ticks() int64 { return l.ticks }

func (l *Loop) logErr(ctx context.Context, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotInitialized),
		errors.Is(err, domain.ErrCapacityExceeded),
		errors.Is(err, domain.ErrBelowMinimum),
		errors.Is(err, domain.ErrInsufficientLiquidity):
		l.logger.DebugContext(ctx, msg, slog.String("error", err.Error()))
	default:
		l.logger.WarnContext(ctx, msg, slog.String("error", err.Error()))
	}
}
