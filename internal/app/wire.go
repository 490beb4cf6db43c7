package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/alanyoungcy/ammsim/internal/arbitrage"
	"github.com/alanyoungcy/ammsim/internal/cache/redis"
	"github.com/alanyoungcy/ammsim/internal/config"
	"github.com/alanyoungcy/ammsim/internal/eventbus"
	"github.com/alanyoungcy/ammsim/internal/metrics"
	"github.com/alanyoungcy/ammsim/internal/notify"
	"github.com/alanyoungcy/ammsim/internal/oracle"
	"github.com/alanyoungcy/ammsim/internal/pool"
	"github.com/alanyoungcy/ammsim/internal/service"
)

// asyncBuffer is the queue depth of each I/O subscriber.
const asyncBuffer = 512

// Dependencies bundles everything the run modes need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Bus       *eventbus.Bus
	Simulator *service.Simulator
	Metrics   *metrics.Metrics
	Notifier  *notify.Notifier

	// Workers deliver events to subscribers doing network I/O. Each must be
	// run for its subscriber to see anything.
	Workers []*eventbus.Async

	// Seed for the simulation loop's own random source.
	LoopSeed uint64
}

// SimulatorConfig maps the file configuration onto the engine parameters.
func SimulatorConfig(cfg *config.Config) service.SimulatorConfig {
	return service.SimulatorConfig{
		Pool: pool.Config{
			MaxUsers:             cfg.Pool.MaxUsers,
			MinUsers:             cfg.Pool.MinUsers,
			MaxAddFraction:       cfg.Pool.MaxAddFraction,
			GovernanceRewardRate: cfg.Pool.GovernanceRewardRate,
			Fee: pool.FeeConfig{
				BaseRate:              cfg.Fee.BaseRate,
				MinRate:               cfg.Fee.MinRate,
				MaxRate:               cfg.Fee.MaxRate,
				SizeSensitivity:       cfg.Fee.SizeSensitivity,
				VolatilitySensitivity: cfg.Fee.VolatilitySensitivity,
			},
		},
		Oracle: oracle.Config{
			InitialEth:      cfg.Market.InitialEth,
			InitialBtc:      cfg.Market.InitialBtc,
			MaxChangePct:    cfg.Market.MaxChangePct,
			VolatilityAlpha: cfg.Market.VolatilityAlpha,
			HistorySize:     cfg.Market.HistorySize,
		},
		Arbitrage: arbitrage.Config{
			ThresholdPct: cfg.Arbitrage.ThresholdPct,
			AutoDetect:   cfg.Arbitrage.AutoDetect,
			AutoExecute:  cfg.Arbitrage.AutoExecute,
			RecentSize:   cfg.Arbitrage.RecentSize,
		},
		InitialEth:   cfg.Pool.InitialEth,
		InitialBtc:   cfg.Pool.InitialBtc,
		InitialUsers: cfg.Pool.InitialUsers,
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	deps := &Dependencies{
		Bus:      eventbus.New(logger),
		Metrics:  metrics.New(),
		LoopSeed: seed + 1,
	}
	deps.Bus.SubscribeAll("metrics", deps.Metrics.Observe)

	sim, err := service.NewSimulator(
		SimulatorConfig(cfg),
		rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		deps.Bus,
		logger,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: simulator: %w", err)
	}
	deps.Simulator = sim

	// --- Redis (optional mirror) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Timeout:    cfg.Redis.Timeout.Duration,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		logger.InfoContext(ctx, "redis mirror connected", slog.String("addr", redisClient.Addr()))

		mirror := redis.NewMirror(redis.MirrorConfig{
			ChannelPrefix: cfg.Redis.ChannelPrefix,
			Stream:        cfg.Redis.Stream,
			Timeout:       cfg.Redis.Timeout.Duration,
		},
			redis.NewEventStream(redisClient, cfg.Redis.StreamMaxLen),
			redis.NewStateCache(redisClient, cfg.Redis.ChannelPrefix),
			logger,
		)
		deps.subscribeAsync("redis_mirror", mirror.Handle, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(
			cfg.Notify.DiscordWebhookURL,
			cfg.Notify.DiscordUsername,
		))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	if deps.Notifier.Enabled() {
		deps.subscribeAsync("notifier", deps.Notifier.Handle, logger)
	}

	return deps, cleanup, nil
}

// subscribeAsync puts h behind a buffered worker and subscribes the worker
// to every topic.
func (d *Dependencies) subscribeAsync(name string, h eventbus.Handler, logger *slog.Logger) {
	w := eventbus.NewAsync(name, asyncBuffer, h, logger)
	d.Bus.SubscribeAll(name, w.Handle)
	d.Workers = append(d.Workers, w)
}
