package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/ammsim/internal/server"
	"github.com/alanyoungcy/ammsim/internal/server/handler"
	"github.com/alanyoungcy/ammsim/internal/server/ws"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// ServerMode serves the HTTP and WebSocket API. The market only moves when a
// client asks it to.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startWorkers(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// SimulateMode runs the background simulation loop without an API.
func (a *App) SimulateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting simulate mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startWorkers(ctx, g, deps)
	a.startLoop(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the simulation loop and, when enabled, the API.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startWorkers(ctx, g, deps)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}
	a.startLoop(ctx, g, deps)
	return g.Wait()
}

// startWorkers runs every async subscriber until ctx is cancelled.
func (a *App) startWorkers(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	for _, w := range deps.Workers {
		g.Go(func() error {
			return w.Run(ctx)
		})
	}
}

// startLoop adds the simulation ticker to the errgroup.
func (a *App) startLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	loop := NewLoop(LoopConfig{
		Interval:         a.cfg.Simulation.TickInterval.Duration,
		RandomTrades:     a.cfg.Simulation.RandomTrades,
		ChurnProbability: a.cfg.Simulation.ChurnProbability,
	},
		deps.Simulator,
		rand.New(rand.NewPCG(deps.LoopSeed, deps.LoopSeed^0xda942042e4dd58b5)),
		a.logger,
	)
	g.Go(func() error {
		return loop.Run(ctx)
	})
}

// startHTTPServer adds the HTTP server, its WebSocket hub, and a shutdown
// watcher to the errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	sim := deps.Simulator

	status := handler.NewStatusHandler(a.cfg.Mode, time.Now().UTC(), sim)
	hub := ws.NewHub(status.Snapshot, a.logger)
	deps.Bus.SubscribeAll("ws", hub.Handle)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		RateLimitRPS: a.cfg.Server.RateLimitRPS,
		RateBurst:    a.cfg.Server.RateLimitBurst,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(),
		Status:  status,
		Pool:    handler.NewPoolHandler(sim, a.logger),
		Market:  handler.NewMarketHandler(sim, a.logger),
		Trades:  handler.NewTradeHandler(sim, a.logger),
		Arb:     handler.NewArbHandler(sim, a.logger),
		Metrics: deps.Metrics.Handler(),
	}, hub, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
