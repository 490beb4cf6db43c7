// Package server exposes the simulator over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/ammsim/internal/server/handler"
	"github.com/alanyoungcy/ammsim/internal/server/middleware"
	"github.com/alanyoungcy/ammsim/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port         int
	CORSOrigins  []string
	RateLimitRPS float64 // per client; 0 disables limiting
	RateBurst    int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Status  *handler.StatusHandler
	Pool    *handler.PoolHandler
	Market  *handler.MarketHandler
	Trades  *handler.TradeHandler
	Arb     *handler.ArbHandler
	Metrics http.Handler // optional
}

// Server is the HTTP + WebSocket API server for the simulator.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and wraps them in the middleware chain
// (rate limit, logging, CORS). wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, wsHub, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Pool endpoints.
	mux.HandleFunc("GET /api/pool", handlers.Pool.GetPool)
	mux.HandleFunc("POST /api/pool/init", handlers.Pool.InitLiquidity)
	mux.HandleFunc("POST /api/pool/users", handlers.Pool.AddUser)
	mux.HandleFunc("DELETE /api/pool/users", handlers.Pool.RemoveUser)

	// Market endpoints.
	mux.HandleFunc("GET /api/market/price", handlers.Market.GetPrice)
	mux.HandleFunc("POST /api/market/simulate", handlers.Market.Simulate)
	mux.HandleFunc("GET /api/market/history", handlers.Market.History)
	mux.HandleFunc("GET /api/market/status", handlers.Market.Status)
	mux.HandleFunc("POST /api/market/arbitrage/check", handlers.Market.CheckArbitrage)

	// Trade endpoints.
	mux.HandleFunc("POST /api/trades", handlers.Trades.ExecuteTrade)
	mux.HandleFunc("POST /api/trades/random", handlers.Trades.ExecuteRandom)
	mux.HandleFunc("POST /api/trades/arbitrage", handlers.Trades.ExecuteArbitrage)

	// Arbitrage endpoints.
	mux.HandleFunc("POST /api/arbitrage/execute", handlers.Arb.Execute)
	mux.HandleFunc("GET /api/arbitrage/recent", handlers.Arb.ListRecent)

	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var limiter *middleware.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewLimiter(cfg.RateLimitRPS, cfg.RateBurst)
	}

	var h http.Handler = mux
	h = middleware.RateLimit(limiter)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
