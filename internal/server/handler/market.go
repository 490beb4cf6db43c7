package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/ammsim/internal/domain"
)

// MarketService is the reference-market side of the simulator.
type MarketService interface {
	GetPool() (domain.Pool, error)
	GetCurrentPrice() domain.MarketPrice
	SimulatePriceChange(ctx context.Context) domain.PriceChangeEvent
	SetMarketPrice(ctx context.Context, eth, btc float64) (domain.PriceChangeEvent, error)
	PriceHistory(limit int) []domain.PriceChangeEvent
	GetMarketStatus() domain.MarketStatus
	CheckAndEmitArbitrageOpportunity(ctx context.Context, poolEth, poolBtc float64) *domain.ArbitrageOpportunity
}

// MarketHandler serves market endpoints.
type MarketHandler struct {
	market MarketService
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(market MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{market: market, logger: logger.With(slog.String("handler", "market"))}
}

// GetPrice returns the current reference price.
// GET /api/market/price
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.market.GetCurrentPrice())
}

type setPriceRequest struct {
	Eth float64 `json:"eth"`
	Btc float64 `json:"btc"`
}

// Simulate steps the random walk, or jumps to an explicit price when a body
// with both prices is given.
// POST /api/market/simulate [{"eth":2000,"btc":66000}]
func (h *MarketHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req setPriceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Eth == 0 && req.Btc == 0 {
		writeJSON(w, http.StatusOK, h.market.SimulatePriceChange(r.Context()))
		return
	}
	ev, err := h.market.SetMarketPrice(r.Context(), req.Eth, req.Btc)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// History returns recent price changes, oldest first.
// GET /api/market/history?limit=50
func (h *MarketHandler) History(w http.ResponseWriter, r *http.Request) {
	events := h.market.PriceHistory(parseLimit(r, 50, 500))
	if events == nil {
		events = []domain.PriceChangeEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": events})
}

// Status returns price, volatility and any current divergence. It never
// triggers a trade.
// GET /api/market/status
func (h *MarketHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.market.GetMarketStatus())
}

type checkRequest struct {
	PoolEth float64 `json:"poolEth"`
	PoolBtc float64 `json:"poolBtc"`
}

type checkResponse struct {
	Detected    bool                         `json:"detected"`
	Opportunity *domain.ArbitrageOpportunity `json:"opportunity,omitempty"`
}

// CheckArbitrage checks the given reserves, or the live pool when none are
// given, and publishes any opportunity found.
// POST /api/market/arbitrage/check [{"poolEth":1000,"poolBtc":33000}]
func (h *MarketHandler) CheckArbitrage(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PoolEth == 0 && req.PoolBtc == 0 {
		snap, err := h.market.GetPool()
		if err != nil {
			writeEngineError(w, r, h.logger, err)
			return
		}
		req.PoolEth, req.PoolBtc = snap.EthReserve, snap.BtcReserve
	}
	if !(req.PoolEth > 0) || !(req.PoolBtc > 0) {
		writeError(w, http.StatusBadRequest, "poolEth and poolBtc must be positive")
		return
	}

	opp := h.market.CheckAndEmitArbitrageOpportunity(r.Context(), req.PoolEth, req.PoolBtc)
	writeJSON(w, http.StatusOK, checkResponse{Detected: opp != nil, Opportunity: opp})
}
