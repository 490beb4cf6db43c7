package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/ammsim/internal/domain"
)

// TradeService is the trading side of the simulator.
type TradeService interface {
	ExecuteTrade(ctx context.Context, from, to domain.Asset, ratio float64) (domain.TradeResult, error)
	ExecuteRandomTrade(ctx context.Context) (domain.TradeResult, error)
	ExecuteArbitrageTradeManually(ctx context.Context, opp domain.ArbitrageOpportunity) (domain.TradeResult, error)
}

// TradeHandler serves trade endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger.With(slog.String("handler", "trade"))}
}

type tradeRequest struct {
	From  string  `json:"from"`
	To    string  `json:"to"`
	Ratio float64 `json:"ratio"`
}

// ExecuteTrade swaps ratio of the from reserve into to.
// POST /api/trades {"from":"ETH","to":"BTC","ratio":0.05}
func (h *TradeHandler) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := domain.ParseAsset(req.From)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	to, err := domain.ParseAsset(req.To)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}

	res, err := h.trades.ExecuteTrade(r.Context(), from, to, req.Ratio)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ExecuteRandom executes a trade of random direction and size.
// POST /api/trades/random
func (h *TradeHandler) ExecuteRandom(w http.ResponseWriter, r *http.Request) {
	res, err := h.trades.ExecuteRandomTrade(r.Context())
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ExecuteArbitrage executes the corrective trade for a supplied opportunity.
// POST /api/trades/arbitrage {"direction":"buy_eth_sell_btc","percentage":9.1}
func (h *TradeHandler) ExecuteArbitrage(w http.ResponseWriter, r *http.Request) {
	var opp domain.ArbitrageOpportunity
	if err := decodeJSON(r, &opp); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.trades.ExecuteArbitrageTradeManually(r.Context(), opp)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
