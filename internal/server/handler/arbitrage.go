package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/ammsim/internal/domain"
)

// ArbService exposes on-demand arbitrage.
type ArbService interface {
	CheckAndExecuteArbitrage(ctx context.Context) (domain.ArbitrageCheck, error)
	RecentOpportunities(limit int) []domain.ArbitrageOpportunity
}

// ArbHandler serves arbitrage endpoints.
type ArbHandler struct {
	arb    ArbService
	logger *slog.Logger
}

// NewArbHandler creates an ArbHandler.
func NewArbHandler(arb ArbService, logger *slog.Logger) *ArbHandler {
	return &ArbHandler{arb: arb, logger: logger.With(slog.String("handler", "arbitrage"))}
}

// Execute detects divergence against the live pool and corrects it.
// POST /api/arbitrage/execute
func (h *ArbHandler) Execute(w http.ResponseWriter, r *http.Request) {
	res, err := h.arb.CheckAndExecuteArbitrage(r.Context())
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type listArbResponse struct {
	Opportunities []domain.ArbitrageOpportunity `json:"opportunities"`
}

// ListRecent returns the most recent opportunities, newest first.
// GET /api/arbitrage/recent?limit=20
func (h *ArbHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opps := h.arb.RecentOpportunities(parseLimit(r, 20, 200))
	if opps == nil {
		opps = []domain.ArbitrageOpportunity{}
	}
	writeJSON(w, http.StatusOK, listArbResponse{Opportunities: opps})
}
