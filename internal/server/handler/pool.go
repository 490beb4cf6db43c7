package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/ammsim/internal/domain"
	"github.com/alanyoungcy/ammsim/internal/service"
)

// PoolService is the liquidity side of the simulator.
type PoolService interface {
	InitLiquidity(ctx context.Context, params service.InitParams) (domain.Pool, error)
	GetPool() (domain.Pool, error)
	AddRandomUser(ctx context.Context) (service.MembershipChange, error)
	RemoveRandomUser(ctx context.Context) (service.MembershipChange, error)
}

// PoolHandler serves pool endpoints.
type PoolHandler struct {
	pool   PoolService
	logger *slog.Logger
}

// NewPoolHandler creates a PoolHandler.
func NewPoolHandler(pool PoolService, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{pool: pool, logger: logger.With(slog.String("handler", "pool"))}
}

// GetPool returns the pool snapshot.
// GET /api/pool
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	snap, err := h.pool.GetPool()
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// InitLiquidity (re)seeds the pool. The body is optional; omitted fields use
// the configured defaults.
// POST /api/pool/init {"eth":1000,"btc":30000,"users":10}
func (h *PoolHandler) InitLiquidity(w http.ResponseWriter, r *http.Request) {
	var params service.InitParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := h.pool.InitLiquidity(r.Context(), params)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// AddUser admits a random liquidity provider.
// POST /api/pool/users
func (h *PoolHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	change, err := h.pool.AddRandomUser(r.Context())
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, change)
}

// RemoveUser withdraws a random liquidity provider.
// DELETE /api/pool/users
func (h *PoolHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	change, err := h.pool.RemoveRandomUser(r.Context())
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}
