package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/ammsim/internal/arbitrage"
	"github.com/alanyoungcy/ammsim/internal/domain"
	"github.com/alanyoungcy/ammsim/internal/eventbus"
	"github.com/alanyoungcy/ammsim/internal/oracle"
	"github.com/alanyoungcy/ammsim/internal/pool"
	"github.com/alanyoungcy/ammsim/internal/swap"
)

// SimulatorConfig collects the parameters of every engine component.
type SimulatorConfig struct {
	Pool         pool.Config
	Oracle       oracle.Config
	Arbitrage    arbitrage.Config
	InitialEth   float64
	InitialBtc   float64
	InitialUsers int
}

// DefaultSimulatorConfig seeds a 1000 ETH / 30000 BTC pool with ten
// providers against a market quoting the same rate.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Pool:         pool.DefaultConfig(),
		Oracle:       oracle.DefaultConfig(),
		Arbitrage:    arbitrage.DefaultConfig(),
		InitialEth:   1000,
		InitialBtc:   30000,
		InitialUsers: 10,
	}
}

// InitParams overrides the configured seed liquidity. Nil fields fall back
// to the configuration; explicit values, zero included, are validated as given.
type InitParams struct {
	Eth   *float64 `json:"eth,omitempty"`
	Btc   *float64 `json:"btc,omitempty"`
	Users *int     `json:"users,omitempty"`
}

// MembershipChange is returned by LP admission and removal.
type MembershipChange struct {
	User domain.LPUser `json:"user"`
	Pool domain.Pool   `json:"pool"`
}

// Status summarises the simulator for health and status endpoints.
type Status struct {
	Initialized       bool                   `json:"initialized"`
	Users             int                    `json:"users"`
	TradeCount        int64                  `json:"tradeCount"`
	PoolPrice         float64                `json:"poolPrice"`
	MarketRate        float64                `json:"marketRate"`
	ArbitrageExecuted int64                  `json:"arbitrageExecuted"`
	PublishedByTopic  map[domain.Topic]int64 `json:"publishedByTopic"`
}

// Simulator owns the pool, market and arbitrage monitor and serializes every
// operation on them. Subscribers run inside that critical section and must
// not call back into the Simulator.
type Simulator struct {
	cfg     SimulatorConfig
	pool    *pool.Pool
	oracle  *oracle.Oracle
	trades  *TradeService
	monitor *arbitrage.Monitor
	bus     *eventbus.Bus
	logger  *slog.Logger

	mu sync.Mutex
}

// NewSimulator builds the engine on bus. The random source is only used
// under the simulator's lock, so a non-concurrent source is fine.
func NewSimulator(cfg SimulatorConfig, rnd domain.Rand, bus *eventbus.Bus, logger *slog.Logger) (*Simulator, error) {
	orc, err := oracle.New(cfg.Oracle, rnd, logger)
	if err != nil {
		return nil, fmt.Errorf("simulator: %w", err)
	}
	p := pool.New(cfg.Pool, rnd, logger)
	trades := NewTradeService(p, swap.NewEngine(), bus, rnd, logger)
	mon := arbitrage.NewMonitor(cfg.Arbitrage, p, orc, trades, bus, logger)
	mon.Register(bus)

	return &Simulator{
		cfg:     cfg,
		pool:    p,
		oracle:  orc,
		trades:  trades,
		monitor: mon,
		bus:     bus,
		logger:  logger.With(slog.String("component", "simulator")),
	}, nil
}

// InitLiquidity (re)seeds the pool.
func (s *Simulator) InitLiquidity(ctx context.Context, params InitParams) (domain.Pool, error) {
	eth, btc, users := s.cfg.InitialEth, s.cfg.InitialBtc, s.cfg.InitialUsers
	if params.Eth != nil {
		eth = *params.Eth
	}
	if params.Btc != nil {
		btc = *params.Btc
	}
	if params.Users != nil {
		users = *params.Users
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.pool.Initialize(eth, btc, users)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("simulator: init liquidity: %w", err)
	}
	s.syncVolatility()
	snap = s.pool.Snapshot()
	s.bus.Publish(ctx, domain.PoolUpdated{Action: domain.PoolActionInitialized, Pool: snap})
	return snap, nil
}

// GetPool returns a snapshot of the pool.
func (s *Simulator) GetPool() (domain.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pool.Initialized() {
		return domain.Pool{}, fmt.Errorf("simulator: get pool: %w", domain.ErrNotInitialized)
	}
	return s.pool.Snapshot(), nil
}

// AddRandomUser admits one synthetic liquidity provider.
func (s *Simulator) AddRandomUser(ctx context.Context) (MembershipChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.pool.AddUser()
	if err != nil {
		return MembershipChange{}, fmt.Errorf("simulator: add user: %w", err)
	}
	change := MembershipChange{User: user, Pool: s.pool.Snapshot()}
	s.bus.Publish(ctx, domain.PoolUpdated{Action: domain.PoolActionUserAdded, User: &user, Pool: change.Pool})
	return change, nil
}

// RemoveRandomUser withdraws a uniformly chosen liquidity provider.
func (s *Simulator) RemoveRandomUser(ctx context.Context) (MembershipChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.pool.RemoveUser()
	if err != nil {
		return MembershipChange{}, fmt.Errorf("simulator: remove user: %w", err)
	}
	change := MembershipChange{User: user, Pool: s.pool.Snapshot()}
	s.bus.Publish(ctx, domain.PoolUpdated{Action: domain.PoolActionUserRemoved, User: &user, Pool: change.Pool})
	return change, nil
}

// GetCurrentPrice returns the reference market price.
func (s *Simulator) GetCurrentPrice() domain.MarketPrice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oracle.CurrentPrice()
}

// SimulatePriceChange steps the market, pushes the new volatility into the
// pool fee model and publishes the change.
func (s *Simulator) SimulatePriceChange(ctx context.Context) domain.PriceChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := s.oracle.SimulatePriceChange()
	s.syncVolatility()
	s.bus.Publish(ctx, ev)
	return ev
}

// SetMarketPrice moves the market to an explicit price.
func (s *Simulator) SetMarketPrice(ctx context.Context, eth, btc float64) (domain.PriceChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.oracle.SetPrice(eth, btc)
	if err != nil {
		return domain.PriceChangeEvent{}, fmt.Errorf("simulator: set price: %w", err)
	}
	s.syncVolatility()
	s.bus.Publish(ctx, ev)
	return ev, nil
}

// PriceHistory returns up to limit recent market moves, oldest first.
func (s *Simulator) PriceHistory(limit int) []domain.PriceChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oracle.History(limit)
}

// GetMarketStatus reports the market together with any current divergence.
// Detection here is read-only and publishes nothing.
func (s *Simulator) GetMarketStatus() domain.MarketStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	price := s.oracle.CurrentPrice()
	status := domain.MarketStatus{
		CurrentPrice: price,
		Volatility:   s.oracle.Volatility(),
		LastUpdate:   price.Timestamp,
	}
	if s.pool.Initialized() {
		snap := s.pool.Snapshot()
		status.ArbitrageOpportunity = s.monitor.Detect(snap.EthReserve, snap.BtcReserve)
	}
	return status
}

// CheckAndEmitArbitrageOpportunity checks the given reserves against the
// market and publishes any opportunity found. It returns nil otherwise.
func (s *Simulator) CheckAndEmitArbitrageOpportunity(ctx context.Context, poolEth, poolBtc float64) *domain.ArbitrageOpportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitor.CheckAndEmitArbitrageOpportunity(ctx, poolEth, poolBtc)
}

// ExecuteTrade swaps ratio of the from reserve into to.
func (s *Simulator) ExecuteTrade(ctx context.Context, from, to domain.Asset, ratio float64) (domain.TradeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trades.ExecuteTrade(ctx, from, to, ratio)
}

// ExecuteRandomTrade executes a trade of random direction and size.
func (s *Simulator) ExecuteRandomTrade(ctx context.Context) (domain.TradeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trades.ExecuteRandomTrade(ctx)
}

// ExecuteArbitrageTradeManually executes the corrective trade for a caller
// supplied opportunity.
func (s *Simulator) ExecuteArbitrageTradeManually(ctx context.Context, opp domain.ArbitrageOpportunity) (domain.TradeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trades.ExecuteArbitrageTrade(ctx, opp)
}

// CheckAndExecuteArbitrage detects and, if warranted, corrects divergence.
func (s *Simulator) CheckAndExecuteArbitrage(ctx context.Context) (domain.ArbitrageCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitor.CheckAndExecuteArbitrage(ctx)
}

// RecentOpportunities returns up to limit detected opportunities, newest first.
func (s *Simulator) RecentOpportunities(limit int) []domain.ArbitrageOpportunity {
	return s.monitor.Recent(limit)
}

// Status returns counters for health reporting.
func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Initialized:       s.pool.Initialized(),
		MarketRate:        swap.Round(s.oracle.MarketRate(), swap.AmountPlaces),
		ArbitrageExecuted: s.monitor.Executed(),
		PublishedByTopic:  s.bus.Published(),
	}
	if st.Initialized {
		snap := s.pool.Snapshot()
		st.Users = len(snap.Users)
		st.TradeCount = snap.TradeCount
		st.PoolPrice = swap.Round(snap.Price(), swap.AmountPlaces)
	}
	return st
}

// syncVolatility copies the market's volatility into the pool and refreshes
// its fee rate. Caller holds s.mu.
func (s *Simulator) syncVolatility() {
	if !s.pool.Initialized() {
		return
	}
	s.pool.UpdateVolatility(s.oracle.Volatility(), s.oracle.CurrentPrice().Timestamp)
	s.pool.RefreshFeeRate()
}
