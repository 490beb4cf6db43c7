// Package pool owns the constant-product liquidity pool: reserves, the
// invariant k, the dynamic fee schedule and the LP share ledger.
package pool

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/ammsim/internal/domain"
)

// ShareTolerance bounds how far the sum of LP shares may drift from 1.
const ShareTolerance = 1e-9

// kTolerance is the relative drift of k accepted when committing a swap.
const kTolerance = 1e-9

// Config holds LP membership bounds and reward parameters.
type Config struct {
	MaxUsers             int
	MinUsers             int
	MaxAddFraction       float64 // cap of a single admission relative to reserves
	GovernanceRewardRate float64 // governance tokens per unit of fee, before share weighting
	Fee                  FeeConfig
}

// DefaultConfig returns the membership bounds and fee model used by default.
func DefaultConfig() Config {
	return Config{
		MaxUsers:             30,
		MinUsers:             10,
		MaxAddFraction:       0.1,
		GovernanceRewardRate: 1,
		Fee:                  DefaultFeeConfig(),
	}
}

// Pool is the mutable liquidity pool. Methods are safe for concurrent use,
// but a quote followed by ApplySwap is not atomic; callers serialize trades.
type Pool struct {
	cfg         Config
	rnd         domain.Rand
	now         func() time.Time
	logger      *slog.Logger
	mu          sync.RWMutex
	state       domain.Pool
	initialized bool
}

// New creates an uninitialized pool.
func New(cfg Config, rnd domain.Rand, logger *slog.Logger) *Pool {
	return &Pool{
		cfg:    cfg,
		rnd:    rnd,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "pool")),
	}
}

// Initialize seeds the pool with totalEth/totalBtc split across userCount
// synthetic providers using random proportional weights.
func (p *Pool) Initialize(totalEth, totalBtc float64, userCount int) (domain.Pool, error) {
	if userCount < 1 {
		return domain.Pool{}, fmt.Errorf("pool: initialize: %w: user count %d must be >= 1", domain.ErrInvalidConfiguration, userCount)
	}
	if !(totalEth > 0) || !(totalBtc > 0) {
		return domain.Pool{}, fmt.Errorf("pool: initialize: %w: reserves must be positive (eth=%v btc=%v)", domain.ErrInvalidConfiguration, totalEth, totalBtc)
	}
	if userCount > p.cfg.MaxUsers {
		return domain.Pool{}, fmt.Errorf("pool: initialize: %w: user count %d exceeds max %d", domain.ErrInvalidConfiguration, userCount, p.cfg.MaxUsers)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	weights := make([]float64, userCount)
	var sum float64
	for i := range weights {
		weights[i] = 0.5 + p.rnd.Float64()
		sum += weights[i]
	}

	now := p.now()
	users := make([]domain.LPUser, userCount)
	for i, w := range weights {
		share := w / sum
		users[i] = domain.LPUser{
			ID:         uuid.NewString(),
			EthDeposit: totalEth * share,
			BtcDeposit: totalBtc * share,
			Share:      share,
			JoinedAt:   now,
		}
	}

	value := poolValue(totalEth, totalBtc)
	p.state = domain.Pool{
		EthReserve:       totalEth,
		BtcReserve:       totalBtc,
		K:                totalEth * totalBtc,
		Users:            users,
		InitialPoolValue: value,
		CurrentPoolValue: value,
		PoolSizeRatio:    1,
		UpdatedAt:        now,
	}
	normalizeShares(p.state.Users)
	p.state.FeeRate = FeeRate(p.cfg.Fee, 1, 0)
	p.initialized = true

	p.logger.Info("pool initialized",
		slog.Float64("eth_reserve", totalEth),
		slog.Float64("btc_reserve", totalBtc),
		slog.Int("users", userCount),
		slog.Float64("k", p.state.K),
	)
	return p.state.Clone(), nil
}

// AddUser admits one synthetic provider whose deposit is proportional to the
// current average holding. The BTC side is deposited at the pool's own rate
// so admission never moves the pool price.
func (p *Pool) AddUser() (domain.LPUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return domain.LPUser{}, fmt.Errorf("pool: add user: %w", domain.ErrNotInitialized)
	}
	n := len(p.state.Users)
	if n >= p.cfg.MaxUsers {
		return domain.LPUser{}, fmt.Errorf("pool: add user: %w: %d of %d", domain.ErrCapacityExceeded, n, p.cfg.MaxUsers)
	}

	eth, btc := p.state.EthReserve, p.state.BtcReserve
	ethDeposit := eth / float64(n) * (0.5 + p.rnd.Float64())
	if limit := eth * p.cfg.MaxAddFraction; ethDeposit > limit {
		ethDeposit = limit
	}
	btcDeposit := ethDeposit * btc / eth

	newEth, newBtc := eth+ethDeposit, btc+btcDeposit
	scale := eth / newEth
	for i := range p.state.Users {
		p.state.Users[i].Share *= scale
	}

	user := domain.LPUser{
		ID:         uuid.NewString(),
		EthDeposit: ethDeposit,
		BtcDeposit: btcDeposit,
		Share:      ethDeposit / newEth,
		JoinedAt:   p.now(),
	}
	p.state.Users = append(p.state.Users, user)
	normalizeShares(p.state.Users)

	p.setReserves(newEth, newBtc)
	p.state.K = newEth * newBtc

	p.logger.Debug("lp user added",
		slog.String("user_id", user.ID),
		slog.Float64("eth_deposit", ethDeposit),
		slog.Float64("btc_deposit", btcDeposit),
		slog.Int("users", len(p.state.Users)),
	)
	return p.state.Users[len(p.state.Users)-1], nil
}

// RemoveUser withdraws a uniformly chosen provider. Their share of both
// reserves leaves the pool and the remaining shares are renormalized.
func (p *Pool) RemoveUser() (domain.LPUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return domain.LPUser{}, fmt.Errorf("pool: remove user: %w", domain.ErrNotInitialized)
	}
	n := len(p.state.Users)
	if n <= p.cfg.MinUsers || n < 2 {
		return domain.LPUser{}, fmt.Errorf("pool: remove user: %w: %d of %d", domain.ErrBelowMinimum, n, p.cfg.MinUsers)
	}

	idx := p.rnd.IntN(n)
	removed := p.state.Users[idx]
	remaining := 1 - removed.Share

	newEth := p.state.EthReserve * remaining
	newBtc := p.state.BtcReserve * remaining

	users := make([]domain.LPUser, 0, n-1)
	users = append(users, p.state.Users[:idx]...)
	users = append(users, p.state.Users[idx+1:]...)
	for i := range users {
		users[i].Share /= remaining
	}
	normalizeShares(users)
	p.state.Users = users

	p.setReserves(newEth, newBtc)
	p.state.K = newEth * newBtc

	p.logger.Debug("lp user removed",
		slog.String("user_id", removed.ID),
		slog.Float64("share", removed.Share),
		slog.Int("users", len(users)),
	)
	return removed, nil
}

// RefreshFeeRate recomputes the fee rate from the current pool size ratio and
// overall volatility and returns it.
func (p *Pool) RefreshFeeRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.FeeRate = FeeRate(p.cfg.Fee, p.state.PoolSizeRatio, p.state.Volatility.Overall)
	return p.state.FeeRate
}

// CalculateFee returns the fee owed on amountIn at the current fee rate. It
// does not store the rate; ApplySwap does when the trade commits.
func (p *Pool) CalculateFee(amountIn float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return amountIn * FeeRate(p.cfg.Fee, p.state.PoolSizeRatio, p.state.Volatility.Overall)
}

// ApplySwap commits reserves proposed by the swap engine. k is kept exactly;
// the skimmed fee is credited to providers pro rata by share together with
// governance tokens.
func (p *Pool) ApplySwap(res domain.SwapResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return fmt.Errorf("pool: apply swap: %w", domain.ErrNotInitialized)
	}
	if !(res.NewEthReserve > 0) || !(res.NewBtcReserve > 0) {
		return fmt.Errorf("pool: apply swap: %w: non-positive reserve", domain.ErrInsufficientLiquidity)
	}
	k := p.state.K
	if drift := math.Abs(res.NewEthReserve*res.NewBtcReserve-k) / k; drift > kTolerance {
		return fmt.Errorf("pool: apply swap: %w: invariant drift %.3g", domain.ErrInvalidTrade, drift)
	}
	if res.Fee < 0 {
		return fmt.Errorf("pool: apply swap: %w: negative fee", domain.ErrInvalidTrade)
	}

	// the rate the fee was charged at, taken before reserves move
	p.state.FeeRate = FeeRate(p.cfg.Fee, p.state.PoolSizeRatio, p.state.Volatility.Overall)
	p.setReserves(res.NewEthReserve, res.NewBtcReserve)

	for i := range p.state.Users {
		u := &p.state.Users[i]
		cut := u.Share * res.Fee
		if res.From == domain.AssetETH {
			u.EarnedEth += cut
		} else {
			u.EarnedBtc += cut
		}
		u.GovernanceTokens += cut * p.cfg.GovernanceRewardRate
	}
	if res.From == domain.AssetETH {
		p.state.TotalFeesEth += res.Fee
	} else {
		p.state.TotalFeesBtc += res.Fee
	}
	p.state.TradeCount++
	return nil
}

// UpdateVolatility pushes the reference market's volatility into the pool.
func (p *Pool) UpdateVolatility(v domain.Volatility, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Volatility = v
	p.state.LastVolatilityUpdate = at
}

// Snapshot returns a deep copy of the current state.
func (p *Pool) Snapshot() domain.Pool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Clone()
}

// Initialized reports whether Initialize has succeeded at least once.
func (p *Pool) Initialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialized
}

// setReserves updates reserves and the value tracking derived from them.
// Caller holds p.mu.
func (p *Pool) setReserves(eth, btc float64) {
	p.state.EthReserve = eth
	p.state.BtcReserve = btc
	p.state.CurrentPoolValue = poolValue(eth, btc)
	if p.state.InitialPoolValue > 0 {
		p.state.PoolSizeRatio = p.state.CurrentPoolValue / p.state.InitialPoolValue
	}
	p.state.UpdatedAt = p.now()
}

// poolValue values both reserves in BTC at the pool's own rate.
func poolValue(eth, btc float64) float64 {
	if eth <= 0 {
		return btc
	}
	return eth*(btc/eth) + btc
}

// normalizeShares rescales shares so they sum to exactly 1 up to rounding.
func normalizeShares(users []domain.LPUser) {
	var sum float64
	for _, u := range users {
		sum += u.Share
	}
	if sum <= 0 {
		return
	}
	for i := range users {
		users[i].Share /= sum
	}
}

// ShareSum returns the sum of shares in a snapshot.
func ShareSum(p domain.Pool) float64 {
	var sum float64
	for _, u := range p.Users {
		sum += u.Share
	}
	return sum
}
