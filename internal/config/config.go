// Package config defines the top-level configuration for the AMM simulator
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by AMMSIM_* environment variables.
type Config struct {
	Pool       PoolConfig       `toml:"pool"`
	Fee        FeeConfig        `toml:"fee"`
	Market     MarketConfig     `toml:"market"`
	Arbitrage  ArbitrageConfig  `toml:"arbitrage"`
	Simulation SimulationConfig `toml:"simulation"`
	Redis      RedisConfig      `toml:"redis"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PoolConfig holds seed liquidity and LP membership bounds.
type PoolConfig struct {
	AutoInit             bool    `toml:"auto_init"`
	InitialEth           float64 `toml:"initial_eth"`
	InitialBtc           float64 `toml:"initial_btc"`
	InitialUsers         int     `toml:"initial_users"`
	MaxUsers             int     `toml:"max_users"`
	MinUsers             int     `toml:"min_users"`
	MaxAddFraction       float64 `toml:"max_add_fraction"`
	GovernanceRewardRate float64 `toml:"governance_reward_rate"`
}

// FeeConfig holds the dynamic fee model parameters.
type FeeConfig struct {
	BaseRate              float64 `toml:"base_rate"`
	MinRate               float64 `toml:"min_rate"`
	MaxRate               float64 `toml:"max_rate"`
	SizeSensitivity       float64 `toml:"size_sensitivity"`
	VolatilitySensitivity float64 `toml:"volatility_sensitivity"`
}

// MarketConfig holds the reference market random walk parameters.
type MarketConfig struct {
	InitialEth      float64 `toml:"initial_eth"`
	InitialBtc      float64 `toml:"initial_btc"`
	MaxChangePct    float64 `toml:"max_change_pct"`
	VolatilityAlpha float64 `toml:"volatility_alpha"`
	HistorySize     int     `toml:"history_size"`
}

// ArbitrageConfig holds divergence detection parameters.
type ArbitrageConfig struct {
	ThresholdPct float64 `toml:"threshold_pct"`
	AutoDetect   bool    `toml:"auto_detect"`
	AutoExecute  bool    `toml:"auto_execute"`
	RecentSize   int     `toml:"recent_size"`
}

// SimulationConfig drives the background loop.
type SimulationConfig struct {
	TickInterval     duration `toml:"tick_interval"`
	RandomTrades     bool     `toml:"random_trades"`
	ChurnProbability float64  `toml:"churn_probability"`
	Seed             uint64   `toml:"seed"` // 0 seeds from the clock
}

// RedisConfig holds Redis connection parameters and mirror keys.
type RedisConfig struct {
	Enabled       bool     `toml:"enabled"`
	Addr          string   `toml:"addr"`
	Password      string   `toml:"password"`
	DB            int      `toml:"db"`
	PoolSize      int      `toml:"pool_size"`
	MaxRetries    int      `toml:"max_retries"`
	TLSEnabled    bool     `toml:"tls_enabled"`
	ChannelPrefix string   `toml:"channel_prefix"`
	Stream        string   `toml:"stream"`
	StreamMaxLen  int64    `toml:"stream_max_len"`
	Timeout       duration `toml:"timeout"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled        bool     `toml:"enabled"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	RateLimitRPS   float64  `toml:"rate_limit_rps"`
	RateLimitBurst int      `toml:"rate_limit_burst"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	DiscordUsername   string   `toml:"discord_username"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with sensible default values.
func Defaults() Config {
	return Config{
		Pool: PoolConfig{
			AutoInit:             true,
			InitialEth:           1000,
			InitialBtc:           30000,
			InitialUsers:         10,
			MaxUsers:             30,
			MinUsers:             10,
			MaxAddFraction:       0.1,
			GovernanceRewardRate: 1,
		},
		Fee: FeeConfig{
			BaseRate:              0.003,
			MinRate:               0.0005,
			MaxRate:               0.01,
			SizeSensitivity:       0.5,
			VolatilitySensitivity: 20,
		},
		Market: MarketConfig{
			InitialEth:      2000,
			InitialBtc:      60000,
			MaxChangePct:    5,
			VolatilityAlpha: 0.3,
			HistorySize:     100,
		},
		Arbitrage: ArbitrageConfig{
			ThresholdPct: 5,
			AutoDetect:   true,
			AutoExecute:  true,
			RecentSize:   50,
		},
		Simulation: SimulationConfig{
			TickInterval:     duration{5 * time.Second},
			RandomTrades:     true,
			ChurnProbability: 0.1,
		},
		Redis: RedisConfig{
			Enabled:       false,
			Addr:          "localhost:6379",
			PoolSize:      10,
			MaxRetries:    3,
			ChannelPrefix: "ammsim:",
			Stream:        "ammsim:events",
			StreamMaxLen:  10000,
			Timeout:       duration{2 * time.Second},
		},
		Server: ServerConfig{
			Enabled:        true,
			Port:           8000,
			CORSOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Notify: NotifyConfig{
			DiscordUsername: "ammsim",
			Events:          []string{"arbitrage_opportunity", "pool_updated"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":   true,
	"simulate": true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validEvents enumerates the event types notifications can subscribe to.
var validEvents = map[string]bool{
	"trade_executed":        true,
	"arbitrage_opportunity": true,
	"price_changed":         true,
	"pool_updated":          true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := normalize(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, simulate, full)", c.Mode))
	}
	if !validLogLevels[normalize(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Pool
	if !(c.Pool.InitialEth > 0) || !(c.Pool.InitialBtc > 0) {
		errs = append(errs, "pool: initial_eth and initial_btc must be > 0")
	}
	if c.Pool.MinUsers < 1 {
		errs = append(errs, "pool: min_users must be >= 1")
	}
	if c.Pool.MaxUsers < c.Pool.MinUsers {
		errs = append(errs, "pool: max_users must be >= min_users")
	}
	if c.Pool.InitialUsers < 1 || c.Pool.InitialUsers > c.Pool.MaxUsers {
		errs = append(errs, fmt.Sprintf("pool: initial_users must be 1-%d, got %d", c.Pool.MaxUsers, c.Pool.InitialUsers))
	}
	if c.Pool.MaxAddFraction <= 0 || c.Pool.MaxAddFraction > 1 {
		errs = append(errs, "pool: max_add_fraction must be in (0, 1]")
	}
	if c.Pool.GovernanceRewardRate < 0 {
		errs = append(errs, "pool: governance_reward_rate must be >= 0")
	}

	// Fee
	if c.Fee.MinRate < 0 || c.Fee.MaxRate >= 1 || c.Fee.MinRate > c.Fee.MaxRate {
		errs = append(errs, "fee: require 0 <= min_rate <= max_rate < 1")
	}
	if c.Fee.BaseRate < c.Fee.MinRate || c.Fee.BaseRate > c.Fee.MaxRate {
		errs = append(errs, "fee: base_rate must lie within [min_rate, max_rate]")
	}
	if c.Fee.SizeSensitivity < 0 || c.Fee.VolatilitySensitivity < 0 {
		errs = append(errs, "fee: sensitivities must be >= 0")
	}

	// Market
	if !(c.Market.InitialEth > 0) || !(c.Market.InitialBtc > 0) {
		errs = append(errs, "market: initial_eth and initial_btc must be > 0")
	}
	if c.Market.MaxChangePct < 0 || c.Market.MaxChangePct >= 100 {
		errs = append(errs, "market: max_change_pct must be in [0, 100)")
	}
	if c.Market.VolatilityAlpha <= 0 || c.Market.VolatilityAlpha > 1 {
		errs = append(errs, "market: volatility_alpha must be in (0, 1]")
	}

	// Arbitrage
	if c.Arbitrage.ThresholdPct <= 0 {
		errs = append(errs, "arbitrage: threshold_pct must be > 0")
	}

	// Simulation
	if mode == "simulate" || mode == "full" {
		if c.Simulation.TickInterval.Duration <= 0 {
			errs = append(errs, "simulation: tick_interval must be > 0")
		}
	}
	if c.Simulation.ChurnProbability < 0 || c.Simulation.ChurnProbability > 1 {
		errs = append(errs, "simulation: churn_probability must be in [0, 1]")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.ChannelPrefix == "" {
			errs = append(errs, "redis: channel_prefix must not be empty")
		}
	}

	// Server
	if c.Server.Enabled || mode == "server" || mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitRPS < 0 {
			errs = append(errs, "server: rate_limit_rps must be >= 0")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	for _, e := range c.Notify.Events {
		if !validEvents[e] {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q", e))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// normalize folds a mode or level name to the form the lookups use.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
