package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies AMMSIM_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	cfg.Mode = normalize(cfg.Mode)
	cfg.LogLevel = normalize(cfg.LogLevel)

	return &cfg, nil
}

// applyEnvOverrides reads well-known AMMSIM_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty).
func applyEnvOverrides(cfg *Config) {
	// ── Pool ──
	setBool(&cfg.Pool.AutoInit, "AMMSIM_POOL_AUTO_INIT")
	setFloat64(&cfg.Pool.InitialEth, "AMMSIM_POOL_INITIAL_ETH")
	setFloat64(&cfg.Pool.InitialBtc, "AMMSIM_POOL_INITIAL_BTC")
	setInt(&cfg.Pool.InitialUsers, "AMMSIM_POOL_INITIAL_USERS")
	setInt(&cfg.Pool.MaxUsers, "AMMSIM_POOL_MAX_USERS")
	setInt(&cfg.Pool.MinUsers, "AMMSIM_POOL_MIN_USERS")
	setFloat64(&cfg.Pool.MaxAddFraction, "AMMSIM_POOL_MAX_ADD_FRACTION")
	setFloat64(&cfg.Pool.GovernanceRewardRate, "AMMSIM_POOL_GOVERNANCE_REWARD_RATE")

	// ── Fee ──
	setFloat64(&cfg.Fee.BaseRate, "AMMSIM_FEE_BASE_RATE")
	setFloat64(&cfg.Fee.MinRate, "AMMSIM_FEE_MIN_RATE")
	setFloat64(&cfg.Fee.MaxRate, "AMMSIM_FEE_MAX_RATE")
	setFloat64(&cfg.Fee.SizeSensitivity, "AMMSIM_FEE_SIZE_SENSITIVITY")
	setFloat64(&cfg.Fee.VolatilitySensitivity, "AMMSIM_FEE_VOLATILITY_SENSITIVITY")

	// ── Market ──
	setFloat64(&cfg.Market.InitialEth, "AMMSIM_MARKET_INITIAL_ETH")
	setFloat64(&cfg.Market.InitialBtc, "AMMSIM_MARKET_INITIAL_BTC")
	setFloat64(&cfg.Market.MaxChangePct, "AMMSIM_MARKET_MAX_CHANGE_PCT")
	setFloat64(&cfg.Market.VolatilityAlpha, "AMMSIM_MARKET_VOLATILITY_ALPHA")
	setInt(&cfg.Market.HistorySize, "AMMSIM_MARKET_HISTORY_SIZE")

	// ── Arbitrage ──
	setFloat64(&cfg.Arbitrage.ThresholdPct, "AMMSIM_ARBITRAGE_THRESHOLD_PCT")
	setBool(&cfg.Arbitrage.AutoDetect, "AMMSIM_ARBITRAGE_AUTO_DETECT")
	setBool(&cfg.Arbitrage.AutoExecute, "AMMSIM_ARBITRAGE_AUTO_EXECUTE")
	setInt(&cfg.Arbitrage.RecentSize, "AMMSIM_ARBITRAGE_RECENT_SIZE")

	// ── Simulation ──
	setDuration(&cfg.Simulation.TickInterval, "AMMSIM_SIMULATION_TICK_INTERVAL")
	setBool(&cfg.Simulation.RandomTrades, "AMMSIM_SIMULATION_RANDOM_TRADES")
	setFloat64(&cfg.Simulation.ChurnProbability, "AMMSIM_SIMULATION_CHURN_PROBABILITY")
	setUint64(&cfg.Simulation.Seed, "AMMSIM_SIMULATION_SEED")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "AMMSIM_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "AMMSIM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AMMSIM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AMMSIM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AMMSIM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AMMSIM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AMMSIM_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.ChannelPrefix, "AMMSIM_REDIS_CHANNEL_PREFIX")
	setStr(&cfg.Redis.Stream, "AMMSIM_REDIS_STREAM")
	setInt64(&cfg.Redis.StreamMaxLen, "AMMSIM_REDIS_STREAM_MAX_LEN")
	setDuration(&cfg.Redis.Timeout, "AMMSIM_REDIS_TIMEOUT")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "AMMSIM_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "AMMSIM_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AMMSIM_SERVER_CORS_ORIGINS")
	setFloat64(&cfg.Server.RateLimitRPS, "AMMSIM_SERVER_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateLimitBurst, "AMMSIM_SERVER_RATE_LIMIT_BURST")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AMMSIM_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AMMSIM_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AMMSIM_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.DiscordUsername, "AMMSIM_NOTIFY_DISCORD_USERNAME")
	setStringSlice(&cfg.Notify.Events, "AMMSIM_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AMMSIM_MODE")
	setStr(&cfg.LogLevel, "AMMSIM_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
