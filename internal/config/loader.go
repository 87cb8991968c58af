package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PRINTER_* environment variable overrides, and
// returns the final Config. An empty path skips the file and uses defaults
// plus environment only. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env if present (silently ignore when missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PRINTER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setDuration(&cfg.Engine.Tick, "PRINTER_ENGINE_TICK")
	setDuration(&cfg.Engine.EvictGrace, "PRINTER_ENGINE_EVICT_GRACE")
	setDuration(&cfg.Engine.EvictInterval, "PRINTER_ENGINE_EVICT_INTERVAL")

	// ── Analyzer ──
	setBool(&cfg.Analyzer.Enabled, "PRINTER_ANALYZER_ENABLED")
	setFloat64(&cfg.Analyzer.MaxSpread, "PRINTER_ANALYZER_MAX_SPREAD")

	// ── Breakout ──
	setBool(&cfg.Breakout.Enabled, "PRINTER_BREAKOUT_ENABLED")
	setFloat64(&cfg.Breakout.Quantity, "PRINTER_BREAKOUT_QUANTITY")
	setDuration(&cfg.Breakout.Lookback, "PRINTER_BREAKOUT_LOOKBACK")
	setFloat64(&cfg.Breakout.JumpRatio, "PRINTER_BREAKOUT_JUMP_RATIO")
	setFloat64(&cfg.Breakout.FallRatio, "PRINTER_BREAKOUT_FALL_RATIO")
	setFloat64(&cfg.Breakout.MaxSpread, "PRINTER_BREAKOUT_MAX_SPREAD")
	setFloat64(&cfg.Breakout.TakeProfitRatio, "PRINTER_BREAKOUT_TAKE_PROFIT_RATIO")
	setFloat64(&cfg.Breakout.StopLossRatio, "PRINTER_BREAKOUT_STOP_LOSS_RATIO")
	setFloat64(&cfg.Breakout.ExitOffsetRatio, "PRINTER_BREAKOUT_EXIT_OFFSET_RATIO")
	setBool(&cfg.Breakout.ConfirmWithMomentum, "PRINTER_BREAKOUT_CONFIRM_WITH_MOMENTUM")
	setInt(&cfg.Breakout.EntryTimeoutTicks, "PRINTER_BREAKOUT_ENTRY_TIMEOUT_TICKS")
	setInt(&cfg.Breakout.ExitTimeoutTicks, "PRINTER_BREAKOUT_EXIT_TIMEOUT_TICKS")

	// ── Feed ──
	setFloat64(&cfg.Feed.StartPrice, "PRINTER_FEED_START_PRICE")
	setFloat64(&cfg.Feed.SpreadBps, "PRINTER_FEED_SPREAD_BPS")
	setFloat64(&cfg.Feed.VolPerTick, "PRINTER_FEED_VOL_PER_TICK")
	setDuration(&cfg.Feed.Interval, "PRINTER_FEED_INTERVAL")
	setInt64(&cfg.Feed.Seed, "PRINTER_FEED_SEED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "PRINTER_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "PRINTER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PRINTER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PRINTER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PRINTER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PRINTER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PRINTER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PRINTER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PRINTER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PRINTER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PRINTER_POSTGRES_RUN_MIGRATIONS")
	setInt(&cfg.Postgres.JournalBuffer, "PRINTER_POSTGRES_JOURNAL_BUFFER")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PRINTER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PRINTER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PRINTER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PRINTER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PRINTER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PRINTER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PRINTER_REDIS_TLS_ENABLED")

	// ── Top-level ──
	setStr(&cfg.Mode, "PRINTER_MODE")
	setStr(&cfg.LogLevel, "PRINTER_LOG_LEVEL")
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
