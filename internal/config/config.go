// Package config defines the top-level configuration for the trading engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PRINTER_* environment
// variables.
type Config struct {
	Engine      EngineConfig       `toml:"engine"`
	Instruments []InstrumentConfig `toml:"instruments"`
	Analyzer    AnalyzerConfig     `toml:"analyzer"`
	Breakout    BreakoutConfig     `toml:"breakout"`
	Feed        FeedConfig         `toml:"feed"`
	Postgres    PostgresConfig     `toml:"postgres"`
	Redis       RedisConfig        `toml:"redis"`
	Mode        string             `toml:"mode"`
	LogLevel    string             `toml:"log_level"`
}

// EngineConfig holds the tick loop and ledger housekeeping parameters.
type EngineConfig struct {
	Tick duration `toml:"tick"`
	// EvictGrace is how long terminal orders stay in the ledger before the
	// periodic sweep removes them.
	EvictGrace duration `toml:"evict_grace"`
	// EvictInterval is how often the sweep runs.
	EvictInterval duration `toml:"evict_interval"`
}

// InstrumentConfig declares one tradable instrument.
type InstrumentConfig struct {
	ID     string `toml:"id"`
	Symbol string `toml:"symbol"`
	Venue  string `toml:"venue"`
	Class  string `toml:"class"`
}

// CurveFitOrderConfig maps a minimum quote count to a polynomial order.
type CurveFitOrderConfig struct {
	MinNumQuotes int `toml:"min_num_quotes"`
	Order        int `toml:"order"`
}

// ResolutionConfig is one analyzer time window with its order table.
type ResolutionConfig struct {
	TimeWindow     duration              `toml:"time_window"`
	CurveFitOrders []CurveFitOrderConfig `toml:"curve_fit_orders"`
}

// AnalyzerConfig parameterizes the momentum analyzer. The same resolutions
// apply to every configured instrument.
type AnalyzerConfig struct {
	Enabled     bool               `toml:"enabled"`
	MaxSpread   float64            `toml:"max_spread"`
	Resolutions []ResolutionConfig `toml:"resolutions"`
}

// BreakoutConfig parameterizes the breakout strategy for each instrument it
// runs on.
type BreakoutConfig struct {
	Enabled             bool     `toml:"enabled"`
	Instruments         []string `toml:"instruments"`
	Quantity            float64  `toml:"quantity"`
	Lookback            duration `toml:"lookback"`
	JumpRatio           float64  `toml:"jump_ratio"`
	FallRatio           float64  `toml:"fall_ratio"`
	MaxSpread           float64  `toml:"max_spread"`
	TakeProfitRatio     float64  `toml:"take_profit_ratio"`
	StopLossRatio       float64  `toml:"stop_loss_ratio"`
	ExitOffsetRatio     float64  `toml:"exit_offset_ratio"`
	ConfirmWithMomentum bool     `toml:"confirm_with_momentum"`
	EntryTimeoutTicks   int      `toml:"entry_timeout_ticks"`
	ExitTimeoutTicks    int      `toml:"exit_timeout_ticks"`
}

// FeedConfig parameterizes the synthetic paper feed.
type FeedConfig struct {
	StartPrice   float64  `toml:"start_price"`
	SpreadBps    float64  `toml:"spread_bps"`
	DriftPerTick float64  `toml:"drift_per_tick"`
	VolPerTick   float64  `toml:"vol_per_tick"`
	Interval     duration `toml:"interval"`
	BarEvery     int      `toml:"bar_every"`
	Seed         int64    `toml:"seed"`
}

// PostgresConfig holds PostgreSQL connection parameters for the order
// journal. Disabled means the engine runs without persistence.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
	JournalBuffer int    `toml:"journal_buffer"`
}

// RedisConfig holds Redis connection parameters for the quote cache and
// signal bus. Disabled means nothing is mirrored out of the process.
type RedisConfig struct {
	Enabled        bool   `toml:"enabled"`
	Addr           string `toml:"addr"`
	Password       string `toml:"password"`
	DB             int    `toml:"db"`
	PoolSize       int    `toml:"pool_size"`
	MaxRetries     int    `toml:"max_retries"`
	TLSEnabled     bool   `toml:"tls_enabled"`
	QuoteBuffer    int    `toml:"quote_buffer"`
	AnalysisBuffer int    `toml:"analysis_buffer"`
}

// duration wraps time.Duration so TOML files can say "250ms" or "1m30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse Go duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

var validModes = map[string]bool{
	"paper": true,
	"live":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Defaults returns the built-in configuration: a single paper-traded BTC/USD
// instrument with the analyzer and breakout strategy enabled.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			Tick:          duration{250 * time.Millisecond},
			EvictGrace:    duration{10 * time.Minute},
			EvictInterval: duration{time.Minute},
		},
		Instruments: []InstrumentConfig{
			{ID: "btc-usd", Symbol: "BTC/USD", Venue: "paper", Class: "crypto"},
		},
		Analyzer: AnalyzerConfig{
			Enabled:   true,
			MaxSpread: 2.0,
			Resolutions: []ResolutionConfig{
				{
					TimeWindow: duration{10 * time.Second},
					CurveFitOrders: []CurveFitOrderConfig{
						{MinNumQuotes: 4, Order: 1},
						{MinNumQuotes: 12, Order: 2},
					},
				},
				{
					TimeWindow: duration{time.Minute},
					CurveFitOrders: []CurveFitOrderConfig{
						{MinNumQuotes: 8, Order: 1},
						{MinNumQuotes: 30, Order: 2},
						{MinNumQuotes: 90, Order: 3},
					},
				},
			},
		},
		Breakout: BreakoutConfig{
			Enabled:           true,
			Instruments:       []string{"btc-usd"},
			Quantity:          0.01,
			Lookback:          duration{10 * time.Second},
			JumpRatio:         1.004,
			FallRatio:         0.996,
			MaxSpread:         2.0,
			TakeProfitRatio:   1.01,
			StopLossRatio:     0.995,
			ExitOffsetRatio:   0.999,
			EntryTimeoutTicks: 40,
			ExitTimeoutTicks:  40,
		},
		Feed: FeedConfig{
			StartPrice:   50_000,
			SpreadBps:    2,
			DriftPerTick: 0,
			VolPerTick:   0.0004,
			Interval:     duration{100 * time.Millisecond},
			BarEvery:     50,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
			JournalBuffer: 1024,
		},
		Redis: RedisConfig{
			Enabled:        false,
			Addr:           "localhost:6379",
			PoolSize:       20,
			MaxRetries:     3,
			QuoteBuffer:    1024,
			AnalysisBuffer: 256,
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

// Validate checks cross-field consistency and collects every problem into a
// single error.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: paper, live)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Engine.Tick.Duration <= 0 {
		errs = append(errs, "engine: tick must be positive")
	}
	if c.Engine.EvictGrace.Duration <= 0 {
		errs = append(errs, "engine: evict_grace must be positive")
	}

	if len(c.Instruments) == 0 {
		errs = append(errs, "instruments: at least one instrument must be configured")
	}
	ids := make(map[string]bool, len(c.Instruments))
	for i, inst := range c.Instruments {
		if inst.ID == "" {
			errs = append(errs, fmt.Sprintf("instruments[%d]: id must not be empty", i))
			continue
		}
		if ids[inst.ID] {
			errs = append(errs, fmt.Sprintf("instruments: duplicate id %q", inst.ID))
		}
		ids[inst.ID] = true
		if inst.Venue == "" {
			errs = append(errs, fmt.Sprintf("instruments[%d]: venue must not be empty", i))
		}
	}

	if c.Analyzer.Enabled {
		if len(c.Analyzer.Resolutions) == 0 {
			errs = append(errs, "analyzer: at least one resolution is required when enabled")
		}
		for i, res := range c.Analyzer.Resolutions {
			if res.TimeWindow.Duration <= 0 {
				errs = append(errs, fmt.Sprintf("analyzer: resolutions[%d]: time_window must be positive", i))
			}
			if len(res.CurveFitOrders) == 0 {
				errs = append(errs, fmt.Sprintf("analyzer: resolutions[%d]: curve_fit_orders must not be empty", i))
			}
		}
	}

	if c.Breakout.Enabled {
		if len(c.Breakout.Instruments) == 0 {
			errs = append(errs, "breakout: instruments must not be empty when enabled")
		}
		for _, id := range c.Breakout.Instruments {
			if !ids[id] {
				errs = append(errs, fmt.Sprintf("breakout: instrument %q is not configured", id))
			}
		}
		if c.Breakout.Quantity <= 0 {
			errs = append(errs, "breakout: quantity must be positive")
		}
		if c.Breakout.JumpRatio <= 1 {
			errs = append(errs, "breakout: jump_ratio must be > 1")
		}
		if c.Breakout.FallRatio <= 0 || c.Breakout.FallRatio >= 1 {
			errs = append(errs, "breakout: fall_ratio must be in (0, 1)")
		}
	}

	if strings.ToLower(c.Mode) == "paper" && c.Feed.StartPrice <= 0 {
		errs = append(errs, "feed: start_price must be positive in paper mode")
	}

	if c.Postgres.Enabled {
		if c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "") {
			errs = append(errs, "postgres: either dsn or host/database/user must be set")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
