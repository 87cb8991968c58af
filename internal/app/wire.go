package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iannisdezwart/money-printer/internal/algo"
	"github.com/iannisdezwart/money-printer/internal/analysis"
	"github.com/iannisdezwart/money-printer/internal/cache/redis"
	"github.com/iannisdezwart/money-printer/internal/config"
	"github.com/iannisdezwart/money-printer/internal/domain"
	"github.com/iannisdezwart/money-printer/internal/marketdata"
	"github.com/iannisdezwart/money-printer/internal/orders"
	"github.com/iannisdezwart/money-printer/internal/pipeline"
	"github.com/iannisdezwart/money-printer/internal/positions"
	"github.com/iannisdezwart/money-printer/internal/store/postgres"
	"github.com/iannisdezwart/money-printer/internal/venue/paper"
)

// Dependencies bundles everything the application modes need to run. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	MarketData *marketdata.Service
	Orders     *orders.Service
	Positions  *positions.Tracker
	Latest     *analysis.Latest
	Engine     *algo.Engine

	// Paper-mode pieces; nil/empty in live mode.
	PaperAdapter *paper.Adapter
	Feeds        []*paper.Feed

	// Optional workers; nil when the backing service is disabled.
	Journal           *postgres.OrderJournal
	PricePublisher    *pipeline.PricePublisher
	AnalysisPublisher *pipeline.AnalysisPublisher
}

// engineView is the read-only market state handed to strategies: the
// market-data service plus the latest analyzer output.
type engineView struct {
	*marketdata.Service
	latest *analysis.Latest
}

func (v engineView) Analysis(instrumentID string) (domain.MomentumAnalysis, bool) {
	return v.latest.Get(instrumentID)
}

// bufferHorizon picks a retention window that covers the widest consumer of
// quote history with headroom.
func bufferHorizon(cfg *config.Config) time.Duration {
	horizon := cfg.Breakout.Lookback.Duration
	for _, res := range cfg.Analyzer.Resolutions {
		if res.TimeWindow.Duration > horizon {
			horizon = res.TimeWindow.Duration
		}
	}
	if horizon <= 0 {
		horizon = time.Minute
	}
	return 2 * horizon
}

func domainInstruments(cfg *config.Config) []domain.Instrument {
	out := make([]domain.Instrument, 0, len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		out = append(out, domain.Instrument{
			ID:     inst.ID,
			Symbol: inst.Symbol,
			Venue:  domain.Venue(inst.Venue),
			Class:  domain.AssetClass(inst.Class),
		})
	}
	return out
}

func analyzerConfig(cfg *config.Config, instrumentID string) analysis.Config {
	resolutions := make([]analysis.Resolution, 0, len(cfg.Analyzer.Resolutions))
	for _, res := range cfg.Analyzer.Resolutions {
		table := make([]analysis.CurveFitOrder, 0, len(res.CurveFitOrders))
		for _, entry := range res.CurveFitOrders {
			table = append(table, analysis.CurveFitOrder{
				MinNumQuotes: entry.MinNumQuotes,
				Order:        entry.Order,
			})
		}
		resolutions = append(resolutions, analysis.Resolution{
			TimeWindow:     res.TimeWindow.Duration,
			CurveFitOrders: table,
		})
	}
	return analysis.Config{
		InstrumentID: instrumentID,
		Resolutions:  resolutions,
		MaxSpread:    decimal.NewFromFloat(cfg.Analyzer.MaxSpread),
	}
}

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function to call on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	buffer := marketdata.NewBuffer(bufferHorizon(cfg))
	md := marketdata.NewService(buffer, logger)
	latest := analysis.NewLatest()

	instruments := domainInstruments(cfg)
	orderSvc := orders.NewService(orders.NewOpenOrders(), instruments, logger)

	tracker := positions.NewTracker(logger)
	orderSvc.AddRecorder(tracker)

	deps := &Dependencies{
		MarketData: md,
		Orders:     orderSvc,
		Positions:  tracker,
		Latest:     latest,
	}

	// --- Analyzers ---
	var analyzers []*analysis.MomentumAnalyzer
	if cfg.Analyzer.Enabled {
		for _, inst := range instruments {
			an, err := analysis.NewMomentumAnalyzer(analyzerConfig(cfg, inst.ID), md, logger)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("app: analyzer %s: %w", inst.ID, err)
			}
			an.Subscribe(latest.Store)
			md.SubscribeQuotes(an.OnQuote)
			analyzers = append(analyzers, an)
		}
	}

	// --- Engine and strategies ---
	view := engineView{Service: md, latest: latest}
	engine := algo.NewEngine(orderSvc, view, cfg.Engine.Tick.Duration, logger)
	if cfg.Breakout.Enabled {
		for _, id := range cfg.Breakout.Instruments {
			b, err := algo.NewBreakout(algo.BreakoutConfig{
				InstrumentID:        id,
				Quantity:            decimal.NewFromFloat(cfg.Breakout.Quantity),
				Lookback:            cfg.Breakout.Lookback.Duration,
				JumpRatio:           cfg.Breakout.JumpRatio,
				FallRatio:           cfg.Breakout.FallRatio,
				MaxSpread:           decimal.NewFromFloat(cfg.Breakout.MaxSpread),
				TakeProfitRatio:     cfg.Breakout.TakeProfitRatio,
				StopLossRatio:       cfg.Breakout.StopLossRatio,
				ExitOffsetRatio:     cfg.Breakout.ExitOffsetRatio,
				ConfirmWithMomentum: cfg.Breakout.ConfirmWithMomentum,
				EntryTimeoutTicks:   cfg.Breakout.EntryTimeoutTicks,
				ExitTimeoutTicks:    cfg.Breakout.ExitTimeoutTicks,
			}, logger)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("app: breakout %s: %w", id, err)
			}
			engine.AddAlgo(b)
		}
	}
	deps.Engine = engine

	// --- Paper venue ---
	if strings.ToLower(cfg.Mode) == "paper" {
		adapter := paper.NewAdapter(logger)
		orderSvc.RegisterAdapter(adapter)
		md.SubscribeQuotes(adapter.OnQuote)
		deps.PaperAdapter = adapter

		seed := cfg.Feed.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		for i, inst := range instruments {
			feed, err := paper.NewFeed(paper.FeedConfig{
				InstrumentID: inst.ID,
				StartPrice:   cfg.Feed.StartPrice,
				SpreadBps:    cfg.Feed.SpreadBps,
				DriftPerTick: cfg.Feed.DriftPerTick,
				VolPerTick:   cfg.Feed.VolPerTick,
				Interval:     cfg.Feed.Interval.Duration,
				BarEvery:     cfg.Feed.BarEvery,
				Seed:         seed + int64(i),
			}, md, logger)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("app: feed %s: %w", inst.ID, err)
			}
			deps.Feeds = append(deps.Feeds, feed)
		}
	}

	// --- PostgreSQL order journal ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("app: migrations: %w", err)
			}
		}

		journal := postgres.NewOrderJournal(pgClient.Pool(), cfg.Postgres.JournalBuffer, logger)
		orderSvc.AddRecorder(journal)
		deps.Journal = journal
	}

	// --- Redis mirrors ---
	if cfg.Redis.Enabled {
		rdClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: redis: %w", err)
		}
		closers = append(closers, func() { _ = rdClient.Close() })

		pricePub := pipeline.NewPricePublisher(redis.NewQuoteCache(rdClient), cfg.Redis.QuoteBuffer, logger)
		md.SubscribeQuotes(pricePub.OnQuote)
		deps.PricePublisher = pricePub

		if len(analyzers) > 0 {
			analysisPub := pipeline.NewAnalysisPublisher(redis.NewSignalBus(rdClient), cfg.Redis.AnalysisBuffer, logger)
			for _, an := range analyzers {
				an.Subscribe(analysisPub.OnAnalysis)
			}
			deps.AnalysisPublisher = analysisPub
		}
	}

	return deps, cleanup, nil
}
