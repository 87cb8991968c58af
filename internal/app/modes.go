package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// PaperMode runs the full loop against the in-process paper venue: synthetic
// feeds, analyzers, the tick engine, and whatever optional workers are wired.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, feed := range deps.Feeds {
		feed := feed
		g.Go(func() error {
			return feed.Run(ctx)
		})
	}

	g.Go(func() error {
		return deps.Engine.Run(ctx)
	})

	a.startWorkers(ctx, g, deps)
	a.startLedgerSweep(ctx, g, deps)

	a.logger.Info("paper mode running", slog.Int("feeds", len(deps.Feeds)))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: paper mode: %w", err)
	}
	return nil
}

// LiveMode would run against real venue adapters. None are compiled into
// this build, so it refuses to start rather than trade into the void.
func (a *App) LiveMode(_ context.Context, _ *Dependencies) error {
	return errors.New("app: live mode requires a venue adapter, none are configured in this build")
}

// startWorkers launches the optional journal and publisher loops.
func (a *App) startWorkers(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Journal != nil {
		g.Go(func() error {
			return deps.Journal.Run(ctx)
		})
	}
	if deps.PricePublisher != nil {
		g.Go(func() error {
			return deps.PricePublisher.Run(ctx)
		})
	}
	if deps.AnalysisPublisher != nil {
		g.Go(func() error {
			return deps.AnalysisPublisher.Run(ctx)
		})
	}
}

// startLedgerSweep periodically evicts terminal orders past the grace period.
func (a *App) startLedgerSweep(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	grace := a.cfg.Engine.EvictGrace.Duration
	interval := a.cfg.Engine.EvictInterval.Duration
	if interval <= 0 {
		interval = time.Minute
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case now := <-ticker.C:
				if evicted := deps.Orders.Ledger().EvictTerminal(grace, now); evicted > 0 {
					a.logger.Debug("evicted terminal orders", slog.Int("count", evicted))
				}
			}
		}
	})
}
