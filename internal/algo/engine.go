package algo

import (
	"context"
	"log/slog"
	"time"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// DefaultTick is the engine loop period when none is configured.
const DefaultTick = 250 * time.Millisecond

// OrderDispatcher is how the engine hands decisions to the order layer and
// collects buffered order updates. The order service implements it.
type OrderDispatcher interface {
	// DrainOrderUpdates atomically empties the pending order-update buffer.
	DrainOrderUpdates() []domain.OrderUpdate
	// Perform translates and routes one decision. An error is scoped to that
	// decision alone.
	Perform(decision domain.AlgoDecision) error
}

// Engine runs all registered algos on a fixed tick. Per tick it drains the
// order-update buffer, invokes every algo in registration order with the full
// batch, and dispatches the resulting decisions. A failing algo or decision
// is logged and skipped; the loop itself never stops on strategy errors.
type Engine struct {
	orders OrderDispatcher
	view   MarketView
	algos  []Algo
	tick   time.Duration
	logger *slog.Logger
}

// NewEngine creates an Engine. A non-positive tick falls back to DefaultTick.
func NewEngine(orders OrderDispatcher, view MarketView, tick time.Duration, logger *slog.Logger) *Engine {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Engine{
		orders: orders,
		view:   view,
		tick:   tick,
		logger: logger.With(slog.String("component", "algo_engine")),
	}
}

// AddAlgo registers a strategy. Call before Run; algos cannot be removed at
// runtime.
func (e *Engine) AddAlgo(a Algo) {
	e.algos = append(e.algos, a)
}

// Run blocks until the context is cancelled, executing one Step per tick.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	e.logger.Info("engine loop started",
		slog.Duration("tick", e.tick),
		slog.Int("algos", len(e.algos)),
	)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine loop stopped")
			return ctx.Err()
		case <-ticker.C:
			e.Step()
		}
	}
}

// Step executes one engine tick: drain, decide, dispatch.
func (e *Engine) Step() {
	updates := e.orders.DrainOrderUpdates()

	for _, a := range e.algos {
		decisions, err := a.Decide(updates, e.view)
		if err != nil {
			e.logger.Error("algo decide failed",
				slog.String("algo", a.Name()),
				slog.String("instrument", a.Instrument()),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, d := range decisions {
			if err := e.orders.Perform(d); err != nil {
				e.logger.Error("decision dispatch failed",
					slog.String("algo", a.Name()),
					slog.String("instrument", d.Instrument()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
