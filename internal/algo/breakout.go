package algo

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// State is the lifecycle position of a Breakout instance.
type State int

const (
	StateOut State = iota
	StateEntering
	StateIn
	StateExiting
)

func (s State) String() string {
	switch s {
	case StateOut:
		return "out"
	case StateEntering:
		return "entering"
	case StateIn:
		return "in"
	case StateExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// BreakoutConfig parameterizes a Breakout strategy. Ratios are expressed for
// the long side; the short side mirrors them by division.
type BreakoutConfig struct {
	InstrumentID string
	Quantity     decimal.Decimal
	// Lookback is the quote window inspected for a jump or fall.
	Lookback time.Duration
	// JumpRatio triggers a long entry when lastMid/firstMid meets it (>1).
	JumpRatio float64
	// FallRatio triggers a short entry when lastMid/firstMid drops to it (<1).
	FallRatio float64
	// MaxSpread excludes noisy wide-spread quotes from entry evaluation.
	MaxSpread decimal.Decimal
	// MinQuotes is the minimum filtered quote count required to evaluate an
	// entry. Defaults to 2.
	MinQuotes int
	// TakeProfitRatio and StopLossRatio position the bracket legs relative to
	// the entry price.
	TakeProfitRatio float64
	StopLossRatio   float64
	// ExitOffsetRatio shades the exit limit price for fill probability.
	ExitOffsetRatio float64
	// ConfirmWithMomentum requires the analyzer's momentum sign to agree with
	// the entry direction.
	ConfirmWithMomentum bool
	// EntryTimeoutTicks and ExitTimeoutTicks cancel an order that produced no
	// terminal update within that many engine ticks. Zero disables the
	// timeout.
	EntryTimeoutTicks int
	ExitTimeoutTicks  int
}

// Breakout is the reference strategy: it enters on a rapid price jump or fall
// over a lookback window with a two-legged bracket, rides the position while
// ratcheting the protective leg behind favorable extremes, and exits through
// a shaded limit order once take-profit is breached.
//
// Lifecycle: Out → Entering → In → Exiting → Out.
type Breakout struct {
	cfg    BreakoutConfig
	logger *slog.Logger

	state        State
	long         bool
	entryOrderID string
	exitOrderID  string

	inPrice         float64
	stopPrice       float64
	takeProfitPrice float64

	waitTicks int
}

// NewBreakout validates the configuration and creates a Breakout in Out.
func NewBreakout(cfg BreakoutConfig, logger *slog.Logger) (*Breakout, error) {
	if cfg.InstrumentID == "" {
		return nil, fmt.Errorf("breakout: instrument id is empty")
	}
	if cfg.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("breakout: quantity must be positive")
	}
	if cfg.Lookback <= 0 {
		return nil, fmt.Errorf("breakout: lookback must be positive")
	}
	if cfg.JumpRatio <= 1 {
		return nil, fmt.Errorf("breakout: jump ratio must be > 1")
	}
	if cfg.FallRatio <= 0 || cfg.FallRatio >= 1 {
		return nil, fmt.Errorf("breakout: fall ratio must be in (0, 1)")
	}
	if cfg.TakeProfitRatio <= 1 || cfg.StopLossRatio <= 0 || cfg.StopLossRatio >= 1 {
		return nil, fmt.Errorf("breakout: bracket ratios out of range")
	}
	if cfg.ExitOffsetRatio <= 0 || cfg.ExitOffsetRatio > 1 {
		return nil, fmt.Errorf("breakout: exit offset ratio must be in (0, 1]")
	}
	if cfg.MinQuotes < 2 {
		cfg.MinQuotes = 2
	}
	return &Breakout{
		cfg:    cfg,
		logger: logger.With(slog.String("algo", "breakout"), slog.String("instrument", cfg.InstrumentID)),
	}, nil
}

// Name returns the strategy identifier.
func (b *Breakout) Name() string { return "breakout:" + b.cfg.InstrumentID }

// Instrument reports the instrument this strategy trades.
func (b *Breakout) Instrument() string { return b.cfg.InstrumentID }

// State returns the current lifecycle state.
func (b *Breakout) State() State { return b.state }

// Decide advances the state machine by one engine tick.
func (b *Breakout) Decide(updates []domain.OrderUpdate, view MarketView) ([]domain.AlgoDecision, error) {
	switch b.state {
	case StateOut:
		return b.decideOut(view), nil
	case StateEntering:
		return b.decideEntering(updates), nil
	case StateIn:
		return b.decideIn(view), nil
	case StateExiting:
		return b.decideExiting(updates), nil
	default:
		return nil, fmt.Errorf("breakout: invalid state %d", b.state)
	}
}

func (b *Breakout) decideOut(view MarketView) []domain.AlgoDecision {
	last, ok := view.LastQuote(b.cfg.InstrumentID)
	if !ok {
		return nil
	}
	quotes := view.QuotesSince(b.cfg.InstrumentID, last.Timestamp.Add(-b.cfg.Lookback))

	filtered := quotes[:0:0]
	for _, q := range quotes {
		if q.Spread().LessThanOrEqual(b.cfg.MaxSpread) {
			filtered = append(filtered, q)
		}
	}
	if len(filtered) < b.cfg.MinQuotes {
		return nil
	}

	firstMid := filtered[0].Mid().InexactFloat64()
	lastMid := filtered[len(filtered)-1].Mid().InexactFloat64()
	if firstMid <= 0 {
		return nil
	}
	ratio := lastMid / firstMid

	book := view.Book(b.cfg.InstrumentID)
	if book == nil {
		return nil
	}

	switch {
	case ratio >= b.cfg.JumpRatio && b.momentumAgrees(view, true):
		best, ok := book.BestAsk()
		if !ok {
			return nil
		}
		return b.enter(true, best.Price.InexactFloat64(), ratio)
	case ratio <= b.cfg.FallRatio && b.momentumAgrees(view, false):
		best, ok := book.BestBid()
		if !ok {
			return nil
		}
		return b.enter(false, best.Price.InexactFloat64(), ratio)
	default:
		return nil
	}
}

func (b *Breakout) momentumAgrees(view MarketView, long bool) bool {
	if !b.cfg.ConfirmWithMomentum {
		return true
	}
	a, ok := view.Analysis(b.cfg.InstrumentID)
	if !ok {
		return false
	}
	if long {
		return a.AskMomentum > 0
	}
	return a.BidMomentum < 0
}

func (b *Breakout) enter(long bool, price, ratio float64) []domain.AlgoDecision {
	b.long = long
	b.inPrice = price
	if long {
		b.takeProfitPrice = price * b.cfg.TakeProfitRatio
		b.stopPrice = price * b.cfg.StopLossRatio
	} else {
		b.takeProfitPrice = price / b.cfg.TakeProfitRatio
		b.stopPrice = price / b.cfg.StopLossRatio
	}
	b.state = StateEntering
	b.waitTicks = 0

	b.logger.Info("entering",
		slog.Bool("long", long),
		slog.Float64("price", price),
		slog.Float64("ratio", ratio),
		slog.Float64("take_profit", b.takeProfitPrice),
		slog.Float64("stop_loss", b.stopPrice),
	)

	callback := func(clientOrderID string) { b.entryOrderID = clientOrderID }
	if long {
		return []domain.AlgoDecision{domain.TwoLeggedLimitBuy{
			InstrumentID:    b.cfg.InstrumentID,
			Quantity:        b.cfg.Quantity,
			LimitPrice:      decimal.NewFromFloat(price),
			TakeProfitPrice: decimal.NewFromFloat(b.takeProfitPrice),
			StopLossPrice:   decimal.NewFromFloat(b.stopPrice),
			Callback:        callback,
		}}
	}
	return []domain.AlgoDecision{domain.TwoLeggedLimitSell{
		InstrumentID:    b.cfg.InstrumentID,
		Quantity:        b.cfg.Quantity,
		LimitPrice:      decimal.NewFromFloat(price),
		TakeProfitPrice: decimal.NewFromFloat(b.takeProfitPrice),
		StopLossPrice:   decimal.NewFromFloat(b.stopPrice),
		Callback:        callback,
	}}
}

func (b *Breakout) decideEntering(updates []domain.OrderUpdate) []domain.AlgoDecision {
	mine := b.updatesFor(updates, b.entryOrderID)

	// Every update in the batch is inspected for cross-leg anomalies: a fill
	// on the side we are not committed to means the bracket legs raced.
	for _, u := range mine {
		if u.Status.IsFill() && u.Side != "" && u.Side != b.entrySide() {
			b.logger.Warn("fill on unexpected side while entering",
				slog.String("client_order_id", u.ClientOrderID),
				slog.String("side", string(u.Side)),
				slog.String("status", string(u.Status)),
			)
		}
	}

	if len(mine) == 0 {
		return b.maybeTimeout(b.cfg.EntryTimeoutTicks, b.entryOrderID, func() { b.reset() })
	}
	b.waitTicks = 0

	// Only the last update is authoritative for the transition.
	last := mine[len(mine)-1]
	switch {
	case last.Status.IsFill() && last.Side == b.entrySide():
		if avg := last.FilledAvgPrice.InexactFloat64(); avg > 0 {
			b.inPrice = avg
		}
		b.state = StateIn
		b.logger.Info("entered",
			slog.Bool("long", b.long),
			slog.Float64("in_price", b.inPrice),
			slog.String("status", string(last.Status)),
		)
	case last.Status == domain.OrderStatusCancelled || last.Status == domain.OrderStatusRejected:
		b.logger.Warn("entry order terminated", slog.String("status", string(last.Status)))
		b.reset()
	}
	return nil
}

func (b *Breakout) decideIn(view MarketView) []domain.AlgoDecision {
	book := view.Book(b.cfg.InstrumentID)
	if book == nil {
		return nil
	}

	var current float64
	if b.long {
		best, ok := book.BestAsk()
		if !ok {
			return nil
		}
		current = best.Price.InexactFloat64()
	} else {
		best, ok := book.BestBid()
		if !ok {
			return nil
		}
		current = best.Price.InexactFloat64()
	}

	// Exit on take-profit breach.
	if (b.long && current >= b.takeProfitPrice) || (!b.long && current <= b.takeProfitPrice) {
		exitPrice := current * b.cfg.ExitOffsetRatio
		if !b.long {
			exitPrice = current / b.cfg.ExitOffsetRatio
		}
		b.state = StateExiting
		b.waitTicks = 0
		b.logger.Info("exiting",
			slog.Bool("long", b.long),
			slog.Float64("current", current),
			slog.Float64("exit_price", exitPrice),
		)

		callback := func(clientOrderID string) { b.exitOrderID = clientOrderID }
		if b.long {
			return []domain.AlgoDecision{domain.LimitSell{
				InstrumentID: b.cfg.InstrumentID,
				Quantity:     b.cfg.Quantity,
				Price:        decimal.NewFromFloat(exitPrice),
				Callback:     callback,
			}}
		}
		return []domain.AlgoDecision{domain.LimitBuy{
			InstrumentID: b.cfg.InstrumentID,
			Quantity:     b.cfg.Quantity,
			Price:        decimal.NewFromFloat(exitPrice),
			Callback:     callback,
		}}
	}

	// Ratchet the protective leg behind a new favorable extreme.
	bars := view.Bars(b.cfg.InstrumentID)
	if len(bars) == 0 {
		return nil
	}
	lastBar := bars[len(bars)-1]
	if b.long && lastBar.IsGreen() && lastBar.High.InexactFloat64() > b.takeProfitPrice {
		b.takeProfitPrice = lastBar.High.InexactFloat64()
		b.stopPrice = b.takeProfitPrice * b.cfg.StopLossRatio
	} else if !b.long && lastBar.IsRed() && lastBar.Low.InexactFloat64() < b.takeProfitPrice {
		b.takeProfitPrice = lastBar.Low.InexactFloat64()
		b.stopPrice = b.takeProfitPrice / b.cfg.StopLossRatio
	} else {
		return nil
	}

	b.logger.Info("ratcheting stop",
		slog.Bool("long", b.long),
		slog.Float64("take_profit", b.takeProfitPrice),
		slog.Float64("stop_loss", b.stopPrice),
	)
	return []domain.AlgoDecision{domain.UpdateLimitPrice{
		InstrumentID:  b.cfg.InstrumentID,
		ClientOrderID: b.entryOrderID,
		Quantity:      b.cfg.Quantity,
		NewLimitPrice: decimal.NewFromFloat(b.stopPrice),
	}}
}

func (b *Breakout) decideExiting(updates []domain.OrderUpdate) []domain.AlgoDecision {
	mine := b.updatesFor(updates, b.exitOrderID)
	if len(mine) == 0 {
		return b.maybeTimeout(b.cfg.ExitTimeoutTicks, b.exitOrderID, func() {
			// Back to In: the position is still open, retry the exit on a
			// later tick.
			b.exitOrderID = ""
			b.state = StateIn
		})
	}
	b.waitTicks = 0

	last := mine[len(mine)-1]
	switch last.Status {
	case domain.OrderStatusFilled:
		b.logger.Info("exited", slog.Bool("long", b.long))
		b.reset()
	case domain.OrderStatusCancelled, domain.OrderStatusRejected:
		b.logger.Warn("exit order terminated", slog.String("status", string(last.Status)))
		b.exitOrderID = ""
		b.state = StateIn
	}
	return nil
}

// maybeTimeout counts idle ticks and cancels the awaited order once the
// configured budget runs out. A zero budget waits forever.
func (b *Breakout) maybeTimeout(budget int, clientOrderID string, then func()) []domain.AlgoDecision {
	b.waitTicks++
	if budget <= 0 || b.waitTicks <= budget || clientOrderID == "" {
		return nil
	}
	b.logger.Warn("order timed out, cancelling",
		slog.String("client_order_id", clientOrderID),
		slog.Int("ticks", b.waitTicks),
	)
	decision := domain.CancelOrder{
		InstrumentID:  b.cfg.InstrumentID,
		ClientOrderID: clientOrderID,
	}
	then()
	return []domain.AlgoDecision{decision}
}

func (b *Breakout) entrySide() domain.OrderSide {
	if b.long {
		return domain.OrderSideBuy
	}
	return domain.OrderSideSell
}

func (b *Breakout) updatesFor(updates []domain.OrderUpdate, clientOrderID string) []domain.OrderUpdate {
	if clientOrderID == "" {
		return nil
	}
	out := updates[:0:0]
	for _, u := range updates {
		if u.ClientOrderID == clientOrderID {
			out = append(out, u)
		}
	}
	return out
}

func (b *Breakout) reset() {
	b.state = StateOut
	b.long = false
	b.entryOrderID = ""
	b.exitOrderID = ""
	b.inPrice = 0
	b.stopPrice = 0
	b.takeProfitPrice = 0
	b.waitTicks = 0
}
