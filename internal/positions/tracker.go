// Package positions derives signed per-instrument positions from order fill
// events. It consumes the order service's recorder feed, so it sees every
// fill exactly once and in ledger order.
package positions

import (
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// Position is the net exposure in one instrument. Qty is signed: positive is
// long, negative is short.
type Position struct {
	InstrumentID  string
	Qty           decimal.Decimal
	AvgEntryPrice decimal.Decimal
	RealizedPnL   decimal.Decimal
}

// Tracker implements the order service's Recorder interface. Venue fill
// figures are cumulative per order, so the tracker diffs each update against
// the last seen cumulative quantity to extract the incremental fill.
type Tracker struct {
	mu         sync.RWMutex
	positions  map[string]Position
	lastFilled map[string]decimal.Decimal
	logger     *slog.Logger
}

func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{
		positions:  make(map[string]Position),
		lastFilled: make(map[string]decimal.Decimal),
		logger:     logger.With(slog.String("component", "positions")),
	}
}

// OrderPlaced is part of the Recorder interface. Placement alone does not
// move a position.
func (t *Tracker) OrderPlaced(domain.Order) {}

// OrderUpdated folds a fill update into the instrument's position.
func (t *Tracker) OrderUpdated(order domain.Order, update domain.OrderUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !update.Status.IsFill() {
		if update.Status.IsTerminal() {
			delete(t.lastFilled, order.ClientOrderID)
		}
		return
	}

	delta := update.FilledQty.Sub(t.lastFilled[order.ClientOrderID])
	if delta.LessThanOrEqual(decimal.Zero) {
		return
	}
	t.lastFilled[order.ClientOrderID] = update.FilledQty
	if update.Status == domain.OrderStatusFilled {
		delete(t.lastFilled, order.ClientOrderID)
	}

	// Bracket legs report under the entry's client order id but with their
	// own side, so the update's side wins when present.
	side := order.Side
	if update.Side != "" {
		side = update.Side
	}
	signed := delta
	if side == domain.OrderSideSell {
		signed = delta.Neg()
	}

	pos := t.positions[order.InstrumentID]
	pos.InstrumentID = order.InstrumentID
	t.positions[order.InstrumentID] = applyFill(pos, signed, update.FilledAvgPrice)

	t.logger.Debug("position updated",
		slog.String("instrument", order.InstrumentID),
		slog.String("qty", t.positions[order.InstrumentID].Qty.String()),
		slog.String("realized_pnl", t.positions[order.InstrumentID].RealizedPnL.String()),
	)
}

// applyFill merges a signed incremental fill at the given price into the
// position, extending the average entry on same-direction fills and realizing
// PnL on reductions.
func applyFill(pos Position, signed, price decimal.Decimal) Position {
	if pos.Qty.IsZero() || pos.Qty.Sign() == signed.Sign() {
		newQty := pos.Qty.Add(signed)
		total := pos.AvgEntryPrice.Mul(pos.Qty.Abs()).Add(price.Mul(signed.Abs()))
		pos.AvgEntryPrice = total.Div(newQty.Abs())
		pos.Qty = newQty
		return pos
	}

	closed := decimal.Min(signed.Abs(), pos.Qty.Abs())
	pnlPerUnit := price.Sub(pos.AvgEntryPrice)
	if pos.Qty.Sign() < 0 {
		pnlPerUnit = pnlPerUnit.Neg()
	}
	pos.RealizedPnL = pos.RealizedPnL.Add(pnlPerUnit.Mul(closed))

	pos.Qty = pos.Qty.Add(signed)
	switch {
	case pos.Qty.IsZero():
		pos.AvgEntryPrice = decimal.Zero
	case pos.Qty.Sign() == signed.Sign():
		// The fill flipped the position; the excess opens at the fill price.
		pos.AvgEntryPrice = price
	}
	return pos
}

// Position returns the current position in an instrument.
func (t *Tracker) Position(instrumentID string) (Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pos, ok := t.positions[instrumentID]
	return pos, ok
}

// All returns a snapshot of every instrument with recorded fills.
func (t *Tracker) All() []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Position, 0, len(t.positions))
	for _, pos := range t.positions {
		out = append(out, pos)
	}
	return out
}
