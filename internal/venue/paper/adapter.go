// Package paper implements an in-process venue for paper trading. The
// adapter fills orders against the live quote stream and a synthetic feed
// generates that stream, so the whole engine can run without touching a real
// venue.
package paper

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// VenueName is the venue id instruments must carry to route here.
const VenueName domain.Venue = "paper"

type orderState int

const (
	// stateArming waits for the stop price to trigger.
	stateArming orderState = iota
	// stateOpen is a live entry leg waiting to cross.
	stateOpen
	// stateBracket means the entry filled and the protective legs are live.
	stateBracket
)

type workingOrder struct {
	req   domain.PlaceOrderRequest
	state orderState
}

// Adapter is a paper-trading venue connector. Orders rest in memory and fill
// against incoming quotes: a buy fills when the ask crosses its limit, a sell
// when the bid does. Bracket legs go live once the entry fills and report
// updates under the entry's client order id with the leg's own side.
type Adapter struct {
	mu      sync.Mutex
	working map[string]*workingOrder
	handler func(domain.OrderUpdate) error
	logger  *slog.Logger
	now     func() time.Time
}

func NewAdapter(logger *slog.Logger) *Adapter {
	return &Adapter{
		working: make(map[string]*workingOrder),
		logger:  logger.With(slog.String("component", "paper_venue")),
		now:     time.Now,
	}
}

// Venue implements the trade adapter interface.
func (a *Adapter) Venue() domain.Venue { return VenueName }

// RegisterOrderUpdateHandler implements the trade adapter interface.
func (a *Adapter) RegisterOrderUpdateHandler(handler func(domain.OrderUpdate) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = handler
}

// push delivers one update to the registered handler. A refused update is a
// protocol anomaly between venue and consumer and is logged at error level.
func (a *Adapter) push(handler func(domain.OrderUpdate) error, u domain.OrderUpdate) {
	if handler == nil {
		return
	}
	if err := handler(u); err != nil {
		a.logger.Error("order update refused",
			slog.String("client_order_id", u.ClientOrderID),
			slog.String("status", string(u.Status)),
			slog.String("error", err.Error()),
		)
	}
}

// PlaceOrder accepts a new resting order and acknowledges it with a New
// update. Fills happen later, on quote ticks.
func (a *Adapter) PlaceOrder(req domain.PlaceOrderRequest) error {
	if req.Qty.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("paper: place %s: quantity must be positive", req.ClientOrderID)
	}
	if req.LimitPrice.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("paper: place %s: limit price must be positive", req.ClientOrderID)
	}

	state := stateOpen
	if req.Type == domain.OrderTypeStopLimit {
		state = stateArming
	}

	a.mu.Lock()
	if _, ok := a.working[req.ClientOrderID]; ok {
		a.mu.Unlock()
		return fmt.Errorf("paper: place %s: %w", req.ClientOrderID, domain.ErrDuplicateOrder)
	}
	a.working[req.ClientOrderID] = &workingOrder{req: req, state: state}
	handler := a.handler
	a.mu.Unlock()

	a.push(handler, domain.OrderUpdate{
		ClientOrderID: req.ClientOrderID,
		Status:        domain.OrderStatusNew,
		Side:          req.Side,
		Timestamp:     a.now(),
	})
	return nil
}

// PatchOrder adjusts a resting order. Once the bracket legs are live the
// limit price patch applies to the stop-loss leg, which is how strategies
// ratchet their protection.
func (a *Adapter) PatchOrder(req domain.PatchOrderRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	w, ok := a.working[req.ClientOrderID]
	if !ok {
		return fmt.Errorf("paper: patch %s: %w", req.ClientOrderID, domain.ErrNotFound)
	}
	if !req.NewQty.IsZero() {
		w.req.Qty = req.NewQty
	}
	if !req.NewLimitPrice.IsZero() {
		if w.state == stateBracket {
			w.req.StopLossPrice = req.NewLimitPrice
		} else {
			w.req.LimitPrice = req.NewLimitPrice
		}
	}
	if !req.NewStopPrice.IsZero() {
		w.req.StopPrice = req.NewStopPrice
	}
	return nil
}

// AbortOrder cancels a resting order and confirms with a Cancelled update.
func (a *Adapter) AbortOrder(req domain.AbortOrderRequest) error {
	a.mu.Lock()
	w, ok := a.working[req.ClientOrderID]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("paper: abort %s: %w", req.ClientOrderID, domain.ErrNotFound)
	}
	delete(a.working, req.ClientOrderID)
	handler := a.handler
	side := w.req.Side
	a.mu.Unlock()

	a.push(handler, domain.OrderUpdate{
		ClientOrderID: req.ClientOrderID,
		Status:        domain.OrderStatusCancelled,
		Side:          side,
		Timestamp:     a.now(),
	})
	return nil
}

// OnQuote evaluates every resting order for the instrument against the new
// quote. Wire it to the market-data service's quote subscription.
func (a *Adapter) OnQuote(instrumentID string, q domain.Quote) {
	a.mu.Lock()
	var fills []domain.OrderUpdate
	for id, w := range a.working {
		if w.req.InstrumentID != instrumentID {
			continue
		}
		update, done := a.evaluate(w, q)
		if update == nil {
			continue
		}
		update.ClientOrderID = id
		fills = append(fills, *update)
		if done {
			delete(a.working, id)
		}
	}
	handler := a.handler
	a.mu.Unlock()

	for _, u := range fills {
		a.push(handler, u)
	}
}

// evaluate advances one working order against a quote. It returns the update
// to emit, if any, and whether the order is finished.
func (a *Adapter) evaluate(w *workingOrder, q domain.Quote) (*domain.OrderUpdate, bool) {
	req := w.req

	switch w.state {
	case stateArming:
		triggered := (req.Side == domain.OrderSideBuy && q.AskPrice.GreaterThanOrEqual(req.StopPrice)) ||
			(req.Side == domain.OrderSideSell && q.BidPrice.LessThanOrEqual(req.StopPrice))
		if triggered {
			w.state = stateOpen
		}
		return nil, false

	case stateOpen:
		var price decimal.Decimal
		if req.Side == domain.OrderSideBuy {
			if q.AskPrice.GreaterThan(req.LimitPrice) {
				return nil, false
			}
			price = q.AskPrice
		} else {
			if q.BidPrice.LessThan(req.LimitPrice) {
				return nil, false
			}
			price = q.BidPrice
		}

		update := &domain.OrderUpdate{
			Status:         domain.OrderStatusFilled,
			Side:           req.Side,
			FilledQty:      req.Qty,
			FilledAvgPrice: price,
			Timestamp:      q.Timestamp,
		}
		if req.TakeProfitPrice.IsZero() && req.StopLossPrice.IsZero() {
			return update, true
		}
		w.state = stateBracket
		return update, false

	case stateBracket:
		// Protective legs sit on the opposite side of the entry.
		long := req.Side == domain.OrderSideBuy
		legSide := domain.OrderSideSell
		if !long {
			legSide = domain.OrderSideBuy
		}

		var price decimal.Decimal
		switch {
		case long && !req.TakeProfitPrice.IsZero() && q.BidPrice.GreaterThanOrEqual(req.TakeProfitPrice):
			price = q.BidPrice
		case long && !req.StopLossPrice.IsZero() && q.BidPrice.LessThanOrEqual(req.StopLossPrice):
			price = req.StopLossPrice
		case !long && !req.TakeProfitPrice.IsZero() && q.AskPrice.LessThanOrEqual(req.TakeProfitPrice):
			price = q.AskPrice
		case !long && !req.StopLossPrice.IsZero() && q.AskPrice.GreaterThanOrEqual(req.StopLossPrice):
			price = req.StopLossPrice
		default:
			return nil, false
		}

		return &domain.OrderUpdate{
			Status:         domain.OrderStatusFilled,
			Side:           legSide,
			FilledQty:      req.Qty,
			FilledAvgPrice: price,
			Timestamp:      q.Timestamp,
		}, true
	}
	return nil, false
}

// WorkingCount reports how many orders are resting, for tests and status
// logging.
func (a *Adapter) WorkingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.working)
}
