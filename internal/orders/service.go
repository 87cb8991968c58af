package orders

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// TradeAdapter is a venue connector. Implementations must be non-blocking on
// the dispatch path: requests are accepted or rejected immediately and all
// lifecycle progress arrives asynchronously through the registered handler.
type TradeAdapter interface {
	// Venue identifies which venue this adapter routes to.
	Venue() domain.Venue
	PlaceOrder(req domain.PlaceOrderRequest) error
	PatchOrder(req domain.PatchOrderRequest) error
	AbortOrder(req domain.AbortOrderRequest) error
	// RegisterOrderUpdateHandler installs the callback the adapter pushes
	// order updates through. Must be called before any order is placed. A
	// non-nil return means the update was refused (protocol anomaly, e.g. an
	// unknown client order id); the adapter must surface it.
	RegisterOrderUpdateHandler(handler func(domain.OrderUpdate) error)
}

// Recorder observes order lifecycle events after the ledger has absorbed
// them. Recorders must not block; slow sinks buffer internally.
type Recorder interface {
	OrderPlaced(order domain.Order)
	OrderUpdated(order domain.Order, update domain.OrderUpdate)
}

// Service translates strategy decisions into venue requests and maintains the
// open-orders ledger. Updates pushed by adapters are folded into the ledger
// immediately and buffered for the engine to drain on its next tick.
type Service struct {
	ledger      *OpenOrders
	instruments map[string]domain.Instrument
	logger      *slog.Logger

	mu        sync.Mutex
	adapters  map[domain.Venue]TradeAdapter
	recorders []Recorder
	pending   []domain.OrderUpdate
}

func NewService(ledger *OpenOrders, instruments []domain.Instrument, logger *slog.Logger) *Service {
	byID := make(map[string]domain.Instrument, len(instruments))
	for _, inst := range instruments {
		byID[inst.ID] = inst
	}
	return &Service{
		ledger:      ledger,
		instruments: byID,
		logger:      logger.With(slog.String("component", "orders")),
		adapters:    make(map[domain.Venue]TradeAdapter),
	}
}

// RegisterAdapter wires a venue adapter and subscribes to its order updates.
// Call during startup, before the engine loop runs.
func (s *Service) RegisterAdapter(adapter TradeAdapter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adapters[adapter.Venue()] = adapter
	adapter.RegisterOrderUpdateHandler(s.HandleOrderUpdate)
}

// AddRecorder attaches a lifecycle observer. Call during startup.
func (s *Service) AddRecorder(r Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorders = append(s.recorders, r)
}

// Ledger exposes the open-orders ledger for read access.
func (s *Service) Ledger() *OpenOrders { return s.ledger }

// Perform translates one strategy decision into a venue request. The mapping
// over the decision set is exhaustive; an unknown variant is a programming
// error.
func (s *Service) Perform(decision domain.AlgoDecision) error {
	switch d := decision.(type) {
	case domain.LimitBuy:
		return s.place(domain.PlaceOrderRequest{
			InstrumentID: d.InstrumentID,
			Type:         domain.OrderTypeLimit,
			Side:         domain.OrderSideBuy,
			Qty:          d.Quantity,
			LimitPrice:   d.Price,
		}, d.Callback)
	case domain.LimitSell:
		return s.place(domain.PlaceOrderRequest{
			InstrumentID: d.InstrumentID,
			Type:         domain.OrderTypeLimit,
			Side:         domain.OrderSideSell,
			Qty:          d.Quantity,
			LimitPrice:   d.Price,
		}, d.Callback)
	case domain.StopLimitBuy:
		return s.place(domain.PlaceOrderRequest{
			InstrumentID: d.InstrumentID,
			Type:         domain.OrderTypeStopLimit,
			Side:         domain.OrderSideBuy,
			Qty:          d.Quantity,
			LimitPrice:   d.LimitPrice,
			StopPrice:    d.StopPrice,
		}, d.Callback)
	case domain.StopLimitSell:
		return s.place(domain.PlaceOrderRequest{
			InstrumentID: d.InstrumentID,
			Type:         domain.OrderTypeStopLimit,
			Side:         domain.OrderSideSell,
			Qty:          d.Quantity,
			LimitPrice:   d.LimitPrice,
			StopPrice:    d.StopPrice,
		}, d.Callback)
	case domain.TwoLeggedLimitBuy:
		return s.place(domain.PlaceOrderRequest{
			InstrumentID:    d.InstrumentID,
			Type:            domain.OrderTypeLimit,
			Side:            domain.OrderSideBuy,
			Qty:             d.Quantity,
			LimitPrice:      d.LimitPrice,
			TakeProfitPrice: d.TakeProfitPrice,
			StopLossPrice:   d.StopLossPrice,
		}, d.Callback)
	case domain.TwoLeggedLimitSell:
		return s.place(domain.PlaceOrderRequest{
			InstrumentID:    d.InstrumentID,
			Type:            domain.OrderTypeLimit,
			Side:            domain.OrderSideSell,
			Qty:             d.Quantity,
			LimitPrice:      d.LimitPrice,
			TakeProfitPrice: d.TakeProfitPrice,
			StopLossPrice:   d.StopLossPrice,
		}, d.Callback)
	case domain.LimitWithStopLossBuy:
		return s.place(domain.PlaceOrderRequest{
			InstrumentID:  d.InstrumentID,
			Type:          domain.OrderTypeLimit,
			Side:          domain.OrderSideBuy,
			Qty:           d.Quantity,
			LimitPrice:    d.LimitPrice,
			StopLossPrice: d.StopLossPrice,
		}, d.Callback)
	case domain.LimitWithStopLossSell:
		return s.place(domain.PlaceOrderRequest{
			InstrumentID:  d.InstrumentID,
			Type:          domain.OrderTypeLimit,
			Side:          domain.OrderSideSell,
			Qty:           d.Quantity,
			LimitPrice:    d.LimitPrice,
			StopLossPrice: d.StopLossPrice,
		}, d.Callback)
	case domain.UpdateLimitPrice:
		return s.patch(d)
	case domain.CancelOrder:
		return s.abort(d)
	default:
		return fmt.Errorf("orders: perform: unhandled decision %T", decision)
	}
}

// place tracks the order first, then reports the generated client order id to
// the strategy, then dispatches to the venue. Tracking before dispatch means
// an update racing the PlaceOrder return can never hit an untracked ledger.
func (s *Service) place(req domain.PlaceOrderRequest, callback domain.PlacementCallback) error {
	adapter, err := s.adapterFor(req.InstrumentID)
	if err != nil {
		return fmt.Errorf("orders: place: %w", err)
	}

	req.ClientOrderID = NewClientOrderID()
	if req.TimeInForce == "" {
		req.TimeInForce = domain.OrderTimeInForceGoodTillCancel
	}

	order := domain.Order{
		ClientOrderID:   req.ClientOrderID,
		InstrumentID:    req.InstrumentID,
		Qty:             req.Qty,
		Type:            req.Type,
		Side:            req.Side,
		TimeInForce:     req.TimeInForce,
		Status:          domain.OrderStatusSent,
		LimitPrice:      req.LimitPrice,
		StopPrice:       req.StopPrice,
		TakeProfitPrice: req.TakeProfitPrice,
		StopLossPrice:   req.StopLossPrice,
		UpdatedAt:       time.Now(),
	}
	if err := s.ledger.Track(order); err != nil {
		return fmt.Errorf("orders: place: %w", err)
	}
	if callback != nil {
		callback(req.ClientOrderID)
	}

	s.mu.Lock()
	recorders := s.recorders
	s.mu.Unlock()
	for _, r := range recorders {
		r.OrderPlaced(order)
	}

	s.logger.Info("placing order",
		slog.String("client_order_id", req.ClientOrderID),
		slog.String("instrument", req.InstrumentID),
		slog.String("side", string(req.Side)),
		slog.String("type", string(req.Type)),
		slog.String("qty", req.Qty.String()),
		slog.String("limit_price", req.LimitPrice.String()),
	)

	if err := adapter.PlaceOrder(req); err != nil {
		// The strategy already holds the client order id, so the failure is
		// delivered the same way any other terminal state is: as an update.
		// The order was tracked above, so the apply cannot miss.
		_ = s.HandleOrderUpdate(domain.OrderUpdate{
			ClientOrderID: req.ClientOrderID,
			Status:        domain.OrderStatusRejected,
			Side:          req.Side,
			Timestamp:     time.Now(),
		})
		return fmt.Errorf("orders: place %s: %w", req.ClientOrderID, err)
	}
	return nil
}

func (s *Service) patch(d domain.UpdateLimitPrice) error {
	if _, err := s.ledger.Get(d.ClientOrderID); err != nil {
		return fmt.Errorf("orders: patch: %w", err)
	}
	adapter, err := s.adapterFor(d.InstrumentID)
	if err != nil {
		return fmt.Errorf("orders: patch: %w", err)
	}

	s.logger.Info("patching order",
		slog.String("client_order_id", d.ClientOrderID),
		slog.String("new_limit_price", d.NewLimitPrice.String()),
	)
	if err := adapter.PatchOrder(domain.PatchOrderRequest{
		ClientOrderID: d.ClientOrderID,
		NewQty:        d.Quantity,
		NewLimitPrice: d.NewLimitPrice,
	}); err != nil {
		return fmt.Errorf("orders: patch %s: %w", d.ClientOrderID, err)
	}
	return nil
}

func (s *Service) abort(d domain.CancelOrder) error {
	if _, err := s.ledger.Get(d.ClientOrderID); err != nil {
		return fmt.Errorf("orders: abort: %w", err)
	}
	adapter, err := s.adapterFor(d.InstrumentID)
	if err != nil {
		return fmt.Errorf("orders: abort: %w", err)
	}

	s.logger.Info("aborting order", slog.String("client_order_id", d.ClientOrderID))
	if err := adapter.AbortOrder(domain.AbortOrderRequest{ClientOrderID: d.ClientOrderID}); err != nil {
		return fmt.Errorf("orders: abort %s: %w", d.ClientOrderID, err)
	}
	return nil
}

func (s *Service) adapterFor(instrumentID string) (TradeAdapter, error) {
	inst, ok := s.instruments[instrumentID]
	if !ok {
		return nil, fmt.Errorf("instrument %s: %w", instrumentID, domain.ErrUnknownInstrument)
	}

	s.mu.Lock()
	adapter, ok := s.adapters[inst.Venue]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("venue %s: %w", inst.Venue, domain.ErrNoAdapterForVenue)
	}
	return adapter, nil
}

// HandleOrderUpdate folds an adapter-pushed update into the ledger, notifies
// recorders, and buffers the update for the engine's next tick. An update for
// an order the ledger does not know is a protocol anomaly: it is refused with
// an error back to the delivering adapter, never silently dropped.
func (s *Service) HandleOrderUpdate(update domain.OrderUpdate) error {
	order, err := s.ledger.Apply(update)
	if err != nil {
		s.logger.Error("refusing order update",
			slog.String("client_order_id", update.ClientOrderID),
			slog.String("status", string(update.Status)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("orders: update %s: %w", update.ClientOrderID, err)
	}

	s.mu.Lock()
	s.pending = append(s.pending, update)
	recorders := s.recorders
	s.mu.Unlock()

	for _, r := range recorders {
		r.OrderUpdated(order, update)
	}

	s.logger.Debug("order update",
		slog.String("client_order_id", update.ClientOrderID),
		slog.String("status", string(update.Status)),
		slog.String("filled_qty", update.FilledQty.String()),
	)
	return nil
}

// DrainOrderUpdates atomically empties the pending buffer, preserving arrival
// order. The engine calls this once per tick.
func (s *Service) DrainOrderUpdates() []domain.OrderUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.pending
	s.pending = nil
	return out
}
