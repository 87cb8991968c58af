package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStopLimit OrderType = "stop_limit"
)

// OrderTimeInForce is the lifetime policy of an order.
type OrderTimeInForce string

const (
	OrderTimeInForceGoodTillCancel OrderTimeInForce = "gtc"
	OrderTimeInForceDay            OrderTimeInForce = "day"
	OrderTimeInForceIOC            OrderTimeInForce = "ioc"
)

// OrderStatus tracks the order lifecycle. Progression is strictly forward:
// Sent → New → {PartiallyFilled* → Filled} | Cancelled | Rejected.
type OrderStatus string

const (
	OrderStatusSent            OrderStatus = "sent"
	OrderStatusNew             OrderStatus = "new"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// IsFill reports whether the status carries cumulative fill state.
func (s OrderStatus) IsFill() bool {
	return s == OrderStatusPartiallyFilled || s == OrderStatusFilled
}

// Order is the canonical in-process view of an order this engine has placed.
// It is created when a placement request is issued (status Sent) and mutated
// only by order updates.
type Order struct {
	ClientOrderID   string
	InstrumentID    string
	Qty             decimal.Decimal
	FilledQty       decimal.Decimal
	FilledAvgPrice  decimal.Decimal
	Type            OrderType
	Side            OrderSide
	TimeInForce     OrderTimeInForce
	Status          OrderStatus
	LimitPrice      decimal.Decimal
	StopPrice       decimal.Decimal
	TakeProfitPrice decimal.Decimal
	StopLossPrice   decimal.Decimal
	UpdatedAt       time.Time
}

// PlaceOrderRequest instructs a trade adapter to place an order. Zero price
// fields mean "absent"; TakeProfitPrice/StopLossPrice arm bracket legs.
type PlaceOrderRequest struct {
	ClientOrderID   string
	InstrumentID    string
	Type            OrderType
	Side            OrderSide
	Qty             decimal.Decimal
	TimeInForce     OrderTimeInForce
	LimitPrice      decimal.Decimal
	StopPrice       decimal.Decimal
	TakeProfitPrice decimal.Decimal
	StopLossPrice   decimal.Decimal
}

// PatchOrderRequest changes parameters of an outstanding order. Zero fields
// are left unchanged.
type PatchOrderRequest struct {
	ClientOrderID string
	NewQty        decimal.Decimal
	NewLimitPrice decimal.Decimal
	NewStopPrice  decimal.Decimal
}

// AbortOrderRequest cancels an outstanding order.
type AbortOrderRequest struct {
	ClientOrderID string
}

// OrderUpdate is a lifecycle event for one order, pushed by a trade adapter.
// FilledQty and FilledAvgPrice are the venue-reported cumulative values and
// are only meaningful when Status.IsFill().
type OrderUpdate struct {
	ClientOrderID       string
	Status              OrderStatus
	Side                OrderSide
	FilledQty           decimal.Decimal
	FilledAvgPrice      decimal.Decimal
	Timestamp           time.Time
	ExternalExecutionID string
}
