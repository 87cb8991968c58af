package domain

import "github.com/shopspring/decimal"

// PlacementCallback reports the client order id generated for a placement
// decision, so the emitting strategy can correlate later order updates.
type PlacementCallback func(clientOrderID string)

// AlgoDecision is a closed set of trading instructions emitted by strategies.
// The order service translates each variant with an exhaustive type switch;
// the sealed marker method keeps the set closed to this package.
type AlgoDecision interface {
	// Instrument returns the instrument id the decision applies to.
	Instrument() string

	sealedDecision()
}

// LimitBuy places a buy limit order.
type LimitBuy struct {
	InstrumentID string
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	Callback     PlacementCallback
}

// LimitSell places a sell limit order.
type LimitSell struct {
	InstrumentID string
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	Callback     PlacementCallback
}

// StopLimitBuy places a buy limit order armed at a stop price.
type StopLimitBuy struct {
	InstrumentID string
	Quantity     decimal.Decimal
	StopPrice    decimal.Decimal
	LimitPrice   decimal.Decimal
	Callback     PlacementCallback
}

// StopLimitSell places a sell limit order armed at a stop price.
type StopLimitSell struct {
	InstrumentID string
	Quantity     decimal.Decimal
	StopPrice    decimal.Decimal
	LimitPrice   decimal.Decimal
	Callback     PlacementCallback
}

// TwoLeggedLimitBuy places a buy entry with take-profit and stop-loss legs in
// one instruction (a bracket).
type TwoLeggedLimitBuy struct {
	InstrumentID    string
	Quantity        decimal.Decimal
	LimitPrice      decimal.Decimal
	TakeProfitPrice decimal.Decimal
	StopLossPrice   decimal.Decimal
	Callback        PlacementCallback
}

// TwoLeggedLimitSell places a sell entry with take-profit and stop-loss legs.
type TwoLeggedLimitSell struct {
	InstrumentID    string
	Quantity        decimal.Decimal
	LimitPrice      decimal.Decimal
	TakeProfitPrice decimal.Decimal
	StopLossPrice   decimal.Decimal
	Callback        PlacementCallback
}

// LimitWithStopLossBuy places a buy entry paired with a stop-loss leg only.
type LimitWithStopLossBuy struct {
	InstrumentID  string
	Quantity      decimal.Decimal
	LimitPrice    decimal.Decimal
	StopLossPrice decimal.Decimal
	Callback      PlacementCallback
}

// LimitWithStopLossSell places a sell entry paired with a stop-loss leg only.
type LimitWithStopLossSell struct {
	InstrumentID  string
	Quantity      decimal.Decimal
	LimitPrice    decimal.Decimal
	StopLossPrice decimal.Decimal
	Callback      PlacementCallback
}

// UpdateLimitPrice patches the limit price of an outstanding order.
type UpdateLimitPrice struct {
	InstrumentID  string
	ClientOrderID string
	Quantity      decimal.Decimal
	NewLimitPrice decimal.Decimal
}

// CancelOrder aborts an outstanding order. Strategies use it to back out of
// an entry or exit that never completed.
type CancelOrder struct {
	InstrumentID  string
	ClientOrderID string
}

func (d LimitBuy) Instrument() string              { return d.InstrumentID }
func (d LimitSell) Instrument() string             { return d.InstrumentID }
func (d StopLimitBuy) Instrument() string          { return d.InstrumentID }
func (d StopLimitSell) Instrument() string         { return d.InstrumentID }
func (d TwoLeggedLimitBuy) Instrument() string     { return d.InstrumentID }
func (d TwoLeggedLimitSell) Instrument() string    { return d.InstrumentID }
func (d LimitWithStopLossBuy) Instrument() string  { return d.InstrumentID }
func (d LimitWithStopLossSell) Instrument() string { return d.InstrumentID }
func (d UpdateLimitPrice) Instrument() string      { return d.InstrumentID }
func (d CancelOrder) Instrument() string           { return d.InstrumentID }

func (LimitBuy) sealedDecision()              {}
func (LimitSell) sealedDecision()             {}
func (StopLimitBuy) sealedDecision()          {}
func (StopLimitSell) sealedDecision()         {}
func (TwoLeggedLimitBuy) sealedDecision()     {}
func (TwoLeggedLimitSell) sealedDecision()    {}
func (LimitWithStopLossBuy) sealedDecision()  {}
func (LimitWithStopLossSell) sealedDecision() {}
func (UpdateLimitPrice) sealedDecision()      {}
func (CancelOrder) sealedDecision()           {}
