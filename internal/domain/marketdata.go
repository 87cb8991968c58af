package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a top-of-book observation for one instrument.
type Quote struct {
	BidPrice  decimal.Decimal
	BidQty    decimal.Decimal
	AskPrice  decimal.Decimal
	AskQty    decimal.Decimal
	Timestamp time.Time
}

// Spread returns best ask minus best bid.
func (q Quote) Spread() decimal.Decimal {
	return q.AskPrice.Sub(q.BidPrice)
}

// Mid returns the average of best bid and best ask.
func (q Quote) Mid() decimal.Decimal {
	return q.BidPrice.Add(q.AskPrice).Div(decimal.NewFromInt(2))
}

// Trade is a single execution reported by a venue.
type Trade struct {
	Price      decimal.Decimal
	Qty        decimal.Decimal
	Timestamp  time.Time
	ExternalID string
}

// Bar is an OHLCV aggregate over a fixed interval.
type Bar struct {
	Open      decimal.Decimal
	Close     decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Volume    decimal.Decimal
	VWAP      decimal.Decimal
	Timestamp time.Time
}

// IsGreen reports whether the bar closed above its open.
func (b Bar) IsGreen() bool { return b.Close.GreaterThan(b.Open) }

// IsRed reports whether the bar closed below its open.
func (b Bar) IsRed() bool { return b.Close.LessThan(b.Open) }
