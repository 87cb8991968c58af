package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single price+quantity entry on one side of an order book.
// A quantity of zero in an update means "remove this level".
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBookUpdateKind discriminates snapshot and incremental updates.
type OrderBookUpdateKind int

const (
	OrderBookUpdateKindUnknown OrderBookUpdateKind = iota
	// OrderBookUpdateKindReplace discards all prior book state for both sides.
	OrderBookUpdateKindReplace
	// OrderBookUpdateKindUpdate merges levels: insert new prices, overwrite
	// quantities at existing prices, delete on zero quantity.
	OrderBookUpdateKindUpdate
)

// OrderBookUpdate is a snapshot or incremental change to one instrument's book.
type OrderBookUpdate struct {
	Kind      OrderBookUpdateKind
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}
