// Package algo hosts the decision state machines and the fixed-tick engine
// loop that drives them. Each registered algo owns its own position and price
// bookkeeping and is never invoked re-entrantly.
package algo

import (
	"time"

	"github.com/iannisdezwart/money-printer/internal/domain"
	"github.com/iannisdezwart/money-printer/internal/marketdata"
)

// MarketView is the read-only market state an algo may consult while
// deciding. All methods are in-memory reads; Decide must not perform I/O.
type MarketView interface {
	Book(instrumentID string) *marketdata.OrderBook
	QuotesSince(instrumentID string, from time.Time) []domain.Quote
	TradesSince(instrumentID string, from time.Time) []domain.Trade
	Bars(instrumentID string) []domain.Bar
	LastQuote(instrumentID string) (domain.Quote, bool)
	// Analysis returns the latest analyzer output for the instrument, when an
	// analyzer is wired.
	Analysis(instrumentID string) (domain.MomentumAnalysis, bool)
}

// Algo is one strategy instance. Decide is called once per engine tick with
// the order updates accumulated since the previous tick, in arrival order,
// and returns the decisions to dispatch. It must be pure with respect to its
// inputs plus internal state.
type Algo interface {
	Name() string
	// Instrument is the id of the instrument this algo trades.
	Instrument() string
	Decide(updates []domain.OrderUpdate, view MarketView) ([]domain.AlgoDecision, error)
}
