package algo

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iannisdezwart/money-printer/internal/domain"
	"github.com/iannisdezwart/money-printer/internal/marketdata"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubView struct {
	book     *marketdata.OrderBook
	quotes   []domain.Quote
	trades   []domain.Trade
	bars     []domain.Bar
	analysis *domain.MomentumAnalysis
}

func (v *stubView) Book(string) *marketdata.OrderBook { return v.book }

func (v *stubView) QuotesSince(_ string, from time.Time) []domain.Quote {
	var out []domain.Quote
	for _, q := range v.quotes {
		if !q.Timestamp.Before(from) {
			out = append(out, q)
		}
	}
	return out
}

func (v *stubView) TradesSince(_ string, from time.Time) []domain.Trade {
	var out []domain.Trade
	for _, t := range v.trades {
		if !t.Timestamp.Before(from) {
			out = append(out, t)
		}
	}
	return out
}

func (v *stubView) Bars(string) []domain.Bar { return v.bars }

func (v *stubView) LastQuote(string) (domain.Quote, bool) {
	if len(v.quotes) == 0 {
		return domain.Quote{}, false
	}
	return v.quotes[len(v.quotes)-1], true
}

func (v *stubView) Analysis(string) (domain.MomentumAnalysis, bool) {
	if v.analysis == nil {
		return domain.MomentumAnalysis{}, false
	}
	return *v.analysis, true
}

func bookAt(t *testing.T, bid, ask float64) *marketdata.OrderBook {
	t.Helper()
	book := marketdata.NewOrderBook()
	err := book.ApplyUpdate(domain.OrderBookUpdate{
		Kind:      domain.OrderBookUpdateKindReplace,
		Bids:      []domain.PriceLevel{{Price: decimal.NewFromFloat(bid), Quantity: decimal.NewFromInt(10)}},
		Asks:      []domain.PriceLevel{{Price: decimal.NewFromFloat(ask), Quantity: decimal.NewFromInt(10)}},
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	return book
}

func quoteMid(base time.Time, offset time.Duration, mid float64) domain.Quote {
	return domain.Quote{
		BidPrice:  decimal.NewFromFloat(mid - 0.05),
		BidQty:    decimal.NewFromInt(5),
		AskPrice:  decimal.NewFromFloat(mid + 0.05),
		AskQty:    decimal.NewFromInt(5),
		Timestamp: base.Add(offset),
	}
}

func testBreakoutConfig() BreakoutConfig {
	return BreakoutConfig{
		InstrumentID:      "btc-usd",
		Quantity:          decimal.NewFromInt(1),
		Lookback:          10 * time.Second,
		JumpRatio:         1.01,
		FallRatio:         0.99,
		MaxSpread:         decimal.NewFromInt(1),
		TakeProfitRatio:   1.02,
		StopLossRatio:     0.99,
		ExitOffsetRatio:   0.999,
		EntryTimeoutTicks: 2,
		ExitTimeoutTicks:  2,
	}
}

// risingView returns a view whose mid price climbed from 100 to 102 inside
// the lookback, with the book's best ask at 102.10.
func risingView(t *testing.T, base time.Time) *stubView {
	return &stubView{
		book: bookAt(t, 102, 102.10),
		quotes: []domain.Quote{
			quoteMid(base, 0, 100),
			quoteMid(base, 2*time.Second, 100.5),
			quoteMid(base, 4*time.Second, 101),
			quoteMid(base, 6*time.Second, 101.6),
			quoteMid(base, 8*time.Second, 102),
		},
	}
}

func TestBreakoutFullLongCycle(t *testing.T) {
	base := time.Now()
	view := risingView(t, base)

	b, err := NewBreakout(testBreakoutConfig(), discardLogger())
	require.NoError(t, err)
	require.Equal(t, StateOut, b.State())

	// Tick 1: the jump triggers a bracketed long entry at the best ask.
	decisions, err := b.Decide(nil, view)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	entry, ok := decisions[0].(domain.TwoLeggedLimitBuy)
	require.True(t, ok, "expected a two-legged limit buy, got %T", decisions[0])
	assert.Equal(t, "btc-usd", entry.Instrument())
	assert.InDelta(t, 102.10, entry.LimitPrice.InexactFloat64(), 1e-9)
	assert.InDelta(t, 102.10*1.02, entry.TakeProfitPrice.InexactFloat64(), 1e-9)
	assert.InDelta(t, 102.10*0.99, entry.StopLossPrice.InexactFloat64(), 1e-9)
	require.NotNil(t, entry.Callback)
	entry.Callback("entry-1")
	assert.Equal(t, StateEntering, b.State())

	// Tick 2: the entry fill commits the position at the reported price.
	decisions, err = b.Decide([]domain.OrderUpdate{{
		ClientOrderID:  "entry-1",
		Status:         domain.OrderStatusFilled,
		Side:           domain.OrderSideBuy,
		FilledQty:      decimal.NewFromInt(1),
		FilledAvgPrice: decimal.NewFromFloat(102.10),
		Timestamp:      base.Add(9 * time.Second),
	}}, view)
	require.NoError(t, err)
	assert.Empty(t, decisions)
	assert.Equal(t, StateIn, b.State())

	// Tick 3: best ask breaches take-profit, so a shaded exit sell goes out.
	view.book = bookAt(t, 104.15, 104.20)
	decisions, err = b.Decide(nil, view)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	exit, ok := decisions[0].(domain.LimitSell)
	require.True(t, ok, "expected a limit sell, got %T", decisions[0])
	assert.InDelta(t, 104.20*0.999, exit.Price.InexactFloat64(), 1e-9)
	require.NotNil(t, exit.Callback)
	exit.Callback("exit-1")
	assert.Equal(t, StateExiting, b.State())

	// Tick 4: the exit fill flattens the position.
	decisions, err = b.Decide([]domain.OrderUpdate{{
		ClientOrderID: "exit-1",
		Status:        domain.OrderStatusFilled,
		Side:          domain.OrderSideSell,
		FilledQty:     decimal.NewFromInt(1),
		Timestamp:     base.Add(10 * time.Second),
	}}, view)
	require.NoError(t, err)
	assert.Empty(t, decisions)
	assert.Equal(t, StateOut, b.State())
}

func TestBreakoutShortEntryOnFall(t *testing.T) {
	base := time.Now()
	view := &stubView{
		book: bookAt(t, 98, 98.10),
		quotes: []domain.Quote{
			quoteMid(base, 0, 100),
			quoteMid(base, 3*time.Second, 99.4),
			quoteMid(base, 6*time.Second, 98.5),
			quoteMid(base, 8*time.Second, 98),
		},
	}

	b, err := NewBreakout(testBreakoutConfig(), discardLogger())
	require.NoError(t, err)

	decisions, err := b.Decide(nil, view)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	entry, ok := decisions[0].(domain.TwoLeggedLimitSell)
	require.True(t, ok, "expected a two-legged limit sell, got %T", decisions[0])
	assert.InDelta(t, 98.0, entry.LimitPrice.InexactFloat64(), 1e-9)
	assert.InDelta(t, 98.0/1.02, entry.TakeProfitPrice.InexactFloat64(), 1e-9)
	assert.InDelta(t, 98.0/0.99, entry.StopLossPrice.InexactFloat64(), 1e-9)
	assert.Equal(t, StateEntering, b.State())
}

func TestBreakoutStaysOutWithoutEnoughQuotes(t *testing.T) {
	base := time.Now()
	view := &stubView{
		book:   bookAt(t, 102, 102.10),
		quotes: []domain.Quote{quoteMid(base, 0, 102)},
	}

	b, err := NewBreakout(testBreakoutConfig(), discardLogger())
	require.NoError(t, err)

	decisions, err := b.Decide(nil, view)
	require.NoError(t, err)
	assert.Empty(t, decisions)
	assert.Equal(t, StateOut, b.State())
}

func TestBreakoutIgnoresWideSpreadQuotes(t *testing.T) {
	base := time.Now()
	// The jump only exists in wide-spread quotes, which are filtered out.
	wide := func(offset time.Duration, mid float64) domain.Quote {
		return domain.Quote{
			BidPrice:  decimal.NewFromFloat(mid - 2),
			AskPrice:  decimal.NewFromFloat(mid + 2),
			Timestamp: base.Add(offset),
		}
	}
	view := &stubView{
		book: bookAt(t, 102, 102.10),
		quotes: []domain.Quote{
			quoteMid(base, 0, 100),
			wide(2*time.Second, 101),
			wide(4*time.Second, 102),
			quoteMid(base, 8*time.Second, 100.1),
		},
	}

	b, err := NewBreakout(testBreakoutConfig(), discardLogger())
	require.NoError(t, err)

	decisions, err := b.Decide(nil, view)
	require.NoError(t, err)
	assert.Empty(t, decisions)
	assert.Equal(t, StateOut, b.State())
}

func TestBreakoutMomentumConfirmation(t *testing.T) {
	base := time.Now()
	cfg := testBreakoutConfig()
	cfg.ConfirmWithMomentum = true

	b, err := NewBreakout(cfg, discardLogger())
	require.NoError(t, err)

	// No analyzer output yet: the jump alone is not enough.
	view := risingView(t, base)
	decisions, err := b.Decide(nil, view)
	require.NoError(t, err)
	assert.Empty(t, decisions)
	assert.Equal(t, StateOut, b.State())

	// Momentum disagreeing with the direction also blocks the entry.
	view.analysis = &domain.MomentumAnalysis{InstrumentID: "btc-usd", AskMomentum: -0.4}
	decisions, err = b.Decide(nil, view)
	require.NoError(t, err)
	assert.Empty(t, decisions)

	// Agreeing momentum lets the entry through.
	view.analysis = &domain.MomentumAnalysis{InstrumentID: "btc-usd", AskMomentum: 0.4}
	decisions, err = b.Decide(nil, view)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.IsType(t, domain.TwoLeggedLimitBuy{}, decisions[0])
}

func TestBreakoutEntryTimeoutCancels(t *testing.T) {
	base := time.Now()
	view := risingView(t, base)

	b, err := NewBreakout(testBreakoutConfig(), discardLogger())
	require.NoError(t, err)

	decisions, err := b.Decide(nil, view)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	decisions[0].(domain.TwoLeggedLimitBuy).Callback("entry-1")
	require.Equal(t, StateEntering, b.State())

	// Two silent ticks stay inside the budget.
	for i := 0; i < 2; i++ {
		decisions, err = b.Decide(nil, view)
		require.NoError(t, err)
		assert.Empty(t, decisions)
		assert.Equal(t, StateEntering, b.State())
	}

	// The third silent tick exceeds it: cancel and stand down.
	decisions, err = b.Decide(nil, view)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	cancel, ok := decisions[0].(domain.CancelOrder)
	require.True(t, ok, "expected a cancel, got %T", decisions[0])
	assert.Equal(t, "entry-1", cancel.ClientOrderID)
	assert.Equal(t, StateOut, b.State())

	// A fresh jump can re-enter immediately afterwards.
	decisions, err = b.Decide(nil, view)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.IsType(t, domain.TwoLeggedLimitBuy{}, decisions[0])
}

func TestBreakoutExitTimeoutFallsBackToIn(t *testing.T) {
	base := time.Now()
	view := risingView(t, base)

	b, err := NewBreakout(testBreakoutConfig(), discardLogger())
	require.NoError(t, err)

	// Drive to Exiting.
	decisions, err := b.Decide(nil, view)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	decisions[0].(domain.TwoLeggedLimitBuy).Callback("entry-1")
	_, err = b.Decide([]domain.OrderUpdate{{
		ClientOrderID:  "entry-1",
		Status:         domain.OrderStatusFilled,
		Side:           domain.OrderSideBuy,
		FilledAvgPrice: decimal.NewFromFloat(102.10),
	}}, view)
	require.NoError(t, err)
	view.book = bookAt(t, 104.15, 104.20)
	decisions, err = b.Decide(nil, view)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	decisions[0].(domain.LimitSell).Callback("exit-1")
	require.Equal(t, StateExiting, b.State())

	for i := 0; i < 2; i++ {
		decisions, err = b.Decide(nil, view)
		require.NoError(t, err)
		assert.Empty(t, decisions)
	}

	decisions, err = b.Decide(nil, view)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	cancel, ok := decisions[0].(domain.CancelOrder)
	require.True(t, ok, "expected a cancel, got %T", decisions[0])
	assert.Equal(t, "exit-1", cancel.ClientOrderID)
	assert.Equal(t, StateIn, b.State())
}

func TestBreakoutCrossSideFillDoesNotCommit(t *testing.T) {
	base := time.Now()
	view := risingView(t, base)

	b, err := NewBreakout(testBreakoutConfig(), discardLogger())
	require.NoError(t, err)

	decisions, err := b.Decide(nil, view)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	decisions[0].(domain.TwoLeggedLimitBuy).Callback("entry-1")

	// A sell-side fill on the entry id is the bracket leg racing us; it must
	// not transition a long entry into In.
	decisions, err = b.Decide([]domain.OrderUpdate{{
		ClientOrderID: "entry-1",
		Status:        domain.OrderStatusPartiallyFilled,
		Side:          domain.OrderSideSell,
		FilledQty:     decimal.NewFromInt(1),
	}}, view)
	require.NoError(t, err)
	assert.Empty(t, decisions)
	assert.Equal(t, StateEntering, b.State())
}

func TestBreakoutEntryRejectionResets(t *testing.T) {
	base := time.Now()
	view := risingView(t, base)

	b, err := NewBreakout(testBreakoutConfig(), discardLogger())
	require.NoError(t, err)

	decisions, err := b.Decide(nil, view)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	decisions[0].(domain.TwoLeggedLimitBuy).Callback("entry-1")

	decisions, err = b.Decide([]domain.OrderUpdate{{
		ClientOrderID: "entry-1",
		Status:        domain.OrderStatusRejected,
		Side:          domain.OrderSideBuy,
	}}, view)
	require.NoError(t, err)
	assert.Empty(t, decisions)
	assert.Equal(t, StateOut, b.State())
}

func TestBreakoutRatchetsStopOnFavorableBar(t *testing.T) {
	base := time.Now()
	view := risingView(t, base)

	b, err := NewBreakout(testBreakoutConfig(), discardLogger())
	require.NoError(t, err)

	decisions, err := b.Decide(nil, view)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	decisions[0].(domain.TwoLeggedLimitBuy).Callback("entry-1")
	_, err = b.Decide([]domain.OrderUpdate{{
		ClientOrderID:  "entry-1",
		Status:         domain.OrderStatusFilled,
		Side:           domain.OrderSideBuy,
		FilledAvgPrice: decimal.NewFromFloat(102.10),
	}}, view)
	require.NoError(t, err)
	require.Equal(t, StateIn, b.State())

	// Price below take-profit, but a green bar printed a new high above it.
	newHigh := 105.0
	view.book = bookAt(t, 103.40, 103.50)
	view.bars = []domain.Bar{{
		Open:      decimal.NewFromFloat(103),
		Close:     decimal.NewFromFloat(104.8),
		High:      decimal.NewFromFloat(newHigh),
		Low:       decimal.NewFromFloat(102.9),
		Timestamp: base.Add(12 * time.Second),
	}}

	decisions, err = b.Decide(nil, view)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	patch, ok := decisions[0].(domain.UpdateLimitPrice)
	require.True(t, ok, "expected a limit price update, got %T", decisions[0])
	assert.Equal(t, "entry-1", patch.ClientOrderID)
	assert.InDelta(t, newHigh*0.99, patch.NewLimitPrice.InexactFloat64(), 1e-9)
	assert.Equal(t, StateIn, b.State())
}

func TestBreakoutConfigValidation(t *testing.T) {
	base := testBreakoutConfig()

	for name, mutate := range map[string]func(*BreakoutConfig){
		"empty instrument": func(c *BreakoutConfig) { c.InstrumentID = "" },
		"zero quantity":    func(c *BreakoutConfig) { c.Quantity = decimal.Zero },
		"zero lookback":    func(c *BreakoutConfig) { c.Lookback = 0 },
		"jump <= 1":        func(c *BreakoutConfig) { c.JumpRatio = 1 },
		"fall >= 1":        func(c *BreakoutConfig) { c.FallRatio = 1 },
		"take profit <= 1": func(c *BreakoutConfig) { c.TakeProfitRatio = 1 },
		"stop loss >= 1":   func(c *BreakoutConfig) { c.StopLossRatio = 1 },
		"exit offset zero": func(c *BreakoutConfig) { c.ExitOffsetRatio = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			_, err := NewBreakout(cfg, discardLogger())
			assert.Error(t, err)
		})
	}
}
