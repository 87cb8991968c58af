package marketdata

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

func quoteAt(ts time.Time, bid, ask float64) domain.Quote {
	return domain.Quote{
		BidPrice:  decimal.NewFromFloat(bid),
		BidQty:    decimal.NewFromInt(1),
		AskPrice:  decimal.NewFromFloat(ask),
		AskQty:    decimal.NewFromInt(1),
		Timestamp: ts,
	}
}

func TestBufferQuotesSince(t *testing.T) {
	b := NewBuffer(0)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		b.AppendQuote("btc-usd", quoteAt(base.Add(time.Duration(i)*time.Second), 100, 101))
	}

	got := b.QuotesSince("btc-usd", base.Add(7*time.Second))
	require.Len(t, got, 3)
	assert.Equal(t, base.Add(7*time.Second), got[0].Timestamp)

	assert.Nil(t, b.QuotesSince("btc-usd", base.Add(time.Hour)))
	assert.Nil(t, b.QuotesSince("eth-usd", base))
}

func TestBufferClampsRegressingTimestamps(t *testing.T) {
	b := NewBuffer(0)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	b.AppendQuote("btc-usd", quoteAt(base.Add(5*time.Second), 100, 101))
	// Arrives late with an earlier timestamp: stored in arrival order with a
	// clamped timestamp.
	b.AppendQuote("btc-usd", quoteAt(base.Add(2*time.Second), 99, 100))

	got := b.QuotesSince("btc-usd", base)
	require.Len(t, got, 2)
	assert.Equal(t, base.Add(5*time.Second), got[1].Timestamp)
	assert.True(t, got[1].BidPrice.Equal(decimal.NewFromInt(99)))
}

func TestBufferTrimsBeyondHorizon(t *testing.T) {
	b := NewBuffer(10 * time.Second)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		b.AppendQuote("btc-usd", quoteAt(base.Add(time.Duration(i)*time.Second), 100, 101))
	}

	got := b.QuotesSince("btc-usd", base)
	require.NotEmpty(t, got)
	oldest := got[0].Timestamp
	assert.False(t, oldest.Before(base.Add(19*time.Second)))
}

func TestBufferTradesAndBars(t *testing.T) {
	b := NewBuffer(0)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	b.AppendTrade("btc-usd", domain.Trade{
		Price:      decimal.NewFromInt(100),
		Qty:        decimal.NewFromInt(2),
		Timestamp:  base,
		ExternalID: "x1",
	})
	b.AppendBar("btc-usd", domain.Bar{
		Open:      decimal.NewFromInt(99),
		Close:     decimal.NewFromInt(101),
		High:      decimal.NewFromInt(102),
		Low:       decimal.NewFromInt(98),
		Timestamp: base,
	})

	trades := b.TradesSince("btc-usd", base)
	require.Len(t, trades, 1)
	assert.Equal(t, "x1", trades[0].ExternalID)

	bars := b.Bars("btc-usd")
	require.Len(t, bars, 1)
	assert.True(t, bars[0].IsGreen())
	assert.False(t, bars[0].IsRed())

	last, ok := b.LastQuote("btc-usd")
	assert.False(t, ok)
	assert.Zero(t, last.Timestamp)
}
