package marketdata

import (
	"sort"
	"sync"
	"time"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// Buffer is the append-only, time-ordered store of recent quotes, trades and
// bars per instrument. Arrivals are stored in arrival order; a timestamp that
// regresses below the previous entry is clamped to it, so every sequence stays
// non-decreasing and range retrieval by binary search stays correct.
type Buffer struct {
	mu      sync.RWMutex
	horizon time.Duration
	series  map[string]*series
}

type series struct {
	quotes []domain.Quote
	trades []domain.Trade
	bars   []domain.Bar
}

// NewBuffer creates a Buffer that retains entries no older than horizon
// relative to the newest entry of the same sequence. A zero horizon disables
// trimming.
func NewBuffer(horizon time.Duration) *Buffer {
	return &Buffer{
		horizon: horizon,
		series:  make(map[string]*series),
	}
}

func (b *Buffer) seriesFor(instrumentID string) *series {
	s, ok := b.series[instrumentID]
	if !ok {
		s = &series{}
		b.series[instrumentID] = s
	}
	return s
}

// AppendQuote stores a quote for the instrument.
func (b *Buffer) AppendQuote(instrumentID string, q domain.Quote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.seriesFor(instrumentID)
	if n := len(s.quotes); n > 0 && q.Timestamp.Before(s.quotes[n-1].Timestamp) {
		q.Timestamp = s.quotes[n-1].Timestamp
	}
	s.quotes = append(s.quotes, q)
	if b.horizon > 0 {
		cutoff := q.Timestamp.Add(-b.horizon)
		i := sort.Search(len(s.quotes), func(i int) bool {
			return !s.quotes[i].Timestamp.Before(cutoff)
		})
		if i > 0 {
			s.quotes = append(s.quotes[:0:0], s.quotes[i:]...)
		}
	}
}

// AppendTrade stores a trade for the instrument.
func (b *Buffer) AppendTrade(instrumentID string, t domain.Trade) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.seriesFor(instrumentID)
	if n := len(s.trades); n > 0 && t.Timestamp.Before(s.trades[n-1].Timestamp) {
		t.Timestamp = s.trades[n-1].Timestamp
	}
	s.trades = append(s.trades, t)
	if b.horizon > 0 {
		cutoff := t.Timestamp.Add(-b.horizon)
		i := sort.Search(len(s.trades), func(i int) bool {
			return !s.trades[i].Timestamp.Before(cutoff)
		})
		if i > 0 {
			s.trades = append(s.trades[:0:0], s.trades[i:]...)
		}
	}
}

// AppendBar stores a bar for the instrument. Bars are few; they are kept for
// the full process lifetime.
func (b *Buffer) AppendBar(instrumentID string, bar domain.Bar) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.seriesFor(instrumentID)
	if n := len(s.bars); n > 0 && bar.Timestamp.Before(s.bars[n-1].Timestamp) {
		bar.Timestamp = s.bars[n-1].Timestamp
	}
	s.bars = append(s.bars, bar)
}

// QuotesSince returns a copy of all quotes with timestamp >= from, oldest
// first.
func (b *Buffer) QuotesSince(instrumentID string, from time.Time) []domain.Quote {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.series[instrumentID]
	if !ok {
		return nil
	}
	i := sort.Search(len(s.quotes), func(i int) bool {
		return !s.quotes[i].Timestamp.Before(from)
	})
	if i == len(s.quotes) {
		return nil
	}
	out := make([]domain.Quote, len(s.quotes)-i)
	copy(out, s.quotes[i:])
	return out
}

// TradesSince returns a copy of all trades with timestamp >= from, oldest
// first.
func (b *Buffer) TradesSince(instrumentID string, from time.Time) []domain.Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.series[instrumentID]
	if !ok {
		return nil
	}
	i := sort.Search(len(s.trades), func(i int) bool {
		return !s.trades[i].Timestamp.Before(from)
	})
	if i == len(s.trades) {
		return nil
	}
	out := make([]domain.Trade, len(s.trades)-i)
	copy(out, s.trades[i:])
	return out
}

// Bars returns a copy of all stored bars for the instrument, oldest first.
func (b *Buffer) Bars(instrumentID string) []domain.Bar {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.series[instrumentID]
	if !ok || len(s.bars) == 0 {
		return nil
	}
	out := make([]domain.Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// LastQuote returns the most recent quote for the instrument, if any.
func (b *Buffer) LastQuote(instrumentID string) (domain.Quote, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.series[instrumentID]
	if !ok || len(s.quotes) == 0 {
		return domain.Quote{}, false
	}
	return s.quotes[len(s.quotes)-1], true
}
