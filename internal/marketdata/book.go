// Package marketdata maintains the in-memory market state: per-instrument
// order books and the append-only quote/trade/bar buffer. Venue adapters are
// the single writer per instrument; strategies and analyzers read.
package marketdata

import (
	"sort"
	"sync"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// OrderBook holds the current bid and ask levels for one instrument. Bids are
// kept strictly descending by price, asks strictly ascending, prices unique,
// and no level ever has zero quantity. A whole update becomes visible to
// readers atomically.
type OrderBook struct {
	mu   sync.RWMutex
	bids []domain.PriceLevel
	asks []domain.PriceLevel
}

// NewOrderBook creates an empty book.
func NewOrderBook() *OrderBook {
	return &OrderBook{}
}

// ApplyUpdate applies a replace or incremental update. An update with an
// unknown kind is rejected with domain.ErrInvalidBookUpdate and leaves the
// book untouched.
func (b *OrderBook) ApplyUpdate(u domain.OrderBookUpdate) error {
	switch u.Kind {
	case domain.OrderBookUpdateKindReplace:
		bids := mergeLevels(nil, u.Bids, true)
		asks := mergeLevels(nil, u.Asks, false)
		b.mu.Lock()
		b.bids, b.asks = bids, asks
		b.mu.Unlock()
		return nil
	case domain.OrderBookUpdateKindUpdate:
		b.mu.Lock()
		b.bids = mergeLevels(b.bids, u.Bids, true)
		b.asks = mergeLevels(b.asks, u.Asks, false)
		b.mu.Unlock()
		return nil
	default:
		return domain.ErrInvalidBookUpdate
	}
}

// Bids returns a copy of the bid levels, best (highest) price first.
func (b *OrderBook) Bids() []domain.PriceLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyLevels(b.bids)
}

// Asks returns a copy of the ask levels, best (lowest) price first.
func (b *OrderBook) Asks() []domain.PriceLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyLevels(b.asks)
}

// BestBid returns the highest bid level, if any.
func (b *OrderBook) BestBid() (domain.PriceLevel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return domain.PriceLevel{}, false
	}
	return b.bids[0], true
}

// BestAsk returns the lowest ask level, if any.
func (b *OrderBook) BestAsk() (domain.PriceLevel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return domain.PriceLevel{}, false
	}
	return b.asks[0], true
}

// mergeLevels applies incoming levels to a sorted side. Matching prices are
// overwritten (or removed on zero quantity), new prices are inserted at their
// sort position. descending selects bid ordering.
func mergeLevels(side []domain.PriceLevel, incoming []domain.PriceLevel, descending bool) []domain.PriceLevel {
	for _, lvl := range incoming {
		idx := sort.Search(len(side), func(i int) bool {
			if descending {
				return side[i].Price.LessThanOrEqual(lvl.Price)
			}
			return side[i].Price.GreaterThanOrEqual(lvl.Price)
		})
		matched := idx < len(side) && side[idx].Price.Equal(lvl.Price)
		switch {
		case matched && lvl.Quantity.IsZero():
			side = append(side[:idx], side[idx+1:]...)
		case matched:
			side[idx].Quantity = lvl.Quantity
		case lvl.Quantity.IsZero():
			// Removal of an absent level is a no-op.
		default:
			side = append(side, domain.PriceLevel{})
			copy(side[idx+1:], side[idx:])
			side[idx] = lvl
		}
	}
	return side
}

func copyLevels(side []domain.PriceLevel) []domain.PriceLevel {
	if len(side) == 0 {
		return nil
	}
	out := make([]domain.PriceLevel, len(side))
	copy(out, side)
	return out
}
