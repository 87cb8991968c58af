package marketdata

import (
	"log/slog"
	"sync"
	"time"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// QuoteHandler consumes quotes as they arrive, synchronously on the delivery
// path. Handlers must be fast; anything slow buffers internally.
type QuoteHandler func(instrumentID string, q domain.Quote)

// TradeHandler consumes trades as they arrive.
type TradeHandler func(instrumentID string, t domain.Trade)

// Service is the push target for venue market-data adapters. It owns one
// OrderBook per instrument and the shared Buffer, and fans quotes and trades
// out to subscribers in registration order (FIFO per source). Subscribe
// before feeding data; subscription wiring is not synchronized with delivery.
type Service struct {
	mu        sync.RWMutex
	books     map[string]*OrderBook
	buffer    *Buffer
	quoteSubs []QuoteHandler
	tradeSubs []TradeHandler
	logger    *slog.Logger
}

// NewService creates a Service around the given buffer.
func NewService(buffer *Buffer, logger *slog.Logger) *Service {
	return &Service{
		books:  make(map[string]*OrderBook),
		buffer: buffer,
		logger: logger.With(slog.String("component", "marketdata")),
	}
}

// SubscribeQuotes registers a quote handler. Call before data starts flowing.
func (s *Service) SubscribeQuotes(h QuoteHandler) {
	s.quoteSubs = append(s.quoteSubs, h)
}

// SubscribeTrades registers a trade handler. Call before data starts flowing.
func (s *Service) SubscribeTrades(h TradeHandler) {
	s.tradeSubs = append(s.tradeSubs, h)
}

// OnQuote records a quote and delivers it to subscribers.
func (s *Service) OnQuote(instrumentID string, q domain.Quote) {
	s.buffer.AppendQuote(instrumentID, q)
	for _, h := range s.quoteSubs {
		h(instrumentID, q)
	}
}

// OnTrade records a trade and delivers it to subscribers.
func (s *Service) OnTrade(instrumentID string, t domain.Trade) {
	s.buffer.AppendTrade(instrumentID, t)
	for _, h := range s.tradeSubs {
		h(instrumentID, t)
	}
}

// OnBar records a bar.
func (s *Service) OnBar(instrumentID string, bar domain.Bar) {
	s.buffer.AppendBar(instrumentID, bar)
}

// OnOrderBookUpdate applies an update to the instrument's book, creating the
// book on first sight. A malformed update is logged and dropped.
func (s *Service) OnOrderBookUpdate(instrumentID string, u domain.OrderBookUpdate) {
	s.mu.Lock()
	book, ok := s.books[instrumentID]
	if !ok {
		book = NewOrderBook()
		s.books[instrumentID] = book
	}
	s.mu.Unlock()

	if err := book.ApplyUpdate(u); err != nil {
		s.logger.Error("dropping order book update",
			slog.String("instrument", instrumentID),
			slog.String("error", err.Error()),
		)
	}
}

// Book returns the live order book for the instrument, or nil if no update
// has arrived yet. The returned book is safe for concurrent reads.
func (s *Service) Book(instrumentID string) *OrderBook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.books[instrumentID]
}

// QuotesSince exposes the buffer's quote range retrieval.
func (s *Service) QuotesSince(instrumentID string, from time.Time) []domain.Quote {
	return s.buffer.QuotesSince(instrumentID, from)
}

// TradesSince exposes the buffer's trade range retrieval.
func (s *Service) TradesSince(instrumentID string, from time.Time) []domain.Trade {
	return s.buffer.TradesSince(instrumentID, from)
}

// Bars exposes the buffer's stored bars.
func (s *Service) Bars(instrumentID string) []domain.Bar {
	return s.buffer.Bars(instrumentID)
}

// LastQuote exposes the buffer's most recent quote.
func (s *Service) LastQuote(instrumentID string) (domain.Quote, bool) {
	return s.buffer.LastQuote(instrumentID)
}
