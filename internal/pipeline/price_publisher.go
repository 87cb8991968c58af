// Package pipeline moves engine output to external sinks on buffered worker
// loops. Publishers never block the market-data or analysis paths: when a
// sink cannot keep up, entries are dropped and counted, not queued without
// bound.
package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// QuoteSink receives the latest quote per instrument. The Redis quote cache
// implements it.
type QuoteSink interface {
	SetQuote(ctx context.Context, instrumentID string, q domain.Quote) error
}

type taggedQuote struct {
	instrumentID string
	quote        domain.Quote
}

// PricePublisher mirrors the live quote stream into a sink. OnQuote is wired
// as a market-data subscription and only enqueues; Run does the writing.
type PricePublisher struct {
	sink    QuoteSink
	queue   chan taggedQuote
	logger  *slog.Logger
	dropped atomic.Int64
}

func NewPricePublisher(sink QuoteSink, bufferSize int, logger *slog.Logger) *PricePublisher {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &PricePublisher{
		sink:   sink,
		queue:  make(chan taggedQuote, bufferSize),
		logger: logger.With(slog.String("component", "price_publisher")),
	}
}

// OnQuote enqueues a quote for publication. Never blocks.
func (p *PricePublisher) OnQuote(instrumentID string, q domain.Quote) {
	select {
	case p.queue <- taggedQuote{instrumentID: instrumentID, quote: q}:
	default:
		if n := p.dropped.Add(1); n%1000 == 1 {
			p.logger.Warn("quote sink lagging, dropping quotes", slog.Int64("dropped", n))
		}
	}
}

// Run drains the queue into the sink until the context is cancelled.
func (p *PricePublisher) Run(ctx context.Context) error {
	p.logger.Info("price publisher started", slog.Int("buffer", cap(p.queue)))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("price publisher stopped")
			return ctx.Err()
		case tq := <-p.queue:
			if err := p.sink.SetQuote(ctx, tq.instrumentID, tq.quote); err != nil {
				p.logger.Error("quote publish failed",
					slog.String("instrument", tq.instrumentID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
