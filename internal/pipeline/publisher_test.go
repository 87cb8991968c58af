package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type captureQuoteSink struct {
	mu     sync.Mutex
	quotes []string
	done   chan struct{}
	want   int
}

func (s *captureQuoteSink) SetQuote(_ context.Context, instrumentID string, _ domain.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = append(s.quotes, instrumentID)
	if len(s.quotes) == s.want {
		close(s.done)
	}
	return nil
}

func TestPricePublisherDeliversQueuedQuotes(t *testing.T) {
	sink := &captureQuoteSink{done: make(chan struct{}), want: 3}
	pub := NewPricePublisher(sink, 16, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pub.Run(ctx) }()

	q := domain.Quote{BidPrice: decimal.NewFromInt(100), AskPrice: decimal.NewFromInt(101), Timestamp: time.Now()}
	pub.OnQuote("btc-usd", q)
	pub.OnQuote("eth-usd", q)
	pub.OnQuote("btc-usd", q)

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher did not deliver quotes in time")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []string{"btc-usd", "eth-usd", "btc-usd"}, sink.quotes)
}

func TestPricePublisherDropsWhenFull(t *testing.T) {
	// No Run loop draining: the buffer fills and extra quotes are dropped
	// without blocking the caller.
	pub := NewPricePublisher(&captureQuoteSink{done: make(chan struct{})}, 2, discardLogger())

	q := domain.Quote{BidPrice: decimal.NewFromInt(100), AskPrice: decimal.NewFromInt(101)}
	for i := 0; i < 10; i++ {
		pub.OnQuote("btc-usd", q)
	}

	assert.Len(t, pub.queue, 2)
	assert.EqualValues(t, 8, pub.dropped.Load())
}

type captureAnalysisSink struct {
	mu       sync.Mutex
	received []domain.MomentumAnalysis
	done     chan struct{}
}

func (s *captureAnalysisSink) PublishAnalysis(_ context.Context, a domain.MomentumAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, a)
	if len(s.received) == 1 {
		close(s.done)
	}
	return nil
}

func TestAnalysisPublisherDelivers(t *testing.T) {
	sink := &captureAnalysisSink{done: make(chan struct{})}
	pub := NewAnalysisPublisher(sink, 16, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pub.Run(ctx) }()

	pub.OnAnalysis(domain.MomentumAnalysis{InstrumentID: "btc-usd", AskMomentum: 0.5})

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher did not deliver analysis in time")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.received, 1)
	assert.Equal(t, "btc-usd", sink.received[0].InstrumentID)
}
