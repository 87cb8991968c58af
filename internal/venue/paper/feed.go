package paper

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// MarketDataSink is where the feed pushes generated market data. The
// market-data service implements it.
type MarketDataSink interface {
	OnQuote(instrumentID string, q domain.Quote)
	OnTrade(instrumentID string, t domain.Trade)
	OnBar(instrumentID string, bar domain.Bar)
	OnOrderBookUpdate(instrumentID string, u domain.OrderBookUpdate)
}

// FeedConfig parameterizes the synthetic walk for one instrument.
type FeedConfig struct {
	InstrumentID string
	StartPrice   float64
	// SpreadBps is the quoted spread in basis points of the mid.
	SpreadBps float64
	// DriftPerTick and VolPerTick shape the geometric random walk.
	DriftPerTick float64
	VolPerTick   float64
	Interval     time.Duration
	// BarEvery aggregates a bar from this many ticks.
	BarEvery int
	Seed     int64
}

// Feed generates a geometric random walk of quotes, book snapshots, trades
// and bars for one instrument and pushes them into the sink. It exists so
// paper mode exercises the full pipeline with realistic-looking data.
type Feed struct {
	cfg    FeedConfig
	sink   MarketDataSink
	rng    *rand.Rand
	logger *slog.Logger
}

func NewFeed(cfg FeedConfig, sink MarketDataSink, logger *slog.Logger) (*Feed, error) {
	if cfg.InstrumentID == "" {
		return nil, fmt.Errorf("paper: feed: instrument id is empty")
	}
	if cfg.StartPrice <= 0 {
		return nil, fmt.Errorf("paper: feed: start price must be positive")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	if cfg.SpreadBps <= 0 {
		cfg.SpreadBps = 5
	}
	if cfg.BarEvery <= 0 {
		cfg.BarEvery = 50
	}
	return &Feed{
		cfg:    cfg,
		sink:   sink,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: logger.With(slog.String("component", "paper_feed"), slog.String("instrument", cfg.InstrumentID)),
	}, nil
}

// Run blocks generating market data until the context is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	f.logger.Info("synthetic feed started",
		slog.Float64("start_price", f.cfg.StartPrice),
		slog.Duration("interval", f.cfg.Interval),
	)

	mid := f.cfg.StartPrice
	var barOpen, barHigh, barLow, volume float64
	ticksInBar := 0

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("synthetic feed stopped")
			return ctx.Err()
		case now := <-ticker.C:
			mid *= math.Exp(f.cfg.DriftPerTick + f.cfg.VolPerTick*f.rng.NormFloat64())
			f.emitTick(mid, now)

			if ticksInBar == 0 {
				barOpen, barHigh, barLow, volume = mid, mid, mid, 0
			}
			barHigh = math.Max(barHigh, mid)
			barLow = math.Min(barLow, mid)
			volume += 1 + f.rng.Float64()
			ticksInBar++
			if ticksInBar >= f.cfg.BarEvery {
				f.sink.OnBar(f.cfg.InstrumentID, domain.Bar{
					Open:      decimal.NewFromFloat(barOpen),
					Close:     decimal.NewFromFloat(mid),
					High:      decimal.NewFromFloat(barHigh),
					Low:       decimal.NewFromFloat(barLow),
					Volume:    decimal.NewFromFloat(volume),
					VWAP:      decimal.NewFromFloat((barOpen + barHigh + barLow + mid) / 4),
					Timestamp: now,
				})
				ticksInBar = 0
			}
		}
	}
}

func (f *Feed) emitTick(mid float64, now time.Time) {
	half := mid * f.cfg.SpreadBps / 10000 / 2
	bid, ask := mid-half, mid+half

	f.sink.OnQuote(f.cfg.InstrumentID, domain.Quote{
		BidPrice:  decimal.NewFromFloat(bid),
		BidQty:    decimal.NewFromFloat(1 + f.rng.Float64()*4),
		AskPrice:  decimal.NewFromFloat(ask),
		AskQty:    decimal.NewFromFloat(1 + f.rng.Float64()*4),
		Timestamp: now,
	})

	f.sink.OnOrderBookUpdate(f.cfg.InstrumentID, domain.OrderBookUpdate{
		Kind:      domain.OrderBookUpdateKindReplace,
		Bids:      f.ladder(bid, -1),
		Asks:      f.ladder(ask, +1),
		Timestamp: now,
	})

	// A trade prints on roughly every third tick, at a side picked at random.
	if f.rng.Intn(3) == 0 {
		price := bid
		if f.rng.Intn(2) == 0 {
			price = ask
		}
		f.sink.OnTrade(f.cfg.InstrumentID, domain.Trade{
			Price:      decimal.NewFromFloat(price),
			Qty:        decimal.NewFromFloat(0.1 + f.rng.Float64()),
			Timestamp:  now,
			ExternalID: fmt.Sprintf("paper-%d", f.rng.Int63()),
		})
	}
}

// ladder fans three levels out from the touch, stepping away by one spread
// increment per level.
func (f *Feed) ladder(touch float64, direction float64) []domain.PriceLevel {
	step := touch * f.cfg.SpreadBps / 10000
	levels := make([]domain.PriceLevel, 0, 3)
	for i := 0; i < 3; i++ {
		levels = append(levels, domain.PriceLevel{
			Price:    decimal.NewFromFloat(touch + direction*step*float64(i)),
			Quantity: decimal.NewFromFloat(1 + f.rng.Float64()*9),
		})
	}
	return levels
}
