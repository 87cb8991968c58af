package analysis

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// trendSampleStep is the sampling interval for the projected trend curve.
const trendSampleStep = 250 * time.Millisecond

// CurveFitOrder maps a minimum quote count to the polynomial order used when
// that count is reached. Denser windows earn higher-order fits.
type CurveFitOrder struct {
	MinNumQuotes int
	Order        int
}

// Resolution is one analysis window configuration.
type Resolution struct {
	TimeWindow     time.Duration
	CurveFitOrders []CurveFitOrder
}

// Config configures a MomentumAnalyzer for one instrument.
type Config struct {
	InstrumentID string
	Resolutions  []Resolution
	// MaxSpread excludes wide-spread quotes from the fit window; they are
	// noise.
	MaxSpread decimal.Decimal
}

// QuoteHistory is the slice of the market-data buffer the analyzer needs.
type QuoteHistory interface {
	QuotesSince(instrumentID string, from time.Time) []domain.Quote
}

// Consumer receives each emitted analysis, synchronously and in emission
// order.
type Consumer func(domain.MomentumAnalysis)

// MomentumAnalyzer converts raw quote arrivals into smoothed rate-of-change
// estimates. It is a pure function of buffered history plus configuration:
// it holds no market state of its own and is restartable from the buffer.
type MomentumAnalyzer struct {
	cfg       Config
	history   QuoteHistory
	consumers []Consumer
	logger    *slog.Logger
}

// NewMomentumAnalyzer validates the configuration and creates an analyzer.
// Each resolution's CurveFitOrders table must be non-empty and strictly
// ascending by MinNumQuotes.
func NewMomentumAnalyzer(cfg Config, history QuoteHistory, logger *slog.Logger) (*MomentumAnalyzer, error) {
	if cfg.InstrumentID == "" {
		return nil, fmt.Errorf("momentum analyzer: instrument id is empty")
	}
	if len(cfg.Resolutions) == 0 {
		return nil, fmt.Errorf("momentum analyzer: no resolutions configured")
	}
	for _, res := range cfg.Resolutions {
		if res.TimeWindow <= 0 {
			return nil, fmt.Errorf("momentum analyzer: time window must be positive")
		}
		if len(res.CurveFitOrders) == 0 {
			return nil, fmt.Errorf("momentum analyzer: curve fit order table cannot be empty")
		}
		for i := 1; i < len(res.CurveFitOrders); i++ {
			if res.CurveFitOrders[i].MinNumQuotes <= res.CurveFitOrders[i-1].MinNumQuotes {
				return nil, fmt.Errorf("momentum analyzer: curve fit order table must be strictly ascending by min quote count")
			}
		}
	}
	return &MomentumAnalyzer{
		cfg:     cfg,
		history: history,
		logger:  logger.With(slog.String("component", "momentum_analyzer"), slog.String("instrument", cfg.InstrumentID)),
	}, nil
}

// Subscribe registers a consumer. Call before quotes start flowing.
func (m *MomentumAnalyzer) Subscribe(c Consumer) {
	m.consumers = append(m.consumers, c)
}

// OnQuote runs one analysis pass per configured resolution for the triggering
// quote. It is invoked synchronously on the market-data delivery path and is
// registered with the market-data service as a quote subscriber.
func (m *MomentumAnalyzer) OnQuote(instrumentID string, quote domain.Quote) {
	if instrumentID != m.cfg.InstrumentID {
		return
	}

	for _, res := range m.cfg.Resolutions {
		analysis, err := m.analyze(res, quote)
		if err != nil {
			// Unsolvable fits are fatal to this update only: logged, dropped.
			m.logger.Error("dropping analysis pass",
				slog.Int64("resolution_ms", res.TimeWindow.Milliseconds()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if analysis == nil {
			continue
		}
		for _, c := range m.consumers {
			c(*analysis)
		}
	}
}

// analyze returns nil without error when the window holds too few quotes for
// any configured fit order (not enough data yet is not an error).
func (m *MomentumAnalyzer) analyze(res Resolution, quote domain.Quote) (*domain.MomentumAnalysis, error) {
	windowStart := quote.Timestamp.Add(-res.TimeWindow)
	quotes := m.history.QuotesSince(m.cfg.InstrumentID, windowStart)

	selected := quotes[:0:0]
	for _, q := range quotes {
		if q.Spread().LessThanOrEqual(m.cfg.MaxSpread) {
			selected = append(selected, q)
		}
	}

	order, ok := pickOrder(res.CurveFitOrders, len(selected))
	if !ok {
		return nil, nil
	}
	if len(selected) <= order {
		return nil, fmt.Errorf("%w: %d quotes for order %d", domain.ErrUnderDeterminedFit, len(selected), order)
	}

	// Re-center both axes on the triggering quote so the fit is evaluated
	// near zero.
	refBid := quote.BidPrice.InexactFloat64()
	refAsk := quote.AskPrice.InexactFloat64()
	xs := make([]float64, len(selected))
	bids := make([]float64, len(selected))
	asks := make([]float64, len(selected))
	for i, q := range selected {
		xs[i] = q.Timestamp.Sub(quote.Timestamp).Seconds()
		bids[i] = q.BidPrice.InexactFloat64() - refBid
		asks[i] = q.AskPrice.InexactFloat64() - refAsk
	}

	bidCoeffs, bidErr, err := Fit(xs, bids, order)
	if err != nil {
		return nil, fmt.Errorf("bid fit: %w", err)
	}
	askCoeffs, askErr, err := Fit(xs, asks, order)
	if err != nil {
		return nil, fmt.Errorf("ask fit: %w", err)
	}

	return &domain.MomentumAnalysis{
		InstrumentID:     m.cfg.InstrumentID,
		Timestamp:        quote.Timestamp,
		BidMomentum:      Eval(Derive(bidCoeffs), 0),
		BidMomentumError: bidErr,
		BidTrend:         sampleTrend(bidCoeffs, refBid, quote.Timestamp, res.TimeWindow),
		AskMomentum:      Eval(Derive(askCoeffs), 0),
		AskMomentumError: askErr,
		AskTrend:         sampleTrend(askCoeffs, refAsk, quote.Timestamp, res.TimeWindow),
		ResolutionMs:     res.TimeWindow.Milliseconds(),
	}, nil
}

// pickOrder returns the largest table entry whose threshold the quote count
// meets.
func pickOrder(table []CurveFitOrder, numQuotes int) (int, bool) {
	order, ok := 0, false
	for _, entry := range table {
		if numQuotes >= entry.MinNumQuotes {
			order, ok = entry.Order, true
		}
	}
	return order, ok
}

// sampleTrend evaluates the fitted polynomial across the window and shifts it
// back to absolute price and time.
func sampleTrend(coeffs []float64, refPrice float64, at time.Time, window time.Duration) []domain.TrendPoint {
	points := make([]domain.TrendPoint, 0, int(window/trendSampleStep)+1)
	for offset := -window; offset <= 0; offset += trendSampleStep {
		points = append(points, domain.TrendPoint{
			Value:     Eval(coeffs, offset.Seconds()) + refPrice,
			Timestamp: at.Add(offset),
		})
	}
	return points
}
