package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// AnalysisSink receives analyzer output. The Redis signal bus implements it.
type AnalysisSink interface {
	PublishAnalysis(ctx context.Context, a domain.MomentumAnalysis) error
}

// AnalysisPublisher forwards momentum analyses to a sink. OnAnalysis is wired
// as an analyzer consumer and only enqueues; Run does the publishing.
type AnalysisPublisher struct {
	sink    AnalysisSink
	queue   chan domain.MomentumAnalysis
	logger  *slog.Logger
	dropped atomic.Int64
}

func NewAnalysisPublisher(sink AnalysisSink, bufferSize int, logger *slog.Logger) *AnalysisPublisher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &AnalysisPublisher{
		sink:   sink,
		queue:  make(chan domain.MomentumAnalysis, bufferSize),
		logger: logger.With(slog.String("component", "analysis_publisher")),
	}
}

// OnAnalysis enqueues an analysis for publication. Never blocks.
func (p *AnalysisPublisher) OnAnalysis(a domain.MomentumAnalysis) {
	select {
	case p.queue <- a:
	default:
		if n := p.dropped.Add(1); n%100 == 1 {
			p.logger.Warn("analysis sink lagging, dropping analyses", slog.Int64("dropped", n))
		}
	}
}

// Run drains the queue into the sink until the context is cancelled.
func (p *AnalysisPublisher) Run(ctx context.Context) error {
	p.logger.Info("analysis publisher started", slog.Int("buffer", cap(p.queue)))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("analysis publisher stopped")
			return ctx.Err()
		case a := <-p.queue:
			if err := p.sink.PublishAnalysis(ctx, a); err != nil {
				p.logger.Error("analysis publish failed",
					slog.String("instrument", a.InstrumentID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
