package analysis

import (
	"sync"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// Latest retains the most recent analysis per instrument so strategies can
// read analyzer output without subscribing to the stream. Register its Store
// method as an analyzer consumer.
type Latest struct {
	mu     sync.RWMutex
	byInst map[string]domain.MomentumAnalysis
}

// NewLatest creates an empty holder.
func NewLatest() *Latest {
	return &Latest{byInst: make(map[string]domain.MomentumAnalysis)}
}

// Store records the analysis as the latest for its instrument.
func (l *Latest) Store(a domain.MomentumAnalysis) {
	l.mu.Lock()
	l.byInst[a.InstrumentID] = a
	l.mu.Unlock()
}

// Get returns the latest analysis for the instrument, if any.
func (l *Latest) Get(instrumentID string) (domain.MomentumAnalysis, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.byInst[instrumentID]
	return a, ok
}
