package domain

import "time"

// TrendPoint is one sample of a fitted trend curve, in absolute price/time.
type TrendPoint struct {
	Value     float64
	Timestamp time.Time
}

// MomentumAnalysis is the output of one curve fit over a window of quotes.
// It is produced once per configured resolution per triggering quote and is
// never mutated after construction.
type MomentumAnalysis struct {
	InstrumentID     string
	Timestamp        time.Time
	BidMomentum      float64
	BidMomentumError float64
	BidTrend         []TrendPoint
	AskMomentum      float64
	AskMomentumError float64
	AskTrend         []TrendPoint
	ResolutionMs     int64
}
