package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// SignalBus publishes momentum analyses over Redis Pub/Sub so external
// consumers (dashboards, research notebooks) can follow the analyzer in real
// time without a connection into the engine.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// AnalysisChannel is the Pub/Sub channel for one instrument's analyses.
func AnalysisChannel(instrumentID string) string {
	return "analysis:" + instrumentID
}

// analysisMessage is the wire form of a momentum analysis. The trend series
// is omitted to keep messages small; subscribers needing it read the curve
// parameters instead.
type analysisMessage struct {
	InstrumentID     string    `json:"instrument_id"`
	Timestamp        time.Time `json:"timestamp"`
	BidMomentum      float64   `json:"bid_momentum"`
	BidMomentumError float64   `json:"bid_momentum_error"`
	AskMomentum      float64   `json:"ask_momentum"`
	AskMomentumError float64   `json:"ask_momentum_error"`
	ResolutionMs     int64     `json:"resolution_ms"`
}

// PublishAnalysis serializes the analysis and publishes it on the
// instrument's channel.
func (sb *SignalBus) PublishAnalysis(ctx context.Context, a domain.MomentumAnalysis) error {
	payload, err := json.Marshal(analysisMessage{
		InstrumentID:     a.InstrumentID,
		Timestamp:        a.Timestamp,
		BidMomentum:      a.BidMomentum,
		BidMomentumError: a.BidMomentumError,
		AskMomentum:      a.AskMomentum,
		AskMomentumError: a.AskMomentumError,
		ResolutionMs:     a.ResolutionMs,
	})
	if err != nil {
		return fmt.Errorf("redis: marshal analysis %s: %w", a.InstrumentID, err)
	}
	if err := sb.rdb.Publish(ctx, AnalysisChannel(a.InstrumentID), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish analysis %s: %w", a.InstrumentID, err)
	}
	return nil
}

// Subscribe creates a Pub/Sub subscription and returns a read-only channel of
// raw payloads. The subscription closes with the context.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var pubsub *redis.PubSub
	if hasPattern(channel) {
		pubsub = sb.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = sb.rdb.Subscribe(ctx, channel)
	}

	// Receive the confirmation so a broken subscription fails loudly here.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// hasPattern reports whether the channel name contains glob-style wildcards,
// which require PSubscribe.
func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}
