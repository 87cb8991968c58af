package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// QuoteCache mirrors the latest quote per instrument into Redis hashes so
// dashboards and other processes can read live top-of-book without touching
// the engine. Each instrument lives at "quote:{instrumentID}" with fields
// "bid", "ask", "mid" and "ts" (Unix nanoseconds).
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteKey(instrumentID string) string {
	return "quote:" + instrumentID
}

// SetQuote stores the latest quote for an instrument.
func (qc *QuoteCache) SetQuote(ctx context.Context, instrumentID string, q domain.Quote) error {
	fields := map[string]interface{}{
		"bid": q.BidPrice.String(),
		"ask": q.AskPrice.String(),
		"mid": q.Mid().String(),
		"ts":  strconv.FormatInt(q.Timestamp.UnixNano(), 10),
	}
	if err := qc.rdb.HSet(ctx, quoteKey(instrumentID), fields).Err(); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", instrumentID, err)
	}
	return nil
}

// GetQuote retrieves the latest cached quote for an instrument. It returns
// domain.ErrNotFound when the key does not exist.
func (qc *QuoteCache) GetQuote(ctx context.Context, instrumentID string) (domain.Quote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(instrumentID)).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", instrumentID, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	bid, err := decimal.NewFromString(vals["bid"])
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse bid %s: %w", instrumentID, err)
	}
	ask, err := decimal.NewFromString(vals["ask"])
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse ask %s: %w", instrumentID, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse ts %s: %w", instrumentID, err)
	}

	return domain.Quote{
		BidPrice:  bid,
		AskPrice:  ask,
		Timestamp: time.Unix(0, tsNano),
	}, nil
}
