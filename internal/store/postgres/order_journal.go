package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// journalEntry is one pending write. Exactly one of the two fields is set.
type journalEntry struct {
	placed *domain.Order
	update *orderEvent
}

type orderEvent struct {
	order  domain.Order
	update domain.OrderUpdate
}

// OrderJournal persists order placements and lifecycle events. It implements
// the order service's Recorder interface; writes are queued on a buffered
// channel and flushed by Run so the trading path never waits on the
// database. When the buffer is full the entry is dropped and logged; the
// ledger, not this journal, is the source of truth for live state.
type OrderJournal struct {
	pool   *pgxpool.Pool
	queue  chan journalEntry
	logger *slog.Logger
}

func NewOrderJournal(pool *pgxpool.Pool, bufferSize int, logger *slog.Logger) *OrderJournal {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &OrderJournal{
		pool:   pool,
		queue:  make(chan journalEntry, bufferSize),
		logger: logger.With(slog.String("component", "order_journal")),
	}
}

// OrderPlaced implements the Recorder interface.
func (j *OrderJournal) OrderPlaced(order domain.Order) {
	j.enqueue(journalEntry{placed: &order})
}

// OrderUpdated implements the Recorder interface.
func (j *OrderJournal) OrderUpdated(order domain.Order, update domain.OrderUpdate) {
	j.enqueue(journalEntry{update: &orderEvent{order: order, update: update}})
}

func (j *OrderJournal) enqueue(entry journalEntry) {
	select {
	case j.queue <- entry:
	default:
		j.logger.Warn("journal buffer full, dropping entry")
	}
}

// Run drains the queue until the context is cancelled, then flushes whatever
// is still buffered.
func (j *OrderJournal) Run(ctx context.Context) error {
	j.logger.Info("order journal started", slog.Int("buffer", cap(j.queue)))

	for {
		select {
		case <-ctx.Done():
			j.flush()
			j.logger.Info("order journal stopped")
			return ctx.Err()
		case entry := <-j.queue:
			j.write(ctx, entry)
		}
	}
}

// flush writes remaining entries with a short deadline detached from the
// cancelled run context.
func (j *OrderJournal) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case entry := <-j.queue:
			j.write(ctx, entry)
		default:
			return
		}
	}
}

func (j *OrderJournal) write(ctx context.Context, entry journalEntry) {
	var err error
	switch {
	case entry.placed != nil:
		err = j.insertOrder(ctx, *entry.placed)
	case entry.update != nil:
		err = j.recordEvent(ctx, entry.update.order, entry.update.update)
	}
	if err != nil {
		j.logger.Error("journal write failed", slog.String("error", err.Error()))
	}
}

func (j *OrderJournal) insertOrder(ctx context.Context, o domain.Order) error {
	const query = `
		INSERT INTO orders (
			client_order_id, instrument_id, side, order_type, time_in_force,
			qty, filled_qty, filled_avg_price,
			limit_price, stop_price, take_profit, stop_loss,
			status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $14
		)
		ON CONFLICT (client_order_id) DO NOTHING`

	_, err := j.pool.Exec(ctx, query,
		o.ClientOrderID, o.InstrumentID, string(o.Side), string(o.Type), string(o.TimeInForce),
		o.Qty, o.FilledQty, o.FilledAvgPrice,
		o.LimitPrice, o.StopPrice, o.TakeProfitPrice, o.StopLossPrice,
		string(o.Status), o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert order %s: %w", o.ClientOrderID, err)
	}
	return nil
}

func (j *OrderJournal) recordEvent(ctx context.Context, o domain.Order, u domain.OrderUpdate) error {
	const eventQuery = `
		INSERT INTO order_events (
			client_order_id, status, side, filled_qty, filled_avg_price,
			external_exec_id, event_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	eventTime := u.Timestamp
	if eventTime.IsZero() {
		eventTime = time.Now()
	}
	_, err := j.pool.Exec(ctx, eventQuery,
		u.ClientOrderID, string(u.Status), string(u.Side),
		u.FilledQty, u.FilledAvgPrice, u.ExternalExecutionID, eventTime,
	)
	if err != nil {
		return fmt.Errorf("postgres: record event %s: %w", u.ClientOrderID, err)
	}

	const orderQuery = `
		UPDATE orders SET
			status = $2, filled_qty = $3, filled_avg_price = $4, updated_at = $5
		WHERE client_order_id = $1`

	_, err = j.pool.Exec(ctx, orderQuery,
		o.ClientOrderID, string(o.Status), o.FilledQty, o.FilledAvgPrice, eventTime,
	)
	if err != nil {
		return fmt.Errorf("postgres: update order %s: %w", o.ClientOrderID, err)
	}
	return nil
}
