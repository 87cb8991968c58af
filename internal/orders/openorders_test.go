package orders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

func sentOrder(id string) domain.Order {
	return domain.Order{
		ClientOrderID: id,
		InstrumentID:  "btc-usd",
		Qty:           decimal.NewFromInt(2),
		Type:          domain.OrderTypeLimit,
		Side:          domain.OrderSideBuy,
		TimeInForce:   domain.OrderTimeInForceGoodTillCancel,
		Status:        domain.OrderStatusSent,
		LimitPrice:    decimal.NewFromInt(100),
		UpdatedAt:     time.Now(),
	}
}

func TestOpenOrdersTrackRejectsDuplicates(t *testing.T) {
	ledger := NewOpenOrders()
	require.NoError(t, ledger.Track(sentOrder("a")))

	err := ledger.Track(sentOrder("a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateOrder)
	assert.Equal(t, 1, ledger.Len())
}

func TestOpenOrdersApplyOverwritesCumulativeFills(t *testing.T) {
	ledger := NewOpenOrders()
	require.NoError(t, ledger.Track(sentOrder("a")))

	ts := time.Now()
	order, err := ledger.Apply(domain.OrderUpdate{
		ClientOrderID:  "a",
		Status:         domain.OrderStatusPartiallyFilled,
		FilledQty:      decimal.NewFromFloat(0.5),
		FilledAvgPrice: decimal.NewFromInt(100),
		Timestamp:      ts,
	})
	require.NoError(t, err)
	assert.True(t, order.FilledQty.Equal(decimal.NewFromFloat(0.5)))

	// Venue fill figures are cumulative, so a later update replaces the
	// stored values instead of summing with them.
	order, err = ledger.Apply(domain.OrderUpdate{
		ClientOrderID:  "a",
		Status:         domain.OrderStatusFilled,
		FilledQty:      decimal.NewFromInt(2),
		FilledAvgPrice: decimal.NewFromFloat(100.25),
		Timestamp:      ts.Add(time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, order.Status)
	assert.True(t, order.FilledQty.Equal(decimal.NewFromInt(2)))
	assert.True(t, order.FilledAvgPrice.Equal(decimal.NewFromFloat(100.25)))
	assert.Equal(t, ts.Add(time.Second), order.UpdatedAt)
}

func TestOpenOrdersApplyKeepsFillsOnNonFillStatus(t *testing.T) {
	ledger := NewOpenOrders()
	require.NoError(t, ledger.Track(sentOrder("a")))

	_, err := ledger.Apply(domain.OrderUpdate{
		ClientOrderID:  "a",
		Status:         domain.OrderStatusPartiallyFilled,
		FilledQty:      decimal.NewFromInt(1),
		FilledAvgPrice: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	// A cancel after a partial fill must not erase the fill figures.
	order, err := ledger.Apply(domain.OrderUpdate{
		ClientOrderID: "a",
		Status:        domain.OrderStatusCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	assert.True(t, order.FilledQty.Equal(decimal.NewFromInt(1)))
}

func TestOpenOrdersApplyUntracked(t *testing.T) {
	ledger := NewOpenOrders()

	_, err := ledger.Apply(domain.OrderUpdate{ClientOrderID: "ghost", Status: domain.OrderStatusNew})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUntrackedOrder)
}

func TestOpenOrdersGet(t *testing.T) {
	ledger := NewOpenOrders()
	require.NoError(t, ledger.Track(sentOrder("a")))

	order, err := ledger.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", order.ClientOrderID)

	_, err = ledger.Get("b")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOpenOrdersEvictTerminal(t *testing.T) {
	ledger := NewOpenOrders()
	now := time.Now()

	require.NoError(t, ledger.Track(sentOrder("open")))
	require.NoError(t, ledger.Track(sentOrder("old-filled")))
	require.NoError(t, ledger.Track(sentOrder("fresh-filled")))

	_, err := ledger.Apply(domain.OrderUpdate{
		ClientOrderID: "old-filled",
		Status:        domain.OrderStatusFilled,
		FilledQty:     decimal.NewFromInt(2),
		Timestamp:     now.Add(-time.Hour),
	})
	require.NoError(t, err)
	_, err = ledger.Apply(domain.OrderUpdate{
		ClientOrderID: "fresh-filled",
		Status:        domain.OrderStatusFilled,
		FilledQty:     decimal.NewFromInt(2),
		Timestamp:     now,
	})
	require.NoError(t, err)

	evicted := ledger.EvictTerminal(10*time.Minute, now)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 2, ledger.Len())

	_, err = ledger.Get("old-filled")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = ledger.Get("open")
	assert.NoError(t, err)
}
