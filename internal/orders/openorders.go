package orders

import (
	"fmt"
	"sync"
	"time"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

// OpenOrders is the in-process ledger of every order the engine has placed.
// Orders enter via Track when the placement request is issued and are mutated
// only by Apply; venue updates carry cumulative fill figures, so each Apply
// overwrites rather than accumulates. Terminal orders stay in the ledger
// until EvictTerminal removes them.
type OpenOrders struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

func NewOpenOrders() *OpenOrders {
	return &OpenOrders{orders: make(map[string]domain.Order)}
}

// Track registers a freshly placed order. The client order id must be new.
func (o *OpenOrders) Track(order domain.Order) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.orders[order.ClientOrderID]; ok {
		return fmt.Errorf("orders: track %s: %w", order.ClientOrderID, domain.ErrDuplicateOrder)
	}
	o.orders[order.ClientOrderID] = order
	return nil
}

// Apply folds a venue update into the tracked order and returns the updated
// snapshot. Fill figures are cumulative: the update's FilledQty and
// FilledAvgPrice replace the stored values wholesale.
func (o *OpenOrders) Apply(update domain.OrderUpdate) (domain.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	order, ok := o.orders[update.ClientOrderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("orders: apply %s: %w", update.ClientOrderID, domain.ErrUntrackedOrder)
	}

	order.Status = update.Status
	if update.Status.IsFill() {
		order.FilledQty = update.FilledQty
		order.FilledAvgPrice = update.FilledAvgPrice
	}
	order.UpdatedAt = update.Timestamp

	o.orders[update.ClientOrderID] = order
	return order, nil
}

// Get returns a copy of the tracked order.
func (o *OpenOrders) Get(clientOrderID string) (domain.Order, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	order, ok := o.orders[clientOrderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("orders: get %s: %w", clientOrderID, domain.ErrNotFound)
	}
	return order, nil
}

// All returns a snapshot of every tracked order.
func (o *OpenOrders) All() []domain.Order {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]domain.Order, 0, len(o.orders))
	for _, order := range o.orders {
		out = append(out, order)
	}
	return out
}

// Len returns the number of tracked orders, terminal ones included.
func (o *OpenOrders) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.orders)
}

// EvictTerminal drops terminal orders last updated before now-olderThan and
// returns how many were removed. Keeping them for a grace period lets late
// duplicate venue updates resolve against the ledger instead of logging as
// untracked.
func (o *OpenOrders) EvictTerminal(olderThan time.Duration, now time.Time) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	cutoff := now.Add(-olderThan)
	evicted := 0
	for id, order := range o.orders {
		if order.Status.IsTerminal() && order.UpdatedAt.Before(cutoff) {
			delete(o.orders, id)
			evicted++
		}
	}
	return evicted
}
