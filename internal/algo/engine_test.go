package algo

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iannisdezwart/money-printer/internal/domain"
)

type stubDispatcher struct {
	pending    []domain.OrderUpdate
	performed  []domain.AlgoDecision
	performErr error
}

func (d *stubDispatcher) DrainOrderUpdates() []domain.OrderUpdate {
	out := d.pending
	d.pending = nil
	return out
}

func (d *stubDispatcher) Perform(decision domain.AlgoDecision) error {
	d.performed = append(d.performed, decision)
	return d.performErr
}

type stubAlgo struct {
	name      string
	decisions []domain.AlgoDecision
	err       error
	received  [][]domain.OrderUpdate
}

func (a *stubAlgo) Name() string { return a.name }

func (a *stubAlgo) Instrument() string { return "btc-usd" }

func (a *stubAlgo) Decide(updates []domain.OrderUpdate, _ MarketView) ([]domain.AlgoDecision, error) {
	a.received = append(a.received, updates)
	return a.decisions, a.err
}

func TestEngineStepDrainsAndDispatches(t *testing.T) {
	buy := domain.LimitBuy{InstrumentID: "btc-usd", Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(100)}
	dispatcher := &stubDispatcher{
		pending: []domain.OrderUpdate{
			{ClientOrderID: "a", Status: domain.OrderStatusNew},
			{ClientOrderID: "a", Status: domain.OrderStatusFilled},
		},
	}
	algo := &stubAlgo{name: "stub", decisions: []domain.AlgoDecision{buy}}

	engine := NewEngine(dispatcher, &stubView{}, 0, discardLogger())
	engine.AddAlgo(algo)
	engine.Step()

	// The algo sees the whole drained batch in arrival order.
	require.Len(t, algo.received, 1)
	require.Len(t, algo.received[0], 2)
	assert.Equal(t, domain.OrderStatusNew, algo.received[0][0].Status)
	assert.Equal(t, domain.OrderStatusFilled, algo.received[0][1].Status)

	require.Len(t, dispatcher.performed, 1)
	assert.Equal(t, buy, dispatcher.performed[0])

	// The buffer was drained: a second step delivers an empty batch.
	engine.Step()
	require.Len(t, algo.received, 2)
	assert.Empty(t, algo.received[1])
}

func TestEngineIsolatesFailingAlgo(t *testing.T) {
	buy := domain.LimitBuy{InstrumentID: "btc-usd", Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(100)}
	dispatcher := &stubDispatcher{}
	broken := &stubAlgo{name: "broken", err: errors.New("boom")}
	healthy := &stubAlgo{name: "healthy", decisions: []domain.AlgoDecision{buy}}

	engine := NewEngine(dispatcher, &stubView{}, 0, discardLogger())
	engine.AddAlgo(broken)
	engine.AddAlgo(healthy)
	engine.Step()

	require.Len(t, healthy.received, 1)
	require.Len(t, dispatcher.performed, 1)
	assert.Equal(t, buy, dispatcher.performed[0])
}

func TestEngineSurvivesDispatchFailure(t *testing.T) {
	buy := domain.LimitBuy{InstrumentID: "btc-usd", Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(100)}
	sell := domain.LimitSell{InstrumentID: "btc-usd", Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(101)}
	dispatcher := &stubDispatcher{performErr: errors.New("venue down")}
	algo := &stubAlgo{name: "stub", decisions: []domain.AlgoDecision{buy, sell}}

	engine := NewEngine(dispatcher, &stubView{}, 0, discardLogger())
	engine.AddAlgo(algo)
	engine.Step()

	// Both decisions were still attempted despite the first failing.
	require.Len(t, dispatcher.performed, 2)
	assert.Equal(t, buy, dispatcher.performed[0])
	assert.Equal(t, sell, dispatcher.performed[1])
}
