package position

import (
	"context"
	"testing"

	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/state"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExchange struct {
	*exchanges.MockExchange
	orders     map[string]*exchanges.Order
	position   *exchanges.Position
	noPosition bool
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		MockExchange: exchanges.NewMockExchange("fake"),
		orders:       make(map[string]*exchanges.Order),
	}
}

func (f *fakeExchange) GetOrder(ctx context.Context, orderID string) (*exchanges.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, exchanges.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, orderID string) error {
	if o, ok := f.orders[orderID]; ok {
		o.Status = exchanges.OrderStatusCanceled
	}
	return nil
}

func (f *fakeExchange) GetPosition(ctx context.Context, symbol string) (*exchanges.Position, error) {
	if f.noPosition {
		return nil, exchanges.ErrPositionNotFound
	}
	if f.position != nil {
		return f.position, nil
	}
	return &exchanges.Position{Symbol: symbol, Size: decimal.NewFromFloat(1.25)}, nil
}

func openLongPosition() *state.OpenPosition {
	return &state.OpenPosition{
		Quantity:         decimal.NewFromFloat(1.25),
		EntryPriceActual: decimal.NewFromFloat(100.78),
		PositionSide:     string(exchanges.PositionSideLong),
		SLOrderID:        "sl-1",
		TPOrderID:        "tp-1",
	}
}

func tempPositionStore(t *testing.T) *state.Store {
	t.Helper()
	return state.NewStore(t.TempDir() + "/state.json")
}

func TestManage_SeedScenario5_StopLossHitAccruesMartingaleLoss(t *testing.T) {
	ex := newFakeExchange()
	ex.orders["sl-1"] = &exchanges.Order{ID: "sl-1", Status: exchanges.OrderStatusFilled, AveragePrice: decimal.NewFromFloat(100.0)}
	ex.orders["tp-1"] = &exchanges.Order{ID: "tp-1", Status: exchanges.OrderStatusOpen}
	store := tempPositionStore(t)
	mgr := NewManager(ex, store)

	open := openLongPosition()
	key := "BTC-USD_LONG"
	outcome := mgr.Manage(context.Background(), key, "BTC-USD", open, RiskConfig{UseMartingaleLossRecovery: true})

	assert.Equal(t, OutcomeStopLossHit, outcome)
	loss := store.GetAccumulatedLoss(key)
	assert.True(t, loss.Equal(decimal.NewFromFloat(0.975)), "accumulated loss: %s", loss)

	tpOrder, err := ex.GetOrder(context.Background(), "tp-1")
	require.NoError(t, err)
	assert.Equal(t, exchanges.OrderStatusCanceled, tpOrder.Status)

	_, found := store.GetActiveTrade(key)
	assert.False(t, found)
}

func TestManage_SeedScenario6_TakeProfitHitResetsMartingaleLoss(t *testing.T) {
	ex := newFakeExchange()
	ex.orders["sl-1"] = &exchanges.Order{ID: "sl-1", Status: exchanges.OrderStatusOpen}
	ex.orders["tp-1"] = &exchanges.Order{ID: "tp-1", Status: exchanges.OrderStatusFilled, AveragePrice: decimal.NewFromFloat(108.8)}
	store := tempPositionStore(t)
	require.NoError(t, store.UpdateAccumulatedLoss("BTC-USD_LONG", decimal.NewFromFloat(0.975)))
	mgr := NewManager(ex, store)

	open := openLongPosition()
	key := "BTC-USD_LONG"
	outcome := mgr.Manage(context.Background(), key, "BTC-USD", open, RiskConfig{UseMartingaleLossRecovery: true})

	assert.Equal(t, OutcomeTakeProfitHit, outcome)
	assert.True(t, store.GetAccumulatedLoss(key).IsZero())

	slOrder, err := ex.GetOrder(context.Background(), "sl-1")
	require.NoError(t, err)
	assert.Equal(t, exchanges.OrderStatusCanceled, slOrder.Status)
}

func TestManage_PositionVanishedClearsSlotWithoutTouchingLoss(t *testing.T) {
	ex := newFakeExchange()
	ex.orders["sl-1"] = &exchanges.Order{ID: "sl-1", Status: exchanges.OrderStatusOpen}
	ex.orders["tp-1"] = &exchanges.Order{ID: "tp-1", Status: exchanges.OrderStatusOpen}
	ex.noPosition = true
	store := tempPositionStore(t)
	mgr := NewManager(ex, store)

	open := openLongPosition()
	key := "BTC-USD_LONG"
	outcome := mgr.Manage(context.Background(), key, "BTC-USD", open, RiskConfig{UseMartingaleLossRecovery: true})

	assert.Equal(t, OutcomePositionVanished, outcome)
	assert.True(t, store.GetAccumulatedLoss(key).IsZero())
	_, found := store.GetActiveTrade(key)
	assert.False(t, found)
}

func TestManage_NoSLAlertRaisedThenClearedOnceSLReturns(t *testing.T) {
	ex := newFakeExchange()
	store := tempPositionStore(t)
	mgr := NewManager(ex, store)

	open := openLongPosition()
	open.SLOrderID = ""
	key := "BTC-USD_LONG"

	outcome := mgr.Manage(context.Background(), key, "BTC-USD", open, RiskConfig{})
	assert.Equal(t, OutcomeNoSLAlertRaised, outcome)
	_, alerted := store.GetActiveTrade(alertKey(key))
	assert.True(t, alerted)

	outcome = mgr.Manage(context.Background(), key, "BTC-USD", open, RiskConfig{})
	assert.Equal(t, OutcomeNone, outcome)

	open.SLOrderID = "sl-1"
	ex.orders["sl-1"] = &exchanges.Order{ID: "sl-1", Status: exchanges.OrderStatusOpen}
	outcome = mgr.Manage(context.Background(), key, "BTC-USD", open, RiskConfig{})
	assert.Equal(t, OutcomeNoSLAlertCleared, outcome)
	_, alerted = store.GetActiveTrade(alertKey(key))
	assert.False(t, alerted)
}
