package pendingorder

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/marketdata"
	"github.com/guyghost/constantine/internal/risk"
	"github.com/guyghost/constantine/internal/signal"
	"github.com/guyghost/constantine/internal/state"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubExchange is a dynamically-trackable fake: PlaceOrder/GetOrder/
// CancelOrder maintain an in-memory order book so tests can simulate a
// fill or a terminal status mid-scenario, unlike MockExchange's fixed
// order list.
type stubExchange struct {
	*exchanges.MockExchange

	mu        sync.Mutex
	orders    map[string]*exchanges.Order
	nextID    int
	markPrice decimal.Decimal

	byInterval map[string][]exchanges.Candle
}

func newStubExchange() *stubExchange {
	return &stubExchange{
		MockExchange: exchanges.NewMockExchange("stub"),
		orders:       make(map[string]*exchanges.Order),
		markPrice:    decimal.NewFromFloat(101.0),
		byInterval:   make(map[string][]exchanges.Candle),
	}
}

func (s *stubExchange) seed(interval string, candles []exchanges.Candle) {
	s.byInterval[interval] = candles
}

func (s *stubExchange) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]exchanges.Candle, error) {
	return s.byInterval[interval], nil
}

func (s *stubExchange) SubscribeCandles(ctx context.Context, symbol, interval string, callback func(*exchanges.Candle)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubExchange) PlaceOrder(ctx context.Context, order *exchanges.Order) (*exchanges.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *order
	cp.ID = fmt.Sprintf("ord-%d", s.nextID)
	cp.Status = exchanges.OrderStatusOpen
	s.orders[cp.ID] = &cp
	placed := cp
	return &placed, nil
}

func (s *stubExchange) CancelOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[orderID]; ok {
		o.Status = exchanges.OrderStatusCanceled
	}
	return nil
}

func (s *stubExchange) GetOrder(ctx context.Context, orderID string) (*exchanges.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, exchanges.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *stubExchange) GetMarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return s.markPrice, nil
}

func (s *stubExchange) fill(orderID string, avgPrice, filledAmount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[orderID]
	o.Status = exchanges.OrderStatusFilled
	o.AveragePrice = avgPrice
	o.FilledAmount = filledAmount
}

func mkCandle(low, high, close float64) exchanges.Candle {
	return exchanges.Candle{
		Symbol:    "BTC-USD",
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Low:       decimal.NewFromFloat(low),
		High:      decimal.NewFromFloat(high),
		Close:     decimal.NewFromFloat(close),
		IsClosed:  true,
	}
}

func testCandidate() *signal.Candidate {
	return &signal.Candidate{
		Symbol:    "BTC-USD",
		Side:      signal.SideBuy,
		Entry:     decimal.NewFromFloat(100.8),
		TriggerPx: decimal.NewFromFloat(100.9),
		SLRef:     decimal.NewFromFloat(100.0),
		BBLOrigP:  decimal.NewFromFloat(100.5),
		BBMOrigP:  decimal.NewFromFloat(101.0),
		BBUOrigP:  decimal.NewFromFloat(101.5),
		BBLNewP:   decimal.NewFromFloat(100.8),
		BBUNewP:   decimal.NewFromFloat(101.2),
	}
}

func testFilters() *exchanges.SymbolFilters {
	return &exchanges.SymbolFilters{
		Symbol:      "BTC-USD",
		PriceTick:   decimal.NewFromFloat(0.01),
		QtyStep:     decimal.NewFromFloat(0.01),
		MinQty:      decimal.NewFromFloat(0.01),
		MinNotional: decimal.NewFromFloat(1),
	}
}

func testConfig() SlotConfig {
	return SlotConfig{
		PrimaryInterval:        "5m",
		TriggerInterval:        "1m",
		SLReferenceInterval:    "15m",
		PrimaryIntervalSeconds: 300,
		RiskRewardMultiplier:   decimal.NewFromFloat(10),
		Filters:                testFilters(),
	}
}

func tempStore(t *testing.T) *state.Store {
	t.Helper()
	return state.NewStore(t.TempDir() + "/state.json")
}

func TestTryEnter_SeedScenario1_SeedsPendingSlot(t *testing.T) {
	ex := newStubExchange()
	store := tempStore(t)
	mgr := NewManager(ex, nil, store)

	validated := &risk.ValidatedTrade{
		Symbol:                 "BTC-USD",
		Side:                   signal.SideBuy,
		Entry:                  decimal.NewFromFloat(100.8),
		StopLoss:               decimal.NewFromFloat(100.0),
		TakeProfit:             decimal.NewFromFloat(108.8),
		Quantity:               decimal.NewFromFloat(1.25),
		TargetMonetaryRisk:     decimal.NewFromFloat(1.00),
		AccumulatedLossAtEntry: decimal.Zero,
	}

	slot := mgr.TryEnter("BTC-USD", exchanges.PositionSideLong, testCandidate(), validated)
	require.Equal(t, StatusPending, slot.Status)
	require.NotNil(t, slot.Pending)
	assert.True(t, slot.Pending.TargetEntryPrice.Equal(decimal.NewFromFloat(100.8)))
	assert.True(t, slot.Pending.TargetSLPrice.Equal(decimal.NewFromFloat(100.0)))
	assert.True(t, slot.Pending.TargetTPPrice.Equal(decimal.NewFromFloat(108.8)))
	assert.True(t, slot.Pending.Quantity.Equal(decimal.NewFromFloat(1.25)))
	assert.Empty(t, slot.Pending.CurrentEntryOrderID)

	reloaded := mgr.LoadSlot("BTC-USD", exchanges.PositionSideLong)
	assert.Equal(t, StatusPending, reloaded.Status)
}

func seededSlot() *Slot {
	s := newSlot("BTC-USD", exchanges.PositionSideLong)
	s.Status = StatusPending
	s.Pending = &state.PendingTrade{
		SignalType:             string(signal.SideBuy),
		TargetEntryPrice:       decimal.NewFromFloat(100.8),
		TargetSLPrice:          decimal.NewFromFloat(100.0),
		TargetTPPrice:          decimal.NewFromFloat(108.8),
		Quantity:               decimal.NewFromFloat(1.25),
		PreCheckBBLOrigPrimary: decimal.NewFromFloat(100.5),
		PreCheckBBUOrigPrimary: decimal.NewFromFloat(101.5),
		PreCheckBBMSLRef:       decimal.NewFromFloat(100.0),
		GateBandPrimaryLower:   decimal.NewFromFloat(100.8),
		GateBandPrimaryUpper:   decimal.NewFromFloat(101.2),
		GatingBBMOrigPrimary:   decimal.NewFromFloat(101.0),
		LastPrimaryUpdateTSUTC: time.Now().Unix(),
	}
	return s
}

func TestManage_SeedScenario2_GatingCancelsOutOfZoneOrder(t *testing.T) {
	ex := newStubExchange()
	cache := marketdata.New(context.Background(), ex, nil)
	t.Cleanup(cache.Shutdown)
	ex.seed("1m", []exchanges.Candle{mkCandle(100.4, 100.4, 100.4)})
	require.NoError(t, cache.Subscribe(context.Background(), "BTC-USD", "1m", 1, marketdata.BBParams{Length: 1, MultOrig: 2, MultNew: 1}))

	store := tempStore(t)
	mgr := NewManager(ex, cache, store)

	slot := seededSlot()
	placed, err := ex.PlaceOrder(context.Background(), &exchanges.Order{Symbol: "BTC-USD", Side: exchanges.OrderSideBuy, Price: slot.Pending.TargetEntryPrice})
	require.NoError(t, err)
	slot.Pending.CurrentEntryOrderID = placed.ID
	slot.Pending.LastPrimaryUpdateTSUTC = time.Now().Unix()

	_, err = mgr.phaseC(context.Background(), slot, testConfig())
	require.NoError(t, err)

	assert.Empty(t, slot.Pending.CurrentEntryOrderID)
	order, err := ex.GetOrder(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, exchanges.OrderStatusCanceled, order.Status)
}

func TestManage_SeedScenario3_PreconditionInvalidationReapsSlot(t *testing.T) {
	ex := newStubExchange()
	store := tempStore(t)
	mgr := NewManager(ex, nil, store)

	slot := seededSlot()
	slot.Pending.PreCheckBBLOrigPrimary = decimal.NewFromFloat(99.9)
	slot.Pending.PreCheckBBMSLRef = decimal.NewFromFloat(100.0)
	placed, err := ex.PlaceOrder(context.Background(), &exchanges.Order{Symbol: "BTC-USD", Side: exchanges.OrderSideBuy, Price: slot.Pending.TargetEntryPrice})
	require.NoError(t, err)
	slot.Pending.CurrentEntryOrderID = placed.ID
	require.NoError(t, mgr.persist(slot))

	ok := mgr.phaseB(slot)
	assert.False(t, ok)

	mgr.reapSlot(context.Background(), slot, "precondition invalidated")
	assert.Equal(t, StatusEmpty, slot.Status)
	assert.Nil(t, slot.Pending)

	order, err := ex.GetOrder(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, exchanges.OrderStatusCanceled, order.Status)

	_, found := store.GetActiveTrade(slot.Key)
	assert.False(t, found)
}

func TestManage_PreconditionInvalidationWithNoWorkingOrderSkipsCancel(t *testing.T) {
	ex := newStubExchange()
	store := tempStore(t)
	mgr := NewManager(ex, nil, store)

	slot := seededSlot()
	slot.Pending.PreCheckBBLOrigPrimary = decimal.NewFromFloat(99.9)
	slot.Pending.PreCheckBBMSLRef = decimal.NewFromFloat(100.0)
	slot.Pending.CurrentEntryOrderID = ""
	require.NoError(t, mgr.persist(slot))

	mgr.reapSlot(context.Background(), slot, "precondition invalidated")
	assert.Equal(t, StatusEmpty, slot.Status)
	assert.Nil(t, slot.Pending)
}

func TestManage_SeedScenario4_FillInstallsBracketAndOpensPosition(t *testing.T) {
	ex := newStubExchange()
	ex.markPrice = decimal.NewFromFloat(101.0)
	store := tempStore(t)
	mgr := NewManager(ex, nil, store)

	slot := seededSlot()
	placed, err := ex.PlaceOrder(context.Background(), &exchanges.Order{
		Symbol: "BTC-USD", Side: exchanges.OrderSideBuy, Amount: slot.Pending.Quantity, Price: slot.Pending.TargetEntryPrice,
	})
	require.NoError(t, err)
	slot.Pending.CurrentEntryOrderID = placed.ID
	ex.fill(placed.ID, decimal.NewFromFloat(100.78), slot.Pending.Quantity)

	exit, err := mgr.phaseD(context.Background(), slot, testConfig())
	require.NoError(t, err)
	assert.True(t, exit)

	require.Equal(t, StatusOpen, slot.Status)
	require.NotNil(t, slot.Open)
	assert.True(t, slot.Open.EntryPriceActual.Equal(decimal.NewFromFloat(100.78)))
	assert.NotEmpty(t, slot.Open.SLOrderID)
	assert.NotEmpty(t, slot.Open.TPOrderID)
	assert.Nil(t, slot.Pending)

	trade, ok := store.GetActiveTrade(slot.Key)
	require.True(t, ok)
	assert.Equal(t, string(StatusOpen), trade.Status)
}

func TestProcessFilledOrder_UnsafeStopLossTriggersEmergencyClose(t *testing.T) {
	ex := newStubExchange()
	ex.markPrice = decimal.NewFromFloat(99.0) // below SL=100.0 invalidates a BUY's SL
	store := tempStore(t)
	mgr := NewManager(ex, nil, store)

	slot := seededSlot()
	placed, err := ex.PlaceOrder(context.Background(), &exchanges.Order{Symbol: "BTC-USD", Side: exchanges.OrderSideBuy, Amount: slot.Pending.Quantity})
	require.NoError(t, err)
	slot.Pending.CurrentEntryOrderID = placed.ID
	ex.fill(placed.ID, decimal.NewFromFloat(100.78), slot.Pending.Quantity)

	filled, err := ex.GetOrder(context.Background(), placed.ID)
	require.NoError(t, err)

	err = mgr.processFilledOrder(context.Background(), slot, testConfig(), filled)
	assert.Error(t, err)
	assert.Equal(t, StatusEmpty, slot.Status)

	_, found := store.GetActiveTrade(slot.Key)
	assert.False(t, found)
}
