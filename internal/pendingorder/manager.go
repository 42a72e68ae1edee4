package pendingorder

import (
	"context"
	"sync"
	"time"

	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/logger"
	"github.com/guyghost/constantine/internal/marketdata"
	"github.com/guyghost/constantine/internal/risk"
	"github.com/guyghost/constantine/internal/signal"
	"github.com/guyghost/constantine/internal/state"
	"github.com/guyghost/constantine/internal/telemetry"
)

const defaultAPICallTimeout = 5 * time.Second

// Event reports a slot transition to interested listeners: the
// operator dashboard, alerting.
type Event struct {
	Key       string
	Symbol    string
	Status    Status
	Message   string
	Timestamp time.Time
}

// Manager runs the Pending-Order Manager's phase A-D state machine for
// one TradeSlot per call, guarding its event and error callbacks
// behind a mutex.
type Manager struct {
	exchange exchanges.Exchange
	cache    *marketdata.Cache
	store    *state.Store
	log      *logger.Logger

	mu      sync.RWMutex
	onEvent func(*Event)
	onError func(error)
}

// NewManager constructs a Manager over exchange, reading bands from
// cache and persisting slot state to store.
func NewManager(exchange exchanges.Exchange, cache *marketdata.Cache, store *state.Store) *Manager {
	return &Manager{
		exchange: exchange,
		cache:    cache,
		store:    store,
		log:      logger.Component("pendingorder"),
	}
}

// SetEventCallback sets the callback invoked on every slot transition.
func (m *Manager) SetEventCallback(callback func(*Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvent = callback
}

// SetErrorCallback sets the callback invoked on operation errors.
func (m *Manager) SetErrorCallback(callback func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = callback
}

// LoadSlot reads key's persisted ActiveTrade and reconstructs its Slot,
// defaulting to Empty when nothing is persisted.
func (m *Manager) LoadSlot(symbol string, positionSide exchanges.PositionSide) *Slot {
	key := symbol + "_" + string(positionSide)
	s := newSlot(symbol, positionSide)
	trade, ok := m.store.GetActiveTrade(key)
	if !ok {
		return s
	}
	s.Status = Status(trade.Status)
	s.Pending = trade.Pending
	s.Open = trade.Open
	return s
}

// TryEnter seeds a fresh PENDING_DYNAMIC_LIMIT slot from a signal
// candidate and a sized trade, with no working order placed yet.
// Phase C places the entry once the trigger-interval zone condition
// first holds, keeping signal detection separate from order placement.
func (m *Manager) TryEnter(symbol string, positionSide exchanges.PositionSide, cand *signal.Candidate, trade *risk.ValidatedTrade) *Slot {
	slot := fromValidatedTrade(symbol, positionSide, cand.Side, trade.Entry, trade.StopLoss, trade.TakeProfit, trade.Quantity, trade.TargetMonetaryRisk, trade.AccumulatedLossAtEntry, cand, time.Now())
	if err := m.persist(slot); err != nil {
		m.emitError(err)
		return slot
	}
	telemetry.RecordSlotTransition(symbol, string(StatusPending))
	m.emitEvent(slot, "entered PENDING_DYNAMIC_LIMIT")
	return slot
}

// Manage advances slot through whichever phases apply this tick. Only
// PENDING_DYNAMIC_LIMIT slots do any work; Empty and Open slots are
// returned unchanged (Open slots are the Position Manager's concern).
func (m *Manager) Manage(ctx context.Context, slot *Slot, cfg SlotConfig) (*Slot, error) {
	if slot.Status != StatusPending {
		return slot, nil
	}
	now := time.Now()

	exit, err := m.phaseA(ctx, slot, cfg, now)
	if err != nil {
		return slot, err
	}
	if exit || slot.Status != StatusPending {
		return slot, nil
	}

	if !m.phaseB(slot) {
		m.reapSlot(ctx, slot, "precondition invalidated")
		return slot, nil
	}

	if _, err := m.phaseC(ctx, slot, cfg); err != nil {
		return slot, err
	}
	if slot.Status != StatusPending {
		return slot, nil
	}

	if exit, err := m.phaseD(ctx, slot, cfg); err != nil {
		return slot, err
	} else if exit {
		return slot, nil
	}

	if err := m.persist(slot); err != nil {
		m.emitError(err)
	}
	return slot, nil
}

func (m *Manager) persist(slot *Slot) error {
	trade := state.ActiveTrade{Status: string(slot.Status), Pending: slot.Pending, Open: slot.Open}
	return m.store.SetActiveTrade(slot.Key, trade)
}

// reapSlot cancels any still-working entry order before clearing slot,
// so a precondition invalidation never orphans a live limit order at
// the exchange. A cancel failure is reported but does not block the
// reap; a stale slot left pending forever is worse than one cleared
// with an unconfirmed cancel.
func (m *Manager) reapSlot(ctx context.Context, slot *Slot, reason string) {
	if slot.Pending != nil && slot.Pending.CurrentEntryOrderID != "" {
		if err := m.cancelEntryOrder(ctx, slot); err != nil {
			m.emitError(err)
		}
	}
	m.clearSlot(slot, reason)
}

func (m *Manager) clearSlot(slot *Slot, reason string) {
	slot.Status = StatusEmpty
	slot.Pending = nil
	slot.Open = nil
	if err := m.store.ClearActiveTrade(slot.Key); err != nil {
		m.emitError(err)
	}
	telemetry.RecordSlotTransition(slot.Symbol, string(StatusEmpty))
	m.log.Symbol(slot.Symbol).WithField("reason", reason).Info("slot cleared")
	m.emitEvent(slot, reason)
}

func (m *Manager) emitEvent(slot *Slot, message string) {
	m.mu.RLock()
	callback := m.onEvent
	m.mu.RUnlock()
	if callback == nil {
		return
	}
	event := &Event{Key: slot.Key, Symbol: slot.Symbol, Status: slot.Status, Message: message, Timestamp: time.Now()}
	safeInvoke(func() { callback(event) })
}

func (m *Manager) emitError(err error) {
	m.mu.RLock()
	callback := m.onError
	m.mu.RUnlock()
	if callback == nil || err == nil {
		return
	}
	safeInvoke(func() { callback(err) })
}

func safeInvoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.RecordCallbackPanic()
		}
	}()
	fn()
}
