package position

import (
	"context"
	"sync"
	"time"

	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/logger"
	"github.com/guyghost/constantine/internal/state"
	"github.com/guyghost/constantine/internal/telemetry"
	"github.com/shopspring/decimal"
)

const defaultAPICallTimeout = 5 * time.Second

// Outcome reports what happened to the slot this tick, for the
// Orchestrator's logging/dashboard wiring.
type Outcome string

const (
	OutcomeNone              Outcome = "none"
	OutcomeStopLossHit       Outcome = "stop_loss_hit"
	OutcomeTakeProfitHit     Outcome = "take_profit_hit"
	OutcomePositionVanished  Outcome = "position_vanished"
	OutcomeNoSLAlertRaised   Outcome = "no_sl_alert_raised"
	OutcomeNoSLAlertCleared  Outcome = "no_sl_alert_cleared"
)

// Event reports a position-management transition, mirroring
// internal/pendingorder.Event's shape.
type Event struct {
	Key       string
	Symbol    string
	Outcome   Outcome
	Message   string
	Timestamp time.Time
}

// RiskConfig carries the martingale flag the Position Manager needs to
// decide whether an SL hit accrues loss or a TP hit resets it.
type RiskConfig struct {
	UseMartingaleLossRecovery bool
}

// Manager runs the Position Manager's ordered SL->TP->existence->no-SL
// check for one open TradeSlot per call, guarding its event callback
// behind a mutex.
type Manager struct {
	exchange exchanges.Exchange
	store    *state.Store
	log      *logger.Logger

	mu      sync.RWMutex
	onEvent func(*Event)
	onError func(error)
}

// NewManager constructs a Manager over exchange, persisting slot
// mutations to store.
func NewManager(exchange exchanges.Exchange, store *state.Store) *Manager {
	return &Manager{
		exchange: exchange,
		store:    store,
		log:      logger.Component("position"),
	}
}

// SetEventCallback sets the callback invoked on every outcome.
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

func (m *Manager) emitEvent(key, symbol string, outcome Outcome, message string) {
	m.mu.RLock()
	callback := m.onEvent
	m.mu.RUnlock()
	if callback == nil {
		return
	}
	event := &Event{Key: key, Symbol: symbol, Outcome: outcome, Message: message, Timestamp: time.Now()}
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

func alertKey(key string) string { return key + "_NO_SL_ALERT_SENT" }

// Manage runs the ordered check (SL -> TP -> existence -> no-SL alert)
// for one POSITION_OPEN slot, key "{symbol}_{LONG|SHORT}". Empty and
// Pending slots are not this manager's concern.
func (m *Manager) Manage(ctx context.Context, key, symbol string, open *state.OpenPosition, cfg RiskConfig) Outcome {
	if slValid, status := m.checkBracketLeg(ctx, key, symbol, open, open.SLOrderID); slValid {
		if status == exchanges.OrderStatusFilled {
			m.closeOnFill(ctx, key, symbol, open, open.SLOrderID, open.TPOrderID, true, cfg)
			return OutcomeStopLossHit
		}
	} else if open.SLOrderID != "" {
		open.SLOrderID = ""
		m.persist(key, StatusOpenString, open)
	}

	if tpValid, status := m.checkBracketLeg(ctx, key, symbol, open, open.TPOrderID); tpValid {
		if status == exchanges.OrderStatusFilled {
			m.closeOnFill(ctx, key, symbol, open, open.TPOrderID, open.SLOrderID, false, cfg)
			return OutcomeTakeProfitHit
		}
	}

	exists, err := m.positionExists(ctx, symbol, open)
	if err != nil {
		m.emitError(err)
	} else if !exists {
		m.handleVanishedPosition(ctx, key, symbol, open)
		return OutcomePositionVanished
	}

	return m.reconcileNoSLAlert(key, symbol, open)
}

// checkBracketLeg fetches orderID's status, reporting whether it is
// still a meaningful leg to track (valid=false when orderID is empty
// or terminal-non-filled) alongside its raw status.
func (m *Manager) checkBracketLeg(ctx context.Context, key, symbol string, open *state.OpenPosition, orderID string) (valid bool, status exchanges.OrderStatus) {
	if orderID == "" {
		return false, ""
	}
	callCtx, cancel := context.WithTimeout(ctx, defaultAPICallTimeout)
	defer cancel()
	order, err := m.exchange.GetOrder(callCtx, orderID)
	if err != nil {
		m.emitError(err)
		return true, "" // transient lookup failure: keep tracking, don't give up on the leg
	}
	if order.Status == exchanges.OrderStatusFilled {
		return true, exchanges.OrderStatusFilled
	}
	if isTerminal(order.Status) {
		return false, order.Status
	}
	return true, order.Status
}

func isTerminal(status exchanges.OrderStatus) bool {
	switch status {
	case exchanges.OrderStatusCanceled, exchanges.OrderStatusExpired, exchanges.OrderStatusRejected:
		return true
	}
	return false
}

// closeOnFill handles either bracket leg filling: computes realized
// PnL, applies the bounded-martingale accrual/reset rule, cancels the
// sibling leg, and destroys the slot.
func (m *Manager) closeOnFill(ctx context.Context, key, symbol string, open *state.OpenPosition, filledLegID, siblingLegID string, isStopLoss bool, cfg RiskConfig) {
	callCtx, cancel := context.WithTimeout(ctx, defaultAPICallTimeout)
	defer cancel()

	order, err := m.exchange.GetOrder(callCtx, filledLegID)
	closePrice := open.EntryPriceActual
	if err == nil && order != nil {
		closePrice = order.AveragePrice
		if closePrice.IsZero() {
			closePrice = order.Price
		}
	} else if err != nil {
		m.emitError(err)
	}

	pnl := calculatePnL(open, closePrice)

	if isStopLoss {
		if cfg.UseMartingaleLossRecovery && pnl.LessThan(decimal.Zero) {
			if err := m.store.UpdateAccumulatedLoss(key, pnl.Abs()); err != nil {
				m.emitError(err)
			} else {
				telemetry.RecordMartingaleAccrual(key)
			}
		}
	} else {
		if cfg.UseMartingaleLossRecovery && pnl.GreaterThanOrEqual(decimal.Zero) {
			if m.store.GetAccumulatedLoss(key).GreaterThan(decimal.Zero) {
				if err := m.store.ResetAccumulatedLoss(key); err != nil {
					m.emitError(err)
				} else {
					telemetry.RecordMartingaleReset(key)
				}
			}
		}
	}

	if siblingLegID != "" {
		if err := m.exchange.CancelOrder(callCtx, siblingLegID); err != nil {
			m.emitError(err)
		}
	}

	m.clearSlot(key, symbol)
	outcome := OutcomeTakeProfitHit
	if isStopLoss {
		outcome = OutcomeStopLossHit
	}
	m.log.Symbol(symbol).WithField("pnl", pnl.String()).Info("bracket leg filled, slot closed")
	m.emitEvent(key, symbol, outcome, "bracket leg filled")
}

// calculatePnL computes realized PnL for a closed leg, accounting for
// state.OpenPosition's hedge-mode PositionSide string.
func calculatePnL(open *state.OpenPosition, closePrice decimal.Decimal) decimal.Decimal {
	diff := closePrice.Sub(open.EntryPriceActual)
	if open.PositionSide == string(exchanges.PositionSideShort) {
		diff = diff.Neg()
	}
	return diff.Mul(open.Quantity)
}

// positionExists reports whether the exchange still reports a nonzero
// position for symbol.
func (m *Manager) positionExists(ctx context.Context, symbol string, open *state.OpenPosition) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, defaultAPICallTimeout)
	defer cancel()
	pos, err := m.exchange.GetPosition(callCtx, symbol)
	if err != nil {
		if err == exchanges.ErrPositionNotFound {
			return false, nil
		}
		return true, err // unknown error: assume it still exists rather than destroy the slot on a transient failure
	}
	if pos == nil || pos.Size.IsZero() {
		return false, nil
	}
	return true, nil
}

// handleVanishedPosition is the "unknown closure" path: the slot is
// destroyed and an alert raised, but accumulated loss is left
// untouched since the true close price is unknown.
func (m *Manager) handleVanishedPosition(ctx context.Context, key, symbol string, open *state.OpenPosition) {
	callCtx, cancel := context.WithTimeout(ctx, defaultAPICallTimeout)
	defer cancel()
	if open.SLOrderID != "" {
		_ = m.exchange.CancelOrder(callCtx, open.SLOrderID)
	}
	if open.TPOrderID != "" {
		_ = m.exchange.CancelOrder(callCtx, open.TPOrderID)
	}
	m.clearSlot(key, symbol)
	m.log.Symbol(symbol).Warn("position vanished from exchange without SL/TP fill, manual reconciliation required")
	m.emitEvent(key, symbol, OutcomePositionVanished, "position vanished without a reported fill")
}

// reconcileNoSLAlert raises a one-shot alert the first tick a position
// is found open with no currently-active SL, and clears it the first
// tick an active SL is observed again.
func (m *Manager) reconcileNoSLAlert(key, symbol string, open *state.OpenPosition) Outcome {
	slActive := open.SLOrderID != ""
	ak := alertKey(key)
	_, alertSent := m.store.GetActiveTrade(ak)

	if !slActive {
		if !alertSent {
			if err := m.store.SetActiveTrade(ak, state.ActiveTrade{Status: "ALERTED"}); err != nil {
				m.emitError(err)
			}
			open.NoSLAlertSent = true
			m.persist(key, StatusOpenString, open)
			m.log.Symbol(symbol).Warn("position open without an active stop loss")
			m.emitEvent(key, symbol, OutcomeNoSLAlertRaised, "position open without an active stop loss")
			return OutcomeNoSLAlertRaised
		}
		return OutcomeNone
	}

	if alertSent {
		if err := m.store.ClearActiveTrade(ak); err != nil {
			m.emitError(err)
		}
		open.NoSLAlertSent = false
		m.persist(key, StatusOpenString, open)
		m.emitEvent(key, symbol, OutcomeNoSLAlertCleared, "stop loss is active again")
		return OutcomeNoSLAlertCleared
	}
	return OutcomeNone
}

// StatusOpenString is the persisted Status literal for POSITION_OPEN,
// duplicated from internal/pendingorder so this package does not import
// pendingorder.
const StatusOpenString = "POSITION_OPEN"

func (m *Manager) persist(key, status string, open *state.OpenPosition) {
	if err := m.store.SetActiveTrade(key, state.ActiveTrade{Status: status, Open: open}); err != nil {
		m.emitError(err)
	}
}

func (m *Manager) clearSlot(key, symbol string) {
	if err := m.store.ClearActiveTrade(key); err != nil {
		m.emitError(err)
	}
	if err := m.store.ClearActiveTrade(alertKey(key)); err != nil {
		m.emitError(err)
	}
	telemetry.RecordSlotTransition(symbol, "EMPTY")
}
