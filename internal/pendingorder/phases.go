package pendingorder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/marketdata"
	"github.com/guyghost/constantine/internal/signal"
	"github.com/guyghost/constantine/internal/state"
	"github.com/guyghost/constantine/internal/telemetry"
	"github.com/guyghost/constantine/pkg/utils"
	"github.com/shopspring/decimal"
)

var (
	errInvalidFillPrice = errors.New("filled order reported a non-positive average price")
	errUnsafeStopLoss   = errors.New("stop loss is not valid against entry price and current market price")
)

// phaseA is the primary-interval refresh. It runs only when the force
// update threshold has elapsed (or this is the first tick), refreshes
// the precondition and gating snapshot fields unconditionally, and
// recomputes the dynamic entry/SL/TP when the new direction is still
// sane. Bands unavailable this tick only bumps the refresh timestamp,
// deferring recomputation to the next eligible tick.
func (m *Manager) phaseA(ctx context.Context, slot *Slot, cfg SlotConfig, now time.Time) (exit bool, err error) {
	last := time.Unix(slot.Pending.LastPrimaryUpdateTSUTC, 0)
	if slot.Pending.LastPrimaryUpdateTSUTC != 0 && now.Sub(last) < cfg.forceUpdateThreshold() {
		return false, nil
	}

	primary, ok := m.cache.GetContextualBands(slot.Symbol, cfg.PrimaryInterval)
	if !ok {
		slot.Pending.LastPrimaryUpdateTSUTC = now.Unix()
		return false, nil
	}
	slRefBBM, ok := m.cache.GetSpecificBand(slot.Symbol, cfg.SLReferenceInterval, "BBM_orig")
	if !ok {
		slot.Pending.LastPrimaryUpdateTSUTC = now.Unix()
		return false, nil
	}

	slot.Pending.PreCheckBBLOrigPrimary = primary.BBLOrig
	slot.Pending.PreCheckBBUOrigPrimary = primary.BBUOrig
	slot.Pending.PreCheckBBMSLRef = slRefBBM
	slot.Pending.GateBandPrimaryLower = primary.BBLNew
	slot.Pending.GateBandPrimaryUpper = primary.BBUNew
	slot.Pending.GatingBBMOrigPrimary = primary.BBMOrig
	slot.Pending.LastPrimaryUpdateTSUTC = now.Unix()

	newEntry, newSL, sane := m.reprice(slot, primary, slRefBBM, cfg.Filters)
	if sane {
		d := newEntry.Sub(newSL).Abs()
		newTP := newEntry
		if slot.Pending.SignalType == string(signal.SideBuy) {
			newTP = newEntry.Add(cfg.RiskRewardMultiplier.Mul(d))
		} else {
			newTP = newEntry.Sub(cfg.RiskRewardMultiplier.Mul(d))
		}
		newEntry = utils.RoundToTick(newEntry, cfg.Filters.PriceTick)
		newTP = utils.RoundToTick(newTP, cfg.Filters.PriceTick)

		priceChanged := !newEntry.Equal(slot.Pending.TargetEntryPrice)
		slot.Pending.TargetEntryPrice = newEntry
		slot.Pending.TargetSLPrice = newSL
		slot.Pending.TargetTPPrice = newTP

		if priceChanged && slot.Pending.CurrentEntryOrderID != "" {
			if err := m.reconcileWorkingOrder(ctx, slot); err != nil {
				return false, err
			}
		}
	}

	if slot.Pending.CurrentEntryOrderID != "" {
		order, err := m.exchange.GetOrder(ctx, slot.Pending.CurrentEntryOrderID)
		if err != nil {
			return false, newSlotError(OperationRefreshBands, slot.Key, err)
		}
		if order.Status == exchanges.OrderStatusFilled {
			if err := m.processFilledOrder(ctx, slot, cfg, order); err != nil {
				m.emitError(err)
			}
			return true, nil
		}
		if isTerminal(order.Status) {
			slot.Pending.CurrentEntryOrderID = ""
		}
	}

	return false, nil
}

// reprice computes the dynamic entry/SL pair for slot's side given the
// freshly-read bands, reporting whether the new direction is still
// sane (entry on the correct side of SL).
func (m *Manager) reprice(slot *Slot, primary *marketdata.ContextualBands, slRefBBM decimal.Decimal, filters *exchanges.SymbolFilters) (entry, sl decimal.Decimal, sane bool) {
	sl = slRefBBM
	if slot.Pending.SignalType == string(signal.SideBuy) {
		entry = primary.BBLNew
		return entry, sl, entry.GreaterThan(sl)
	}
	entry = primary.BBUNew
	return entry, sl, entry.LessThan(sl)
}

// reconcileWorkingOrder cancels the stale working entry order so Phase
// C can re-place it at the refreshed price next time the zone gate
// holds.
func (m *Manager) reconcileWorkingOrder(ctx context.Context, slot *Slot) error {
	callCtx, cancel := context.WithTimeout(ctx, defaultAPICallTimeout)
	defer cancel()
	if err := m.exchange.CancelOrder(callCtx, slot.Pending.CurrentEntryOrderID); err != nil {
		return newSlotError(Operation("cancel_for_reprice"), slot.Key, err)
	}
	slot.Pending.CurrentEntryOrderID = ""
	return nil
}

func isTerminal(status exchanges.OrderStatus) bool {
	switch status {
	case exchanges.OrderStatusCanceled, exchanges.OrderStatusExpired, exchanges.OrderStatusRejected:
		return true
	}
	return false
}

// phaseB re-checks the side-specific precondition against the
// (possibly just-refreshed) snapshot fields, reaping the slot when it
// no longer holds.
func (m *Manager) phaseB(slot *Slot) bool {
	if slot.Pending.SignalType == string(signal.SideBuy) {
		return slot.Pending.PreCheckBBLOrigPrimary.GreaterThan(slot.Pending.PreCheckBBMSLRef)
	}
	return slot.Pending.PreCheckBBUOrigPrimary.LessThan(slot.Pending.PreCheckBBMSLRef)
}

// phaseC is the trigger-interval zone gate: BUY zones on
// [BBL_orig_P, BBM_orig_P] checked against the last trigger candle's
// low, SELL zones on [BBM_orig_P, BBU_orig_P] checked against its high.
// In zone with no working order places one; in zone with a
// wrong-priced working order cancels and re-places; out of zone with a
// working order cancels it outright.
func (m *Manager) phaseC(ctx context.Context, slot *Slot, cfg SlotConfig) (bool, error) {
	series, ok := m.cache.GetSeries(slot.Symbol, cfg.TriggerInterval)
	if !ok {
		return false, nil
	}
	candle, ok := series.Latest()
	if !ok {
		return false, nil
	}

	var inZone bool
	if slot.Pending.SignalType == string(signal.SideBuy) {
		inZone = utils.IsWithinRange(candle.Low, slot.Pending.PreCheckBBLOrigPrimary, slot.Pending.GatingBBMOrigPrimary)
	} else {
		inZone = utils.IsWithinRange(candle.High, slot.Pending.GatingBBMOrigPrimary, slot.Pending.PreCheckBBUOrigPrimary)
	}

	hasOrder := slot.Pending.CurrentEntryOrderID != ""

	if !inZone {
		if hasOrder {
			if err := m.cancelEntryOrder(ctx, slot); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	if hasOrder {
		order, err := m.exchange.GetOrder(ctx, slot.Pending.CurrentEntryOrderID)
		if err != nil {
			return false, newSlotError(OperationPlaceEntry, slot.Key, err)
		}
		if !order.Price.Equal(slot.Pending.TargetEntryPrice) {
			if err := m.cancelEntryOrder(ctx, slot); err != nil {
				return false, err
			}
		} else {
			return false, nil
		}
	}

	return false, m.placeEntryOrder(ctx, slot, cfg)
}

func (m *Manager) cancelEntryOrder(ctx context.Context, slot *Slot) error {
	callCtx, cancel := context.WithTimeout(ctx, defaultAPICallTimeout)
	defer cancel()
	if err := m.exchange.CancelOrder(callCtx, slot.Pending.CurrentEntryOrderID); err != nil {
		return newSlotError(OperationPlaceEntry, slot.Key, err)
	}
	slot.Pending.CurrentEntryOrderID = ""
	return nil
}

func (m *Manager) placeEntryOrder(ctx context.Context, slot *Slot, cfg SlotConfig) error {
	callCtx, cancel := context.WithTimeout(ctx, defaultAPICallTimeout)
	defer cancel()

	side := exchanges.OrderSideBuy
	if slot.Pending.SignalType == string(signal.SideSell) {
		side = exchanges.OrderSideSell
	}

	order := &exchanges.Order{
		ClientOrderID: uuid.New().String(),
		Symbol:        slot.Symbol,
		Side:          side,
		Type:          exchanges.OrderTypeLimit,
		Amount:        slot.Pending.Quantity,
		Price:         slot.Pending.TargetEntryPrice,
		PositionSide:  slot.PositionSide,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	placed, err := m.exchange.PlaceOrder(callCtx, order)
	if err != nil {
		return newSlotError(OperationPlaceEntry, slot.Key, err)
	}
	slot.Pending.CurrentEntryOrderID = placed.ID
	telemetry.RecordOrderPlaced(slot.Symbol, string(side))
	return nil
}

// phaseD checks the working entry order for a fill, installing the
// bracket and transitioning to POSITION_OPEN on FILLED, or clearing
// the order id on any other terminal status.
func (m *Manager) phaseD(ctx context.Context, slot *Slot, cfg SlotConfig) (bool, error) {
	if slot.Pending.CurrentEntryOrderID == "" {
		return false, nil
	}
	order, err := m.exchange.GetOrder(ctx, slot.Pending.CurrentEntryOrderID)
	if err != nil {
		return false, newSlotError(OperationPlaceEntry, slot.Key, err)
	}

	switch order.Status {
	case exchanges.OrderStatusFilled:
		if err := m.processFilledOrder(ctx, slot, cfg, order); err != nil {
			m.emitError(err)
		}
		return true, nil
	case exchanges.OrderStatusCanceled, exchanges.OrderStatusExpired, exchanges.OrderStatusRejected:
		slot.Pending.CurrentEntryOrderID = ""
	}
	return false, nil
}

// processFilledOrder installs the stop-loss and take-profit brackets
// for a just-filled entry and transitions the slot to POSITION_OPEN.
// The stop-loss is mandatory: a missing or direction-invalid SL
// triggers an emergency close of the freshly opened position rather
// than leaving it unprotected. The take-profit is best-effort.
func (m *Manager) processFilledOrder(ctx context.Context, slot *Slot, cfg SlotConfig, filled *exchanges.Order) error {
	entryActual := filled.AveragePrice
	if entryActual.IsZero() {
		entryActual = filled.Price
	}
	if entryActual.LessThanOrEqual(decimal.Zero) {
		m.emergencyClose(ctx, slot, filled)
		return newSlotError(OperationPlaceBracket, slot.Key, errInvalidFillPrice)
	}

	markPrice, err := m.exchange.GetMarkPrice(ctx, slot.Symbol)
	if err != nil {
		markPrice = entryActual
	}

	sl := slot.Pending.TargetSLPrice
	var slValid bool
	if slot.Pending.SignalType == string(signal.SideBuy) {
		slValid = sl.LessThan(entryActual) && sl.LessThan(markPrice)
	} else {
		slValid = sl.GreaterThan(entryActual) && sl.GreaterThan(markPrice)
	}
	if !slValid {
		m.emergencyClose(ctx, slot, filled)
		return newSlotError(OperationPlaceBracket, slot.Key, errUnsafeStopLoss)
	}

	slOrder, err := m.placeBracket(ctx, slot, filled, exchanges.OrderTypeStopMarket, sl)
	if err != nil {
		m.emergencyClose(ctx, slot, filled)
		return newSlotError(OperationPlaceBracket, slot.Key, err)
	}

	var tpOrderID string
	tp := slot.Pending.TargetTPPrice
	tpSane := (slot.Pending.SignalType == string(signal.SideBuy) && tp.GreaterThan(entryActual)) ||
		(slot.Pending.SignalType == string(signal.SideSell) && tp.LessThan(entryActual))
	if tpSane {
		if tpOrder, err := m.placeBracket(ctx, slot, filled, exchanges.OrderTypeTakeProfitMarket, tp); err != nil {
			m.log.Symbol(slot.Symbol).WithError(err).Warn("take profit placement failed, position remains SL-only")
		} else {
			tpOrderID = tpOrder.ID
		}
	}

	quantity := filled.FilledAmount
	if quantity.IsZero() {
		quantity = slot.Pending.Quantity
	}

	slot.Status = StatusOpen
	slot.Open = &state.OpenPosition{
		Quantity:         quantity,
		EntryPriceActual: entryActual,
		PositionSide:     string(slot.PositionSide),
		SLOrderID:        slOrder.ID,
		TPOrderID:        tpOrderID,
	}
	slot.Pending = nil

	if err := m.persist(slot); err != nil {
		m.emitError(err)
	}
	telemetry.RecordSlotTransition(slot.Symbol, string(StatusOpen))
	m.emitEvent(slot, "entry filled, bracket installed")
	return nil
}

func (m *Manager) placeBracket(ctx context.Context, slot *Slot, filled *exchanges.Order, orderType exchanges.OrderType, price decimal.Decimal) (*exchanges.Order, error) {
	callCtx, cancel := context.WithTimeout(ctx, defaultAPICallTimeout)
	defer cancel()

	side := exchanges.OrderSideSell
	if filled.Side == exchanges.OrderSideSell {
		side = exchanges.OrderSideBuy
	}

	order := &exchanges.Order{
		ClientOrderID: uuid.New().String(),
		Symbol:        slot.Symbol,
		Side:          side,
		Type:          orderType,
		Amount:        filled.Amount,
		StopPrice:     price,
		Price:         price,
		PositionSide:  slot.PositionSide,
		ClosePosition: true,
		ReduceOnly:    true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	return m.exchange.PlaceOrder(callCtx, order)
}

// emergencyClose force-closes a position that cannot be safely
// protected by a stop loss. The slot is destroyed unconditionally,
// even if the close order itself fails, since a stale slot is worse
// than an unreconciled manual position.
func (m *Manager) emergencyClose(ctx context.Context, slot *Slot, filled *exchanges.Order) {
	callCtx, cancel := context.WithTimeout(ctx, defaultAPICallTimeout)
	defer cancel()

	side := exchanges.OrderSideSell
	if filled.Side == exchanges.OrderSideSell {
		side = exchanges.OrderSideBuy
	}
	order := &exchanges.Order{
		ClientOrderID: uuid.New().String(),
		Symbol:        slot.Symbol,
		Side:          side,
		Type:          exchanges.OrderTypeMarket,
		Amount:        filled.Amount,
		PositionSide:  slot.PositionSide,
		ReduceOnly:    true,
		ClosePosition: true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if _, err := m.exchange.PlaceOrder(callCtx, order); err != nil {
		m.log.Symbol(slot.Symbol).WithError(err).Error("emergency close order failed, position may be unprotected")
	}

	telemetry.RecordEmergencyClose(slot.Symbol)
	m.clearSlot(slot, "emergency close")
}
