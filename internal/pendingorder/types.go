package pendingorder

import (
	"time"

	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/signal"
	"github.com/guyghost/constantine/internal/state"
	"github.com/shopspring/decimal"
)

// Status is the TradeSlot tagged-union state. Exactly one of Pending or
// Open is populated outside of Empty.
type Status string

const (
	StatusEmpty   Status = "EMPTY"
	StatusPending Status = "PENDING_DYNAMIC_LIMIT"
	StatusOpen    Status = "POSITION_OPEN"
)

// Slot is one TradeSlot keyed "{symbol}_{LONG|SHORT}".
type Slot struct {
	Key          string
	Symbol       string
	PositionSide exchanges.PositionSide
	Status       Status
	Pending      *state.PendingTrade
	Open         *state.OpenPosition
}

// SlotConfig carries the per-symbol parameters a phase needs: the three
// interval strings, the risk/reward multiplier, and the exchange
// filters used for tick/notional rounding.
type SlotConfig struct {
	PrimaryInterval       string
	TriggerInterval       string
	SLReferenceInterval   string
	PrimaryIntervalSeconds int
	RiskRewardMultiplier  decimal.Decimal
	Filters               *exchanges.SymbolFilters
}

// forceUpdateThreshold mirrors the Python source's
// `interval*60 - 30` force-refresh gate.
func (c SlotConfig) forceUpdateThreshold() time.Duration {
	return time.Duration(c.PrimaryIntervalSeconds-30) * time.Second
}

// newSlot constructs an Empty slot for key.
func newSlot(symbol string, positionSide exchanges.PositionSide) *Slot {
	key := symbol + "_" + string(positionSide)
	return &Slot{Key: key, Symbol: symbol, PositionSide: positionSide, Status: StatusEmpty}
}

// fromValidatedTrade seeds a freshly signalled Slot's Pending payload.
func fromValidatedTrade(symbol string, positionSide exchanges.PositionSide, side signal.Side, entry, sl, tp, qty, risk, accLoss decimal.Decimal, cand *signal.Candidate, now time.Time) *Slot {
	s := newSlot(symbol, positionSide)
	s.Status = StatusPending
	s.Pending = &state.PendingTrade{
		SignalType:              string(side),
		TargetEntryPrice:        entry,
		TargetSLPrice:           sl,
		TargetTPPrice:           tp,
		Quantity:                qty,
		PreCheckBBLOrigPrimary:  cand.BBLOrigP,
		PreCheckBBUOrigPrimary:  cand.BBUOrigP,
		PreCheckBBMSLRef:        cand.SLRef,
		GateBandPrimaryLower:    cand.BBLNewP,
		GateBandPrimaryUpper:    cand.BBUNewP,
		GatingBBMOrigPrimary:    cand.BBMOrigP,
		LastPrimaryUpdateTSUTC:  now.Unix(),
		TargetMonetaryRiskTrade: risk,
		AccumulatedLossAtEntry:  accLoss,
	}
	return s
}
