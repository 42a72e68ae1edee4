package risk

import (
	"errors"

	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/signal"
	"github.com/guyghost/constantine/pkg/utils"
	"github.com/shopspring/decimal"
)

// ErrUnresolvableRiskSource is returned when neither risk-mode flag in
// RiskConfig resolves to a monetary risk source. Every other sizing
// rejection is a normal "no trade" outcome signalled by (nil, nil).
var ErrUnresolvableRiskSource = errors.New("risk: no fixed or percentage risk source configured")

// RiskConfig carries the BB-strategy risk-mode flags from process
// configuration (see internal/config): fixed-monetary or percentage
// base risk, the bounded martingale add-on, and the risk/reward
// multiplier used to place the take-profit.
type RiskConfig struct {
	UseFixedMonetaryRiskSL   bool
	FixedMonetaryRiskPerTrade decimal.Decimal

	UsePercentageRisk      bool
	RiskPercentagePerTrade decimal.Decimal // fraction of balance, e.g. 0.01 = 1%

	UseMartingaleLossRecovery bool
	MartingaleDivisorK        decimal.Decimal // carried from config; SizeAndValidate does not read it

	RiskRewardMultiplier decimal.Decimal // K in TP = entry +/- K*d and in R_base + accumulatedLoss/K
}

// ValidatedTrade is a fully sized, exchange-filter-validated bracket
// ready for the Pending-Order Manager to place.
type ValidatedTrade struct {
	Symbol     string
	Side       signal.Side
	Entry      decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	Quantity   decimal.Decimal

	TargetMonetaryRisk     decimal.Decimal
	AccumulatedLossAtEntry decimal.Decimal
}

// SizeAndValidate derives R_effective (base risk plus a bounded
// martingale add-on), the filter-respecting order quantity, and the
// SL/TP bracket for candidate. A (nil, nil) return means the candidate
// was rejected for an ordinary reason (too-thin distance, sub-minimum
// quantity or notional, non-sane direction) and should simply be
// dropped; a non-nil error means the risk configuration itself cannot
// resolve a monetary risk amount, so sizing fails outright rather than
// silently skipping the candidate.
func SizeAndValidate(candidate *signal.Candidate, accountBalance, accumulatedLoss decimal.Decimal, filters *exchanges.SymbolFilters, cfg RiskConfig) (*ValidatedTrade, error) {
	rBase, err := baseRisk(accountBalance, cfg)
	if err != nil {
		return nil, err
	}

	rEffective := rBase
	if cfg.UseMartingaleLossRecovery && accumulatedLoss.GreaterThan(decimal.Zero) && cfg.RiskRewardMultiplier.GreaterThan(decimal.Zero) {
		rEffective = rBase.Add(accumulatedLoss.Div(cfg.RiskRewardMultiplier))
	}

	entry := candidate.Entry
	slRef := candidate.SLRef

	d := entry.Sub(slRef).Abs()
	if d.LessThan(filters.PriceTick) {
		return nil, nil
	}

	qty := utils.RoundDownToStep(rEffective.Div(d), filters.QtyStep)
	if qty.LessThan(filters.MinQty) {
		return nil, nil
	}
	if qty.Mul(entry).LessThan(filters.MinNotional) {
		return nil, nil
	}

	var takeProfit decimal.Decimal
	switch candidate.Side {
	case signal.SideBuy:
		if !entry.GreaterThan(slRef) {
			return nil, nil
		}
		takeProfit = entry.Add(cfg.RiskRewardMultiplier.Mul(d))
	case signal.SideSell:
		if !entry.LessThan(slRef) {
			return nil, nil
		}
		takeProfit = entry.Sub(cfg.RiskRewardMultiplier.Mul(d))
	default:
		return nil, nil
	}
	takeProfit = utils.RoundToTick(takeProfit, filters.PriceTick)
	entry = utils.RoundToTick(entry, filters.PriceTick)

	return &ValidatedTrade{
		Symbol:                 candidate.Symbol,
		Side:                   candidate.Side,
		Entry:                  entry,
		StopLoss:               slRef,
		TakeProfit:             takeProfit,
		Quantity:               qty,
		TargetMonetaryRisk:     rEffective,
		AccumulatedLossAtEntry: accumulatedLoss,
	}, nil
}

func baseRisk(balance decimal.Decimal, cfg RiskConfig) (decimal.Decimal, error) {
	switch {
	case cfg.UseFixedMonetaryRiskSL:
		return cfg.FixedMonetaryRiskPerTrade, nil
	case cfg.UsePercentageRisk:
		return balance.Mul(cfg.RiskPercentagePerTrade), nil
	default:
		return decimal.Zero, ErrUnresolvableRiskSource
	}
}
