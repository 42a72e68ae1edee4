package signal

import (
	"context"

	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/logger"
	"github.com/guyghost/constantine/internal/marketdata"
	"github.com/shopspring/decimal"
)

// Side is the candidate's trade direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Candidate is a tri-timeframe precondition+trigger match ready for
// sizing. SLRef is the SL-reference interval's BBM_orig, the unsized
// stop-loss anchor.
type Candidate struct {
	Symbol    string
	Side      Side
	Entry     decimal.Decimal
	TriggerPx decimal.Decimal
	SLRef     decimal.Decimal

	// Primary-interval bands at evaluation time, carried forward so the
	// Pending-Order Manager's Phase B re-check has the exact snapshot
	// the signal fired against.
	BBLOrigP decimal.Decimal
	BBMOrigP decimal.Decimal
	BBUOrigP decimal.Decimal
	BBLNewP  decimal.Decimal
	BBUNewP  decimal.Decimal
}

// Evaluator reads the Market Data Cache and reports a BUY/SELL
// candidate for a symbol, or false when no precondition+trigger pair
// currently holds. It never returns an error: missing or unavailable
// inputs at any step are "no signal", exactly like
// internal/strategy/signals.go's GenerateSignal early-return shape.
type Evaluator struct {
	cache *marketdata.Cache
	log   *logger.Logger
}

// NewEvaluator constructs an Evaluator reading from cache.
func NewEvaluator(cache *marketdata.Cache) *Evaluator {
	return &Evaluator{
		cache: cache,
		log:   logger.Component("signal"),
	}
}

// Evaluate checks symbol's trigger-interval close against its primary
// and SL-reference interval bands. BUY requires precondition
// BBL_orig_P > BBM_orig_S and trigger price_T < BBM_orig_P. SELL
// requires the mirrored precondition BBU_orig_P < BBM_orig_S and
// trigger price_T > BBM_orig_P. Both comparisons are strict, per the
// preserved "strict inequality" behavior.
func (e *Evaluator) Evaluate(ctx context.Context, symbol string, primaryInterval, triggerInterval, slRefInterval string) (*Candidate, bool) {
	primary, ok := e.cache.GetContextualBands(symbol, primaryInterval)
	if !ok {
		return nil, false
	}
	slRefBBM, ok := e.cache.GetSpecificBand(symbol, slRefInterval, "BBM_orig")
	if !ok {
		return nil, false
	}
	triggerSeries, ok := e.cache.GetSeries(symbol, triggerInterval)
	if !ok {
		return nil, false
	}
	triggerCandle, ok := triggerSeries.Latest()
	if !ok {
		return nil, false
	}
	triggerPx := triggerCandle.Close

	if primary.BBLOrig.GreaterThan(slRefBBM) && triggerPx.LessThan(primary.BBMOrig) {
		e.log.WithField("symbol", symbol).Debug("BUY precondition and trigger satisfied")
		return &Candidate{
			Symbol:    symbol,
			Side:      SideBuy,
			Entry:     primary.BBLNew,
			TriggerPx: triggerPx,
			SLRef:     slRefBBM,
			BBLOrigP:  primary.BBLOrig,
			BBMOrigP:  primary.BBMOrig,
			BBUOrigP:  primary.BBUOrig,
			BBLNewP:   primary.BBLNew,
			BBUNewP:   primary.BBUNew,
		}, true
	}

	if primary.BBUOrig.LessThan(slRefBBM) && triggerPx.GreaterThan(primary.BBMOrig) {
		e.log.WithField("symbol", symbol).Debug("SELL precondition and trigger satisfied")
		return &Candidate{
			Symbol:    symbol,
			Side:      SideSell,
			Entry:     primary.BBUNew,
			TriggerPx: triggerPx,
			SLRef:     slRefBBM,
			BBLOrigP:  primary.BBLOrig,
			BBMOrigP:  primary.BBMOrig,
			BBUOrigP:  primary.BBUOrig,
			BBLNewP:   primary.BBLNew,
			BBUNewP:   primary.BBUNew,
		}, true
	}

	return nil, false
}

// OrderSide maps the candidate's direction to an exchange order side.
func (c *Candidate) OrderSide() exchanges.OrderSide {
	if c.Side == SideSell {
		return exchanges.OrderSideSell
	}
	return exchanges.OrderSideBuy
}
