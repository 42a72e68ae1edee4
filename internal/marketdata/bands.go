package marketdata

import (
	"math"

	"github.com/shopspring/decimal"
)

// BBParams configures the dual-multiplier Bollinger Band computation for
// one subscribed key.
type BBParams struct {
	Length   int
	MultOrig float64
	MultNew  float64
}

// ContextualBands is the band set derived from one closed candle. BBM is
// shared between the "orig" and "new" multiplier bands since both are
// computed from the same SMA/stddev pass.
type ContextualBands struct {
	BBLOrig decimal.Decimal
	BBMOrig decimal.Decimal
	BBUOrig decimal.Decimal
	BBLNew  decimal.Decimal
	BBUNew  decimal.Decimal
}

// ComputeBands derives (BBL_orig, BBM, BBU_orig, BBL_new, BBU_new) from
// the trailing closes ending at the most recent closed candle. It
// mirrors internal/strategy/indicators.go's BollingerBands SMA/stddev
// pass, computed once for the final window instead of the whole series,
// and extended to share one middle band across two multiplier sets.
func ComputeBands(closes []decimal.Decimal, params BBParams) (*ContextualBands, bool) {
	if params.Length <= 0 || len(closes) < params.Length {
		return nil, false
	}

	window := closes[len(closes)-params.Length:]

	sum := decimal.Zero
	for _, c := range window {
		sum = sum.Add(c)
	}
	middle := sum.Div(decimal.NewFromInt(int64(params.Length)))

	variance := 0.0
	for _, c := range window {
		diff, _ := c.Sub(middle).Float64()
		variance += diff * diff
	}
	variance /= float64(params.Length)
	std := math.Sqrt(variance)

	stdOrig := decimal.NewFromFloat(std * params.MultOrig)
	stdNew := decimal.NewFromFloat(std * params.MultNew)

	return &ContextualBands{
		BBLOrig: middle.Sub(stdOrig),
		BBMOrig: middle,
		BBUOrig: middle.Add(stdOrig),
		BBLNew:  middle.Sub(stdNew),
		BBUNew:  middle.Add(stdNew),
	}, true
}
