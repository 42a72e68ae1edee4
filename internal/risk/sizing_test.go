package risk

import (
	"testing"

	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/signal"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func btcFilters() *exchanges.SymbolFilters {
	return &exchanges.SymbolFilters{
		Symbol:      "BTC-USD",
		PriceTick:   d(0.01),
		QtyStep:     d(0.01),
		MinQty:      d(0.01),
		MinNotional: d(1),
	}
}

func buyCandidate() *signal.Candidate {
	return &signal.Candidate{
		Symbol: "BTC-USD",
		Side:   signal.SideBuy,
		Entry:  d(100.8),
		SLRef:  d(100.0),
	}
}

func TestSizeAndValidate_SeedScenario1_FixedRiskNoMartingale(t *testing.T) {
	cfg := RiskConfig{
		UseFixedMonetaryRiskSL:    true,
		FixedMonetaryRiskPerTrade: d(1.00),
		RiskRewardMultiplier:      d(10),
	}

	trade, err := SizeAndValidate(buyCandidate(), d(1000), decimal.Zero, btcFilters(), cfg)
	require.NoError(t, err)
	require.NotNil(t, trade)

	assert.True(t, trade.Quantity.Equal(d(1.25)), "qty: %s", trade.Quantity)
	assert.True(t, trade.TakeProfit.Equal(d(108.8)), "tp: %s", trade.TakeProfit)
	assert.True(t, trade.TargetMonetaryRisk.Equal(d(1.00)))
	assert.True(t, trade.StopLoss.Equal(d(100.0)))
}

func TestSizeAndValidate_SeedScenario6_MartingaleRecovery(t *testing.T) {
	cfg := RiskConfig{
		UseFixedMonetaryRiskSL:    true,
		FixedMonetaryRiskPerTrade: d(1.00),
		RiskRewardMultiplier:      d(10),
		UseMartingaleLossRecovery: true,
		MartingaleDivisorK:        d(10),
	}

	trade, err := SizeAndValidate(buyCandidate(), d(1000), d(0.975), btcFilters(), cfg)
	require.NoError(t, err)
	require.NotNil(t, trade)

	assert.True(t, trade.TargetMonetaryRisk.Equal(d(1.0975)), "R_effective: %s", trade.TargetMonetaryRisk)
	assert.True(t, trade.Quantity.Equal(d(1.37)), "qty: %s", trade.Quantity)
	assert.True(t, trade.AccumulatedLossAtEntry.Equal(d(0.975)))
}

func TestSizeAndValidate_PercentageRiskMode(t *testing.T) {
	cfg := RiskConfig{
		UsePercentageRisk:      true,
		RiskPercentagePerTrade: d(0.01),
		RiskRewardMultiplier:   d(10),
	}

	trade, err := SizeAndValidate(buyCandidate(), d(100), decimal.Zero, btcFilters(), cfg)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.True(t, trade.TargetMonetaryRisk.Equal(d(1.00)))
}

func TestSizeAndValidate_UnresolvableRiskSourceErrors(t *testing.T) {
	trade, err := SizeAndValidate(buyCandidate(), d(1000), decimal.Zero, btcFilters(), RiskConfig{})
	assert.Nil(t, trade)
	assert.ErrorIs(t, err, ErrUnresolvableRiskSource)
}

func TestSizeAndValidate_RejectsWhenDistanceBelowTick(t *testing.T) {
	cand := buyCandidate()
	cand.SLRef = d(100.799)

	cfg := RiskConfig{UseFixedMonetaryRiskSL: true, FixedMonetaryRiskPerTrade: d(1), RiskRewardMultiplier: d(10)}
	trade, err := SizeAndValidate(cand, d(1000), decimal.Zero, btcFilters(), cfg)
	assert.NoError(t, err)
	assert.Nil(t, trade)
}

func TestSizeAndValidate_RejectsSubMinimumNotional(t *testing.T) {
	cfg := RiskConfig{
		UseFixedMonetaryRiskSL:    true,
		FixedMonetaryRiskPerTrade: d(1),
		RiskRewardMultiplier:      d(10),
	}
	filters := btcFilters()
	filters.MinNotional = d(1000)

	trade, err := SizeAndValidate(buyCandidate(), d(1000), decimal.Zero, filters, cfg)
	assert.NoError(t, err)
	assert.Nil(t, trade)
}

func TestSizeAndValidate_RejectsNonSaneDirection(t *testing.T) {
	cand := buyCandidate()
	cand.Entry = d(99.0) // below SLRef for a BUY is not sane

	cfg := RiskConfig{UseFixedMonetaryRiskSL: true, FixedMonetaryRiskPerTrade: d(1), RiskRewardMultiplier: d(10)}
	trade, err := SizeAndValidate(cand, d(1000), decimal.Zero, btcFilters(), cfg)
	assert.NoError(t, err)
	assert.Nil(t, trade)
}
