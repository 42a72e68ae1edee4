package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/guyghost/constantine/internal/control"
	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/marketdata"
	"github.com/guyghost/constantine/internal/risk"
	"github.com/guyghost/constantine/internal/signal"
	"github.com/guyghost/constantine/internal/state"
	"github.com/guyghost/constantine/internal/symbolmanager"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateMatchesSide(t *testing.T) {
	buy := &signal.Candidate{Side: signal.SideBuy}
	sell := &signal.Candidate{Side: signal.SideSell}

	assert.True(t, candidateMatchesSide(buy, exchanges.PositionSideLong))
	assert.False(t, candidateMatchesSide(buy, exchanges.PositionSideShort))
	assert.True(t, candidateMatchesSide(sell, exchanges.PositionSideShort))
	assert.False(t, candidateMatchesSide(sell, exchanges.PositionSideLong))
}

func TestIntervalSeconds(t *testing.T) {
	assert.Equal(t, 60, intervalSeconds("1m"))
	assert.Equal(t, 300, intervalSeconds("5m"))
	assert.Equal(t, 900, intervalSeconds("15m"))
	assert.Equal(t, 3600, intervalSeconds("1h"))
	assert.Equal(t, 300, intervalSeconds("1d"))
}

func TestOrchestrator_FallbackQuantity(t *testing.T) {
	o := &Orchestrator{}

	cfg := symbolmanager.DefaultSymbolConfig("BTC-USD")
	cfg.FixedQuantity = decimal.NewFromFloat(0.5)
	assert.True(t, o.fallbackQuantity(cfg, decimal.NewFromFloat(1000), decimal.NewFromFloat(100)).Equal(decimal.NewFromFloat(0.5)))

	cfg.FixedQuantity = decimal.Zero
	qty := o.fallbackQuantity(cfg, decimal.NewFromFloat(1000), decimal.NewFromFloat(100))
	assert.True(t, qty.Equal(decimal.NewFromFloat(0.1))) // 1% of balance / entry

	qty = o.fallbackQuantity(cfg, decimal.NewFromFloat(1000), decimal.Zero)
	assert.True(t, qty.IsZero())
}

func TestOrchestrator_TickSkipsDisabledSymbol(t *testing.T) {
	exchange := exchanges.NewMockExchange("test")
	cache := marketdata.New(context.Background(), exchange, nil)
	defer cache.Shutdown()

	symbols := symbolmanager.NewSymbolManager()
	cfg := symbolmanager.DefaultSymbolConfig("BTC-USD")
	cfg.Enabled = false
	require.NoError(t, symbols.AddSymbol("BTC-USD", cfg))

	o := NewOrchestrator(Config{
		Exchange:      exchange,
		Cache:         cache,
		Store:         state.NewStore(""),
		Symbols:       symbols,
		Control:       control.NoopChannel{},
		PortfolioRisk: risk.NewManager(risk.DefaultConfig(), decimal.NewFromFloat(10000)),
		DefaultSymbol: "BTC-USD",
	})

	// A disabled symbol's slot must stay empty; tick must not panic
	// when the Market Data Cache has no subscribed series yet.
	o.tick(context.Background())
	assert.Equal(t, 0, o.openSlotCount())
}

func TestOrchestrator_RunStopsOnContextCancel(t *testing.T) {
	exchange := exchanges.NewMockExchange("test")
	cache := marketdata.New(context.Background(), exchange, nil)
	defer cache.Shutdown()

	symbols := symbolmanager.NewSymbolManager()
	require.NoError(t, symbols.AddSymbol("BTC-USD", symbolmanager.DefaultSymbolConfig("BTC-USD")))

	o := NewOrchestrator(Config{
		Exchange:      exchange,
		Cache:         cache,
		Store:         state.NewStore(""),
		Symbols:       symbols,
		Control:       control.NoopChannel{},
		PortfolioRisk: risk.NewManager(risk.DefaultConfig(), decimal.NewFromFloat(10000)),
		TickInterval:  10 * time.Millisecond,
		DefaultSymbol: "BTC-USD",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
