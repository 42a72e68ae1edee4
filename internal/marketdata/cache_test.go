package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExchange overrides only the candle-related calls of MockExchange
// so tests can drive deterministic backfill + streaming sequences.
type fakeExchange struct {
	*exchanges.MockExchange
	backfill    []exchanges.Candle
	liveEvents  []exchanges.Candle
	subscribeCh chan struct{}
}

func newFakeExchange(backfill []exchanges.Candle, live []exchanges.Candle) *fakeExchange {
	return &fakeExchange{
		MockExchange: exchanges.NewMockExchange("fake"),
		backfill:     backfill,
		liveEvents:   live,
		subscribeCh:  make(chan struct{}, 1),
	}
}

func (f *fakeExchange) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]exchanges.Candle, error) {
	return f.backfill, nil
}

func (f *fakeExchange) SubscribeCandles(ctx context.Context, symbol, interval string, callback func(*exchanges.Candle)) error {
	for i := range f.liveEvents {
		callback(&f.liveEvents[i])
	}
	select {
	case f.subscribeCh <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func closesAt(base time.Time, minutes []int, prices []float64) []exchanges.Candle {
	out := make([]exchanges.Candle, len(minutes))
	for i := range minutes {
		out[i] = mkCandle(minutes[i], prices[i], true)
	}
	return out
}

func TestCache_SubscribeThenBandsAvailableFromBackfill(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	backfill := closesAt(base, []int{0, 1, 2, 3, 4, 5}, []float64{100, 101, 102, 103, 104, 105})

	ex := newFakeExchange(backfill, nil)
	c := New(context.Background(), ex, nil)
	defer c.Shutdown()

	err := c.Subscribe(context.Background(), "BTC-USD", "5m", 6, BBParams{Length: 5, MultOrig: 2, MultNew: 1})
	require.NoError(t, err)

	bands, ok := c.GetContextualBands("BTC-USD", "5m")
	require.True(t, ok)
	mid, _ := bands.BBMOrig.Float64()
	assert.InDelta(t, 103, mid, 1e-9) // mean of minutes 1..5 (last 5 closed)
}

func TestCache_SubscribeIsIdempotent(t *testing.T) {
	ex := newFakeExchange(closesAt(time.Now(), []int{0}, []float64{100}), nil)
	c := New(context.Background(), ex, nil)
	defer c.Shutdown()

	require.NoError(t, c.Subscribe(context.Background(), "BTC-USD", "5m", 6, BBParams{Length: 1, MultOrig: 2, MultNew: 1}))
	require.NoError(t, c.Subscribe(context.Background(), "BTC-USD", "5m", 6, BBParams{Length: 1, MultOrig: 2, MultNew: 1}))

	series, ok := c.GetSeries("BTC-USD", "5m")
	require.True(t, ok)
	assert.Len(t, series.Candles(), 1)
}

func TestCache_LiveEventsUpdateRollingWindow(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	backfill := closesAt(base, []int{0, 1, 2, 3, 4, 5}, []float64{100, 101, 102, 103, 104, 105})
	live := []exchanges.Candle{mkCandle(6, 106, false)}

	ex := newFakeExchange(backfill, live)
	c := New(context.Background(), ex, nil)
	defer c.Shutdown()

	require.NoError(t, c.Subscribe(context.Background(), "BTC-USD", "5m", 6, BBParams{Length: 5, MultOrig: 2, MultNew: 1}))

	select {
	case <-ex.subscribeCh:
	case <-time.After(time.Second):
		t.Fatal("stream never delivered events")
	}
	// allow the background goroutine to finish applying the live event
	time.Sleep(20 * time.Millisecond)

	series, ok := c.GetSeries("BTC-USD", "5m")
	require.True(t, ok)
	assert.Len(t, series.Candles(), 6) // capacity 6: minute 0 evicted

	bands, ok := c.GetContextualBands("BTC-USD", "5m")
	require.True(t, ok)
	mid, _ := bands.BBMOrig.Float64()
	assert.InDelta(t, 103, mid, 1e-9) // mean of closed minutes 1..5, minute 6 still open
}

func TestCache_GetSpecificBandUnknownName(t *testing.T) {
	backfill := closesAt(time.Now(), []int{0, 1, 2}, []float64{1, 2, 3})
	ex := newFakeExchange(backfill, nil)
	c := New(context.Background(), ex, nil)
	defer c.Shutdown()

	require.NoError(t, c.Subscribe(context.Background(), "BTC-USD", "5m", 3, BBParams{Length: 3, MultOrig: 2, MultNew: 1}))

	_, ok := c.GetSpecificBand("BTC-USD", "5m", "BBM_orig")
	assert.True(t, ok)

	_, ok = c.GetSpecificBand("BTC-USD", "5m", "nonsense")
	assert.False(t, ok)
}

func TestCache_UnsubscribedKeyUnavailable(t *testing.T) {
	ex := newFakeExchange(nil, nil)
	c := New(context.Background(), ex, nil)
	defer c.Shutdown()

	_, ok := c.GetSeries("ETH-USD", "5m")
	assert.False(t, ok)
	_, ok = c.GetContextualBands("ETH-USD", "5m")
	assert.False(t, ok)
}
