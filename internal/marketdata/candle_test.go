package marketdata

import (
	"testing"
	"time"

	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkCandle(minute int, closePx float64, isClosed bool) exchanges.Candle {
	return exchanges.Candle{
		Symbol:    "BTC-USD",
		Timestamp: time.Date(2026, 1, 1, 0, minute, 0, 0, time.UTC),
		Close:     decimal.NewFromFloat(closePx),
		IsClosed:  isClosed,
	}
}

func TestCandleSeries_BackfillThenLiveAppend(t *testing.T) {
	s := NewCandleSeries(3)
	s.ApplyBackfill([]exchanges.Candle{mkCandle(0, 100, true), mkCandle(1, 101, true), mkCandle(2, 102, true)})

	closed, ok := s.LastClosed()
	require.True(t, ok)
	assert.True(t, closed.Close.Equal(decimal.NewFromFloat(102)))

	applied := s.ApplyLive(mkCandle(3, 103, false))
	assert.True(t, applied)

	// capacity 3: oldest (minute 0) evicted, new candle is open.
	assert.Len(t, s.Candles(), 3)
	closed, ok = s.LastClosed()
	require.True(t, ok)
	assert.True(t, closed.Close.Equal(decimal.NewFromFloat(102)))
}

func TestCandleSeries_EqualOpenTimeOverwrites(t *testing.T) {
	s := NewCandleSeries(5)
	s.ApplyBackfill([]exchanges.Candle{mkCandle(0, 100, true)})

	s.ApplyLive(mkCandle(1, 50, false))
	applied := s.ApplyLive(mkCandle(1, 55, false))
	require.True(t, applied)

	assert.Len(t, s.Candles(), 2)
	latest, ok := s.Latest()
	require.True(t, ok)
	assert.True(t, latest.Close.Equal(decimal.NewFromFloat(55)))
}

func TestCandleSeries_LateDuplicateDiscarded(t *testing.T) {
	s := NewCandleSeries(5)
	s.ApplyBackfill([]exchanges.Candle{mkCandle(0, 100, true), mkCandle(5, 105, true)})

	applied := s.ApplyLive(mkCandle(2, 999, false))
	assert.False(t, applied)
	assert.Len(t, s.Candles(), 2)
}

func TestCandleSeries_LastClosedUnavailableWithOnlyOneOpenCandle(t *testing.T) {
	s := NewCandleSeries(5)
	s.ApplyLive(mkCandle(0, 100, false))

	_, ok := s.LastClosed()
	assert.False(t, ok)
}

func TestCandleSeries_CopyIsIndependent(t *testing.T) {
	s := NewCandleSeries(5)
	s.ApplyBackfill([]exchanges.Candle{mkCandle(0, 100, true)})

	cp := s.Copy()
	s.ApplyLive(mkCandle(1, 200, false))

	assert.Len(t, cp.Candles(), 1)
	assert.Len(t, s.Candles(), 2)
}

func TestCandleSeries_BackfillTailStillFormingIsNotClosed(t *testing.T) {
	s := NewCandleSeries(5)
	s.ApplyBackfill([]exchanges.Candle{mkCandle(0, 100, true), mkCandle(1, 101, false)})

	// the in-progress bar Binance returned as the tail of the REST
	// query must not be treated as the last closed candle.
	closed, ok := s.LastClosed()
	require.True(t, ok)
	assert.True(t, closed.Close.Equal(decimal.NewFromFloat(100)))
}

func TestCandleSeries_LiveCloseMarksCandleClosed(t *testing.T) {
	s := NewCandleSeries(5)
	s.ApplyBackfill([]exchanges.Candle{mkCandle(0, 100, true)})

	s.ApplyLive(mkCandle(1, 50, false))
	s.ApplyLive(mkCandle(1, 55, true))

	closed, ok := s.LastClosed()
	require.True(t, ok)
	assert.True(t, closed.Close.Equal(decimal.NewFromFloat(55)))
}
