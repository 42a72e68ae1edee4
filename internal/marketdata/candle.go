package marketdata

import (
	"time"

	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/shopspring/decimal"
)

// CandleSeries is a bounded, strictly-increasing-by-open-time window of
// candles for one (symbol, interval) key. The last element may be the
// currently forming candle; lastOpen reports whether that is the case.
//
// Mutation rule: equal open time overwrites the last candle in place,
// greater open time appends and evicts the oldest to respect capacity,
// smaller open time is a late duplicate and is discarded.
type CandleSeries struct {
	capacity int
	candles  []exchanges.Candle
	lastOpen bool
}

// NewCandleSeries allocates a series bounded to capacity candles.
// Capacity is always at least 1.
func NewCandleSeries(capacity int) *CandleSeries {
	if capacity < 1 {
		capacity = 1
	}
	return &CandleSeries{
		capacity: capacity,
		candles:  make([]exchanges.Candle, 0, capacity),
	}
}

// ApplyBackfill seeds the series from REST history, oldest first. The
// last element's IsClosed flag decides whether it is tracked as the
// in-progress bar: a limited kline query can return the bar Binance is
// still accumulating as its final element. Any existing state is
// replaced.
func (s *CandleSeries) ApplyBackfill(history []exchanges.Candle) {
	if len(history) > s.capacity {
		history = history[len(history)-s.capacity:]
	}
	s.candles = append(s.candles[:0], history...)
	s.lastOpen = false
	if n := len(s.candles); n > 0 {
		s.lastOpen = !s.candles[n-1].IsClosed
	}
}

// ApplyLive applies one streamed candle event. It returns true if the
// event changed the series (overwrite or append), false if it was a
// stale duplicate and discarded.
func (s *CandleSeries) ApplyLive(c exchanges.Candle) bool {
	if len(s.candles) == 0 {
		s.candles = append(s.candles, c)
		s.lastOpen = !c.IsClosed
		return true
	}

	last := &s.candles[len(s.candles)-1]
	switch {
	case c.Timestamp.Equal(last.Timestamp):
		*last = c
		s.lastOpen = !c.IsClosed
		return true
	case c.Timestamp.After(last.Timestamp):
		s.candles = append(s.candles, c)
		if len(s.candles) > s.capacity {
			s.candles = s.candles[len(s.candles)-s.capacity:]
		}
		s.lastOpen = !c.IsClosed
		return true
	default:
		return false
	}
}

// LastClosed returns the most recent candle known to be fully closed,
// excluding the in-progress bar when one is being tracked.
func (s *CandleSeries) LastClosed() (exchanges.Candle, bool) {
	n := len(s.candles)
	if n == 0 {
		return exchanges.Candle{}, false
	}
	if !s.lastOpen {
		return s.candles[n-1], true
	}
	if n < 2 {
		return exchanges.Candle{}, false
	}
	return s.candles[n-2], true
}

// ClosedCloses returns the close prices of every closed candle, oldest
// first, suitable as SMA/Bollinger Band input.
func (s *CandleSeries) ClosedCloses() []decimal.Decimal {
	n := len(s.candles)
	if n == 0 {
		return nil
	}
	end := n
	if s.lastOpen {
		end = n - 1
	}
	if end <= 0 {
		return nil
	}
	out := make([]decimal.Decimal, end)
	for i := 0; i < end; i++ {
		out[i] = s.candles[i].Close
	}
	return out
}

// Copy returns a deep copy safe for a caller to retain and read without
// further synchronization.
func (s *CandleSeries) Copy() *CandleSeries {
	cp := &CandleSeries{
		capacity: s.capacity,
		candles:  make([]exchanges.Candle, len(s.candles)),
		lastOpen: s.lastOpen,
	}
	copy(cp.candles, s.candles)
	return cp
}

// Candles returns the series contents oldest-first. Callers must treat
// the slice as read-only; it aliases internal state when returned from
// a Copy.
func (s *CandleSeries) Candles() []exchanges.Candle {
	return s.candles
}

// Latest returns the newest candle in the series, whether open or
// closed.
func (s *CandleSeries) Latest() (exchanges.Candle, bool) {
	if len(s.candles) == 0 {
		return exchanges.Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// LatestOpenTime reports the open time of the newest candle, used to
// size bounded REST reconciliation after a reconnect.
func (s *CandleSeries) LatestOpenTime() (time.Time, bool) {
	c, ok := s.Latest()
	if !ok {
		return time.Time{}, false
	}
	return c.Timestamp, true
}
