package marketdata

import (
	"context"
	"fmt"
	"sync"

	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/logger"
	"github.com/shopspring/decimal"
)

// key identifies one subscribed (symbol, interval) stream.
type key struct {
	symbol   string
	interval string
}

func (k key) String() string {
	return fmt.Sprintf("%s|%s", k.symbol, k.interval)
}

type entry struct {
	mu     sync.RWMutex
	series *CandleSeries
	bands  *ContextualBands
	params BBParams
	cancel context.CancelFunc
	failed bool
}

// Cache is the Market Data Cache: a per-(symbol,interval) bounded candle
// series with incrementally-recomputed Bollinger Bands, backed by one
// REST backfill plus a long-lived streaming subscription per key.
type Cache struct {
	exchange exchanges.Exchange
	log      *logger.Logger

	rootCtx context.Context
	cancel  context.CancelFunc

	mu          sync.Mutex
	entries     map[key]*entry
	subscribing map[key]bool
}

// New constructs a Cache bound to exchange for the life of ctx; Shutdown
// also stops every stream started through this cache.
func New(ctx context.Context, exchange exchanges.Exchange, log *logger.Logger) *Cache {
	rootCtx, cancel := context.WithCancel(ctx)
	if log == nil {
		log = logger.New(nil)
	}
	return &Cache{
		exchange:    exchange,
		log:         log.Component("marketdata"),
		rootCtx:     rootCtx,
		cancel:      cancel,
		entries:     make(map[key]*entry),
		subscribing: make(map[key]bool),
	}
}

// Subscribe ensures a backfilled, live-updating series exists for
// (symbol, interval). It is idempotent: a key already subscribed, or
// currently being subscribed by a concurrent caller, is a no-op.
func (c *Cache) Subscribe(ctx context.Context, symbol, interval string, historyLimit int, params BBParams) error {
	k := key{symbol: symbol, interval: interval}

	c.mu.Lock()
	if _, ok := c.entries[k]; ok {
		c.mu.Unlock()
		return nil
	}
	if c.subscribing[k] {
		c.mu.Unlock()
		return nil
	}
	c.subscribing[k] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.subscribing, k)
		c.mu.Unlock()
	}()

	history, err := c.exchange.GetCandles(ctx, symbol, interval, historyLimit)
	if err != nil {
		return fmt.Errorf("backfill %s: %w", k, err)
	}

	series := NewCandleSeries(historyLimit)
	series.ApplyBackfill(history)

	e := &entry{series: series, params: params}
	if closes := series.ClosedCloses(); len(closes) > 0 {
		e.bands, _ = ComputeBands(closes, params)
	}

	streamCtx, cancel := context.WithCancel(c.rootCtx)
	e.cancel = cancel

	c.mu.Lock()
	c.entries[k] = e
	c.mu.Unlock()

	go c.runStream(streamCtx, k, e)

	return nil
}

// applyLive folds one streamed candle event into the entry's series and
// recomputes bands in the same write-lock section, per spec: a reader
// never observes a candle update without its bands.
func (c *Cache) applyLive(e *entry, candle exchanges.Candle) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.series.ApplyLive(candle) {
		return
	}
	if closes := e.series.ClosedCloses(); len(closes) > 0 {
		if bands, ok := ComputeBands(closes, e.params); ok {
			e.bands = bands
		}
	}
}

func (c *Cache) getEntry(symbol, interval string) (*entry, bool) {
	c.mu.Lock()
	e, ok := c.entries[key{symbol: symbol, interval: interval}]
	c.mu.Unlock()
	return e, ok
}

// GetSeries returns a deep copy of the series for (symbol, interval), or
// ok=false if not subscribed or the stream has failed persistently.
func (c *Cache) GetSeries(symbol, interval string) (*CandleSeries, bool) {
	e, ok := c.getEntry(symbol, interval)
	if !ok {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.failed {
		return nil, false
	}
	return e.series.Copy(), true
}

// GetContextualBands returns the band set computed from the last closed
// candle for (symbol, interval).
func (c *Cache) GetContextualBands(symbol, interval string) (*ContextualBands, bool) {
	e, ok := c.getEntry(symbol, interval)
	if !ok {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.failed || e.bands == nil {
		return nil, false
	}
	cp := *e.bands
	return &cp, true
}

// GetSpecificBand returns a single named band value: one of
// "BBL_orig", "BBM_orig", "BBU_orig", "BBL_new", "BBU_new".
func (c *Cache) GetSpecificBand(symbol, interval, name string) (decimal.Decimal, bool) {
	bands, ok := c.GetContextualBands(symbol, interval)
	if !ok {
		return decimal.Zero, false
	}
	switch name {
	case "BBL_orig":
		return bands.BBLOrig, true
	case "BBM_orig":
		return bands.BBMOrig, true
	case "BBU_orig":
		return bands.BBUOrig, true
	case "BBL_new":
		return bands.BBLNew, true
	case "BBU_new":
		return bands.BBUNew, true
	default:
		return decimal.Zero, false
	}
}

// Shutdown stops every stream started through this cache.
func (c *Cache) Shutdown() {
	c.cancel()
}
