package marketdata

import (
	"context"
	"time"

	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/telemetry"
)

// runStream keeps one key's live subscription alive for the life of
// ctx. SubscribeCandles blocks for the life of the connection,
// returning an error when the stream drops. On drop it reconnects with
// exponential backoff (base 1s, cap 60s) and never gives up: a
// persistently failing key is reported as unavailable to readers
// rather than abandoned outright.
func (c *Cache) runStream(ctx context.Context, k key, e *entry) {
	backoff := time.Second
	maxBackoff := 60 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := c.exchange.SubscribeCandles(ctx, k.symbol, k.interval, func(candle *exchanges.Candle) {
			c.applyLive(e, *candle)
		})

		if ctx.Err() != nil {
			return
		}
		if err == nil {
			backoff = time.Second
			continue
		}

		c.log.Symbol(k.symbol).WithError(err).Warn("candle stream dropped, reconnecting")
		telemetry.RecordWebSocketReconnect("futures")

		e.mu.Lock()
		e.failed = true
		e.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		c.reconcileGap(ctx, k, e)
	}
}

// reconcileGap re-backfills a key after a reconnect so any candles
// missed while the stream was down are folded back in before the
// connection is marked healthy again.
func (c *Cache) reconcileGap(ctx context.Context, k key, e *entry) {
	e.mu.RLock()
	limit := cap(e.series.candles)
	e.mu.RUnlock()
	if limit <= 0 {
		limit = 1
	}

	history, err := c.exchange.GetCandles(ctx, k.symbol, k.interval, limit)
	if err != nil {
		c.log.Symbol(k.symbol).WithError(err).Warn("reconnect reconciliation backfill failed")
		return
	}

	e.mu.Lock()
	for _, candle := range history {
		e.series.ApplyLive(candle)
	}
	if closes := e.series.ClosedCloses(); len(closes) > 0 {
		if bands, ok := ComputeBands(closes, e.params); ok {
			e.bands = bands
		}
	}
	e.failed = false
	e.mu.Unlock()
}
