package futuresrest

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/logger"
	"github.com/shopspring/decimal"
)

const (
	minBackoff = time.Second
	maxBackoff = 60 * time.Second
)

// subscribeCandles streams every kline update for symbol/interval via
// futures.WsKlineServe, including in-progress bars, reconnecting with
// the same exponential backoff internal/marketdata.Cache's own
// reconnect loop uses. It never gives up: a stream drop just widens
// the backoff and tries again until ctx is cancelled. It blocks for
// that whole time and returns nil once ctx is cancelled. Candle.IsClosed
// carries event.Kline.IsFinal through so the cache can tell a
// still-forming bar from one that has finished.
func subscribeCandles(ctx context.Context, symbol, interval string, callback func(*exchanges.Candle), log *logger.Logger) error {
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			return nil
		}

		doneC, stopC, err := futures.WsKlineServe(symbol, interval,
			func(event *futures.WsKlineEvent) {
				backoff = minBackoff
				callback(klineEventToCandle(symbol, event))
			},
			func(err error) {
				log.Symbol(symbol).WithError(err).Warn("kline stream error")
			},
		)
		if err != nil {
			log.Symbol(symbol).WithError(err).Warn("kline stream connect failed, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff)
			continue
		}

		select {
		case <-ctx.Done():
			close(stopC)
			return nil
		case <-doneC:
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff)
		}
	}
}

func nextBackoff(d time.Duration) time.Duration {
	next := d * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func klineEventToCandle(symbol string, event *futures.WsKlineEvent) *exchanges.Candle {
	k := event.Kline
	open, _ := decimal.NewFromString(k.Open)
	high, _ := decimal.NewFromString(k.High)
	low, _ := decimal.NewFromString(k.Low)
	closePx, _ := decimal.NewFromString(k.Close)
	vol, _ := decimal.NewFromString(k.Volume)
	return &exchanges.Candle{
		Symbol:    symbol,
		Timestamp: time.UnixMilli(k.StartTime),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    vol,
		IsClosed:  k.IsFinal,
	}
}
