// Package futuresrest implements exchanges.Exchange against a
// centralized derivatives venue's USDT-margined futures REST API,
// grounded on yohannesjx-sniperterminal/execution_service.go's
// go-binance/v2/futures call shapes (NewCreateOrderService,
// NewChangeLeverageService, NewGetPositionRiskService, ClosePosition/
// ReduceOnly/WorkingType fields).
package futuresrest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/guyghost/constantine/internal/circuitbreaker"
	"github.com/guyghost/constantine/internal/exchanges"
	"github.com/guyghost/constantine/internal/logger"
	"github.com/guyghost/constantine/internal/ratelimit"
	"github.com/shopspring/decimal"
)

// Client adapts a futures.Client to exchanges.Exchange. One-way vs
// hedge mode is read once at Connect and cached; bracket orders carry
// PositionSide only when the account runs hedge mode.
type Client struct {
	raw *futures.Client
	log *logger.Logger

	breaker *circuitbreaker.CircuitBreaker
	limiter ratelimit.Limiter

	mu           sync.RWMutex
	connected    bool
	positionMode exchanges.PositionMode
	orderSymbols map[string]string
}

// NewClient constructs a Client over apiKey/apiSecret. useTestnet
// switches the package-level futures.UseTestnet flag, matching
// execution_service.go's SafetyConfig.UseTestnet toggle.
func NewClient(apiKey, apiSecret string, useTestnet bool) *Client {
	futures.UseTestnet = useTestnet
	return &Client{
		raw:     futures.NewClient(apiKey, apiSecret),
		log:     logger.Component("futuresrest"),
		breaker: circuitbreaker.New("futuresrest", circuitbreaker.DefaultConfig()),
		limiter: ratelimit.NewTokenBucket(10, 20),
	}
}

func (c *Client) call(ctx context.Context, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.breaker.Execute(ctx, fn)
}

func (c *Client) Connect(ctx context.Context) error {
	var mode *futures.GetPositionModeResponse
	err := c.call(ctx, func() error {
		var innerErr error
		mode, innerErr = c.raw.NewGetPositionModeService().Do(ctx)
		return innerErr
	})
	if err != nil {
		return fmt.Errorf("futuresrest: connect: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	if mode.DualSidePosition {
		c.positionMode = exchanges.PositionModeHedge
	} else {
		c.positionMode = exchanges.PositionModeOneWay
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) GetTicker(ctx context.Context, symbol string) (*exchanges.Ticker, error) {
	var prices []*futures.SymbolPrice
	var book []*futures.BookTicker
	err := c.call(ctx, func() error {
		var innerErr error
		prices, innerErr = c.raw.NewListPricesService().Symbol(symbol).Do(ctx)
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("futuresrest: get ticker: %w", err)
	}
	if len(prices) == 0 {
		return nil, exchanges.ErrInvalidOrder
	}

	_ = c.call(ctx, func() error {
		var innerErr error
		book, innerErr = c.raw.NewListBookTickersService().Symbol(symbol).Do(ctx)
		return innerErr
	})

	last, _ := decimal.NewFromString(prices[0].Price)
	t := &exchanges.Ticker{Symbol: symbol, Last: last, Timestamp: time.Now()}
	if len(book) > 0 {
		t.Bid, _ = decimal.NewFromString(book[0].BidPrice)
		t.Ask, _ = decimal.NewFromString(book[0].AskPrice)
	}
	return t, nil
}

func (c *Client) GetOrderBook(ctx context.Context, symbol string, depth int) (*exchanges.OrderBook, error) {
	var res *futures.DepthResponse
	err := c.call(ctx, func() error {
		var innerErr error
		res, innerErr = c.raw.NewDepthService().Symbol(symbol).Limit(depth).Do(ctx)
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("futuresrest: get order book: %w", err)
	}

	ob := &exchanges.OrderBook{Symbol: symbol, Timestamp: time.Now()}
	for _, b := range res.Bids {
		price, _ := decimal.NewFromString(b.Price)
		qty, _ := decimal.NewFromString(b.Quantity)
		ob.Bids = append(ob.Bids, exchanges.Level{Price: price, Amount: qty})
	}
	for _, a := range res.Asks {
		price, _ := decimal.NewFromString(a.Price)
		qty, _ := decimal.NewFromString(a.Quantity)
		ob.Asks = append(ob.Asks, exchanges.Level{Price: price, Amount: qty})
	}
	return ob, nil
}

func (c *Client) GetCandles(ctx context.Context, symbol string, interval string, limit int) ([]exchanges.Candle, error) {
	var klines []*futures.Kline
	err := c.call(ctx, func() error {
		var innerErr error
		klines, innerErr = c.raw.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("futuresrest: get candles: %w", err)
	}

	out := make([]exchanges.Candle, 0, len(klines))
	for _, k := range klines {
		out = append(out, klineToCandle(symbol, k))
	}
	return out, nil
}

// klineToCandle converts a REST kline. The last element of a limited
// kline query can be the bar Binance is still accumulating, so
// closedness is derived from CloseTime rather than assumed: a kline
// is only closed once its interval has actually elapsed.
func klineToCandle(symbol string, k *futures.Kline) exchanges.Candle {
	open, _ := decimal.NewFromString(k.Open)
	high, _ := decimal.NewFromString(k.High)
	low, _ := decimal.NewFromString(k.Low)
	closePx, _ := decimal.NewFromString(k.Close)
	vol, _ := decimal.NewFromString(k.Volume)
	return exchanges.Candle{
		Symbol:    symbol,
		Timestamp: time.UnixMilli(k.OpenTime),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    vol,
		IsClosed:  k.CloseTime < time.Now().UnixMilli(),
	}
}

// SubscribeTicker/OrderBook/Trades are not exercised by the Market
// Data Cache (it subscribes candles only); these delegate to a no-op
// so Client still satisfies exchanges.Exchange.
func (c *Client) SubscribeTicker(ctx context.Context, symbol string, callback func(*exchanges.Ticker)) error {
	return nil
}

func (c *Client) SubscribeOrderBook(ctx context.Context, symbol string, callback func(*exchanges.OrderBook)) error {
	return nil
}

func (c *Client) SubscribeTrades(ctx context.Context, symbol string, callback func(*exchanges.Trade)) error {
	return nil
}

func (c *Client) SubscribeCandles(ctx context.Context, symbol string, interval string, callback func(*exchanges.Candle)) error {
	return subscribeCandles(ctx, symbol, interval, callback, c.log)
}

func (c *Client) PlaceOrder(ctx context.Context, order *exchanges.Order) (*exchanges.Order, error) {
	svc := c.raw.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(orderSideToBinance(order.Side)).
		Type(orderTypeToBinance(order.Type))

	if order.PositionSide != "" {
		svc = svc.PositionSide(futures.PositionSideType(order.PositionSide))
	}
	if order.ClosePosition {
		svc = svc.ClosePosition(true)
	} else {
		svc = svc.Quantity(order.Amount.String())
		if order.ReduceOnly {
			svc = svc.ReduceOnly(true)
		}
	}
	if order.ClientOrderID != "" {
		svc = svc.NewClientOrderID(order.ClientOrderID)
	}
	switch order.Type {
	case exchanges.OrderTypeLimit:
		svc = svc.Price(order.Price.String()).TimeInForce(futures.TimeInForceTypeGTC)
	case exchanges.OrderTypeStopMarket, exchanges.OrderTypeTakeProfitMarket:
		svc = svc.StopPrice(order.StopPrice.String()).WorkingType(futures.WorkingTypeMarkPrice)
	}

	var res *futures.CreateOrderResponse
	err := c.call(ctx, func() error {
		var innerErr error
		res, innerErr = svc.Do(ctx)
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("futuresrest: place order: %w", err)
	}
	placed := createResponseToOrder(order.Symbol, res)
	c.rememberSymbol(placed.ID, order.Symbol)
	return placed, nil
}

// rememberSymbol/symbolOf track orderID->symbol so GetOrder/CancelOrder
// can satisfy exchanges.Exchange's symbol-less signature even though
// this venue's API requires a symbol for both lookups. Populated at
// PlaceOrder time and held in memory only, so an ID placed by an
// earlier process, or not placed through this client, is unknown here.
func (c *Client) rememberSymbol(orderID, symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.orderSymbols == nil {
		c.orderSymbols = make(map[string]string)
	}
	c.orderSymbols[orderID] = symbol
}

func (c *Client) symbolOf(orderID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	symbol, ok := c.orderSymbols[orderID]
	return symbol, ok
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	symbol, ok := c.symbolOf(orderID)
	if !ok {
		return fmt.Errorf("futuresrest: cancel order %s: unknown symbol, was it placed through this client?", orderID)
	}
	return c.call(ctx, func() error {
		_, err := c.raw.NewCancelOrderService().Symbol(symbol).OrderID(parseOrderID(orderID)).Do(ctx)
		return err
	})
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*exchanges.Order, error) {
	symbol, ok := c.symbolOf(orderID)
	if !ok {
		return nil, fmt.Errorf("futuresrest: get order %s: unknown symbol, was it placed through this client?", orderID)
	}

	var o *futures.Order
	err := c.call(ctx, func() error {
		var innerErr error
		o, innerErr = c.raw.NewGetOrderService().Symbol(symbol).OrderID(parseOrderID(orderID)).Do(ctx)
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("futuresrest: get order: %w", err)
	}
	return binanceOrderToOrder(o), nil
}

func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]exchanges.Order, error) {
	var orders []*futures.Order
	err := c.call(ctx, func() error {
		var innerErr error
		orders, innerErr = c.raw.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("futuresrest: get open orders: %w", err)
	}
	out := make([]exchanges.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, *binanceOrderToOrder(o))
	}
	return out, nil
}

func (c *Client) GetOrderHistory(ctx context.Context, symbol string, limit int) ([]exchanges.Order, error) {
	var orders []*futures.Order
	err := c.call(ctx, func() error {
		var innerErr error
		orders, innerErr = c.raw.NewListOrdersService().Symbol(symbol).Limit(limit).Do(ctx)
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("futuresrest: get order history: %w", err)
	}
	out := make([]exchanges.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, *binanceOrderToOrder(o))
	}
	return out, nil
}

func (c *Client) GetBalance(ctx context.Context) ([]exchanges.Balance, error) {
	var account *futures.Account
	err := c.call(ctx, func() error {
		var innerErr error
		account, innerErr = c.raw.NewGetAccountService().Do(ctx)
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("futuresrest: get balance: %w", err)
	}

	out := make([]exchanges.Balance, 0, len(account.Assets))
	for _, a := range account.Assets {
		total, _ := decimal.NewFromString(a.WalletBalance)
		free, _ := decimal.NewFromString(a.AvailableBalance)
		out = append(out, exchanges.Balance{
			Asset:     a.Asset,
			Free:      free,
			Locked:    total.Sub(free),
			Total:     total,
			UpdatedAt: time.Now(),
		})
	}
	return out, nil
}

func (c *Client) GetPositions(ctx context.Context) ([]exchanges.Position, error) {
	var risks []*futures.PositionRisk
	err := c.call(ctx, func() error {
		var innerErr error
		risks, innerErr = c.raw.NewGetPositionRiskService().Do(ctx)
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("futuresrest: get positions: %w", err)
	}

	out := make([]exchanges.Position, 0, len(risks))
	for _, r := range risks {
		pos := positionRiskToPosition(r)
		if pos.Size.IsZero() {
			continue
		}
		out = append(out, pos)
	}
	return out, nil
}

func (c *Client) GetPosition(ctx context.Context, symbol string) (*exchanges.Position, error) {
	var risks []*futures.PositionRisk
	err := c.call(ctx, func() error {
		var innerErr error
		risks, innerErr = c.raw.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("futuresrest: get position: %w", err)
	}
	for _, r := range risks {
		pos := positionRiskToPosition(r)
		if !pos.Size.IsZero() {
			return &pos, nil
		}
	}
	return nil, exchanges.ErrPositionNotFound
}

func (c *Client) GetAccountTrades(ctx context.Context, symbol string, from, to time.Time) ([]exchanges.Trade, error) {
	var trades []*futures.AccountTrade
	err := c.call(ctx, func() error {
		var innerErr error
		trades, innerErr = c.raw.NewListAccountTradeService().
			Symbol(symbol).
			StartTime(from.UnixMilli()).
			EndTime(to.UnixMilli()).
			Do(ctx)
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("futuresrest: get account trades: %w", err)
	}

	out := make([]exchanges.Trade, 0, len(trades))
	for _, t := range trades {
		price, _ := decimal.NewFromString(t.Price)
		qty, _ := decimal.NewFromString(t.Quantity)
		fee, _ := decimal.NewFromString(t.Commission)
		side := exchanges.OrderSideBuy
		if !t.Buyer {
			side = exchanges.OrderSideSell
		}
		out = append(out, exchanges.Trade{
			ID:        fmt.Sprintf("%d", t.ID),
			OrderID:   fmt.Sprintf("%d", t.OrderID),
			Symbol:    symbol,
			Side:      side,
			Price:     price,
			Amount:    qty,
			Fee:       fee,
			Timestamp: time.UnixMilli(t.Time),
		})
	}
	return out, nil
}

func (c *Client) GetSymbolFilters(ctx context.Context, symbol string) (*exchanges.SymbolFilters, error) {
	var info *futures.ExchangeInfo
	err := c.call(ctx, func() error {
		var innerErr error
		info, innerErr = c.raw.NewExchangeInfoService().Do(ctx)
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("futuresrest: get symbol filters: %w", err)
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		filters := &exchanges.SymbolFilters{
			Symbol:            symbol,
			PricePrecision:    int32(s.PricePrecision),
			QuantityPrecision: int32(s.QuantityPrecision),
			QuoteAsset:        s.QuoteAsset,
			BaseAsset:         s.BaseAsset,
		}
		for _, f := range s.Filters {
			switch f["filterType"] {
			case "PRICE_FILTER":
				filters.PriceTick, _ = decimal.NewFromString(fmt.Sprintf("%v", f["tickSize"]))
			case "LOT_SIZE":
				filters.QtyStep, _ = decimal.NewFromString(fmt.Sprintf("%v", f["stepSize"]))
				filters.MinQty, _ = decimal.NewFromString(fmt.Sprintf("%v", f["minQty"]))
			case "MIN_NOTIONAL":
				filters.MinNotional, _ = decimal.NewFromString(fmt.Sprintf("%v", f["notional"]))
			}
		}
		return filters, nil
	}
	return nil, fmt.Errorf("futuresrest: symbol %s not found in exchange info", symbol)
}

func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return c.call(ctx, func() error {
		_, err := c.raw.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx)
		return err
	})
}

func (c *Client) GetPositionMode(ctx context.Context) (exchanges.PositionMode, error) {
	c.mu.RLock()
	mode := c.positionMode
	c.mu.RUnlock()
	if mode != "" {
		return mode, nil
	}

	var res *futures.GetPositionModeResponse
	err := c.call(ctx, func() error {
		var innerErr error
		res, innerErr = c.raw.NewGetPositionModeService().Do(ctx)
		return innerErr
	})
	if err != nil {
		return "", fmt.Errorf("futuresrest: get position mode: %w", err)
	}
	if res.DualSidePosition {
		return exchanges.PositionModeHedge, nil
	}
	return exchanges.PositionModeOneWay, nil
}

func (c *Client) GetMarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var res *futures.MarkPrice
	err := c.call(ctx, func() error {
		var innerErr error
		res, innerErr = c.raw.NewPremiumIndexService().Symbol(symbol).Do(ctx)
		return innerErr
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("futuresrest: get mark price: %w", err)
	}
	return decimal.NewFromString(res.MarkPrice)
}

func (c *Client) Name() string { return "futuresrest" }

func (c *Client) SupportedSymbols() []string { return nil }

func orderSideToBinance(side exchanges.OrderSide) futures.SideType {
	if side == exchanges.OrderSideSell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func orderTypeToBinance(t exchanges.OrderType) futures.OrderType {
	switch t {
	case exchanges.OrderTypeMarket:
		return futures.OrderTypeMarket
	case exchanges.OrderTypeStopLimit:
		return futures.OrderTypeStop
	case exchanges.OrderTypeStopMarket:
		return futures.OrderTypeStopMarket
	case exchanges.OrderTypeTakeProfitMarket:
		return futures.OrderTypeTakeProfitMarket
	default:
		return futures.OrderTypeLimit
	}
}

func binanceStatusToStatus(s futures.OrderStatusType) exchanges.OrderStatus {
	switch s {
	case futures.OrderStatusTypeFilled:
		return exchanges.OrderStatusFilled
	case futures.OrderStatusTypePartiallyFilled:
		return exchanges.OrderStatusPartially
	case futures.OrderStatusTypeCanceled:
		return exchanges.OrderStatusCanceled
	case futures.OrderStatusTypeExpired:
		return exchanges.OrderStatusExpired
	case futures.OrderStatusTypeRejected:
		return exchanges.OrderStatusRejected
	default:
		return exchanges.OrderStatusOpen
	}
}

func createResponseToOrder(symbol string, res *futures.CreateOrderResponse) *exchanges.Order {
	price, _ := decimal.NewFromString(res.Price)
	qty, _ := decimal.NewFromString(res.OrigQuantity)
	filled, _ := decimal.NewFromString(res.ExecutedQuantity)
	avg, _ := decimal.NewFromString(res.AvgPrice)
	return &exchanges.Order{
		ID:            fmt.Sprintf("%d", res.OrderID),
		ClientOrderID: res.ClientOrderID,
		Symbol:        symbol,
		Side:          exchanges.OrderSide(res.Side),
		Price:         price,
		Amount:        qty,
		Filled:        filled,
		AveragePrice:  avg,
		Status:        binanceStatusToStatus(res.Status),
		CreatedAt:     time.UnixMilli(res.UpdateTime),
		UpdatedAt:     time.UnixMilli(res.UpdateTime),
		PositionSide:  exchanges.PositionSide(res.PositionSide),
		ReduceOnly:    res.ReduceOnly,
		ClosePosition: res.ClosePosition,
	}
}

func binanceOrderToOrder(o *futures.Order) *exchanges.Order {
	price, _ := decimal.NewFromString(o.Price)
	qty, _ := decimal.NewFromString(o.OrigQuantity)
	filled, _ := decimal.NewFromString(o.ExecutedQuantity)
	avg, _ := decimal.NewFromString(o.AvgPrice)
	stop, _ := decimal.NewFromString(o.StopPrice)
	return &exchanges.Order{
		ID:            fmt.Sprintf("%d", o.OrderID),
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          exchanges.OrderSide(o.Side),
		Price:         price,
		Amount:        qty,
		Filled:        filled,
		Remaining:     qty.Sub(filled),
		AveragePrice:  avg,
		StopPrice:     stop,
		Status:        binanceStatusToStatus(o.Status),
		CreatedAt:     time.UnixMilli(o.Time),
		UpdatedAt:     time.UnixMilli(o.UpdateTime),
		PositionSide:  exchanges.PositionSide(o.PositionSide),
		ReduceOnly:    o.ReduceOnly,
		ClosePosition: o.ClosePosition,
	}
}

func positionRiskToPosition(r *futures.PositionRisk) exchanges.Position {
	size, _ := decimal.NewFromString(r.PositionAmt)
	entry, _ := decimal.NewFromString(r.EntryPrice)
	mark, _ := decimal.NewFromString(r.MarkPrice)
	lev, _ := decimal.NewFromString(r.Leverage)
	unrealized, _ := decimal.NewFromString(r.UnRealizedProfit)
	liq, _ := decimal.NewFromString(r.LiquidationPrice)

	side := exchanges.OrderSideBuy
	if size.IsNegative() {
		side = exchanges.OrderSideSell
		size = size.Abs()
	}

	return exchanges.Position{
		Symbol:           r.Symbol,
		Side:             side,
		Size:             size,
		EntryPrice:       entry,
		MarkPrice:        mark,
		Leverage:         lev,
		UnrealizedPnL:    unrealized,
		LiquidationPrice: liq,
	}
}

func parseOrderID(orderID string) int64 {
	var id int64
	fmt.Sscanf(orderID, "%d", &id)
	return id
}
