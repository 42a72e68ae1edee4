package exchanges

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide represents buy or sell
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType represents the type of order
type OrderType string

const (
	OrderTypeLimit           OrderType = "limit"
	OrderTypeMarket          OrderType = "market"
	OrderTypeStopLimit       OrderType = "stop_limit"
	OrderTypeStopMarket      OrderType = "stop_market"
	OrderTypeTakeProfitMarket OrderType = "take_profit_market"
)

// PositionSide distinguishes hedge-mode long/short legs. One-way mode
// orders omit it.
type PositionSide string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
	PositionSideBoth  PositionSide = "BOTH"
)

// PositionMode reports whether the account runs hedge or one-way mode.
type PositionMode string

const (
	PositionModeOneWay PositionMode = "one_way"
	PositionModeHedge  PositionMode = "hedge"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCanceled  OrderStatus = "canceled"
	OrderStatusPartially OrderStatus = "partially_filled"
	OrderStatusExpired   OrderStatus = "expired"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Common errors
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrPositionNotFound = errors.New("position not found")
	ErrNotConnected     = errors.New("exchange not connected")
	ErrInvalidOrder     = errors.New("invalid order")
)

// Ticker represents market ticker data
type Ticker struct {
	Symbol    string
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Last      decimal.Decimal
	Volume24h decimal.Decimal
	Timestamp time.Time
}

// OrderBook represents the order book
type OrderBook struct {
	Symbol    string
	Bids      []Level
	Asks      []Level
	Timestamp time.Time
}

// Level represents a price level in the order book
type Level struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// Order represents a trading order
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Price         decimal.Decimal
	Amount        decimal.Decimal
	Filled        decimal.Decimal
	Remaining     decimal.Decimal
	Status        OrderStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// Additional fields for advanced order types
	StopPrice    decimal.Decimal
	FilledAmount decimal.Decimal
	AveragePrice decimal.Decimal

	// Futures bracket-order fields. PositionSide is empty in one-way mode.
	PositionSide PositionSide
	ClosePosition bool
	ReduceOnly    bool
}

// SymbolFilters carries the exchange-reported precision and minimum-size
// rules for a symbol. Loaded lazily and cached for the life of the run.
type SymbolFilters struct {
	Symbol            string
	PriceTick         decimal.Decimal
	QtyStep           decimal.Decimal
	MinQty            decimal.Decimal
	MinNotional       decimal.Decimal
	PricePrecision    int32
	QuantityPrecision int32
	QuoteAsset        string
	BaseAsset         string
}

// Trade represents a completed trade
type Trade struct {
	ID        string
	OrderID   string
	Symbol    string
	Side      OrderSide
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Fee       decimal.Decimal
	Timestamp time.Time
}

// Position represents an open position
type Position struct {
	Symbol           string
	Side             OrderSide
	Size             decimal.Decimal
	EntryPrice       decimal.Decimal
	MarkPrice        decimal.Decimal
	Leverage         decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	RealizedPnL      decimal.Decimal
	LiquidationPrice decimal.Decimal
}

// Balance represents account balance
type Balance struct {
	Asset     string
	Free      decimal.Decimal
	Locked    decimal.Decimal
	Total     decimal.Decimal
	UpdatedAt time.Time
}

// Candle represents OHLCV data. IsClosed reports whether the bar's
// interval has finished: false marks the currently-forming bar, true
// a bar that will never change again.
type Candle struct {
	Symbol    string
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	IsClosed  bool
}

// Exchange defines the interface all exchanges must implement
type Exchange interface {
	// Connection management
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	// Market data
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)
	GetOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error)
	GetCandles(ctx context.Context, symbol string, interval string, limit int) ([]Candle, error)
	SubscribeTicker(ctx context.Context, symbol string, callback func(*Ticker)) error
	SubscribeOrderBook(ctx context.Context, symbol string, callback func(*OrderBook)) error
	SubscribeTrades(ctx context.Context, symbol string, callback func(*Trade)) error
	SubscribeCandles(ctx context.Context, symbol string, interval string, callback func(*Candle)) error

	// Trading
	PlaceOrder(ctx context.Context, order *Order) (*Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]Order, error)
	GetOrderHistory(ctx context.Context, symbol string, limit int) ([]Order, error)

	// Account
	GetBalance(ctx context.Context) ([]Balance, error)
	GetPositions(ctx context.Context) ([]Position, error)
	GetPosition(ctx context.Context, symbol string) (*Position, error)
	GetAccountTrades(ctx context.Context, symbol string, from, to time.Time) ([]Trade, error)

	// Futures-specific account and market state
	GetSymbolFilters(ctx context.Context, symbol string) (*SymbolFilters, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	GetPositionMode(ctx context.Context) (PositionMode, error)
	GetMarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// Metadata
	Name() string
	SupportedSymbols() []string
}
