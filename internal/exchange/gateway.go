package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"spotbot/internal/model"
	"spotbot/internal/model/enum"
)

// Publisher receives events from a push stream. bus.Queue implements it.
type Publisher interface {
	Publish(ctx context.Context, event model.StreamEvent) error
}

// HistorySource fetches closed candles in [start, end].
type HistorySource interface {
	FetchHistoricalCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]model.Candle, error)
}

// CandleStreamer pushes live kline updates into pub until ctx is done or
// the reconnect budget is spent, in which case a fatal event is published.
type CandleStreamer interface {
	StreamCandles(ctx context.Context, symbols []string, interval string, pub Publisher) error
}

// AccountSource provides the account snapshot and its push stream.
type AccountSource interface {
	FetchAccountSnapshot(ctx context.Context) (model.AccountSnapshot, error)
	StreamAccount(ctx context.Context, pub Publisher) error
}

// OrderGateway places and cancels orders.
type OrderGateway interface {
	FetchSymbolPrecision(ctx context.Context, symbol string) (model.SymbolPrecision, error)
	SubmitLimitOrder(ctx context.Context, symbol string, side enum.Side, quantity, price decimal.Decimal) (model.Order, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
}

// Gateway is everything the bot needs from an exchange.
type Gateway interface {
	HistorySource
	CandleStreamer
	AccountSource
	OrderGateway
}
