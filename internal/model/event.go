package model

import "github.com/shopspring/decimal"

// CandleEvent is a live kline update for one symbol.
type CandleEvent struct {
	Symbol string
	Candle Candle
	Closed bool
}

// BalanceDelta replaces free and locked amounts of one asset.
type BalanceDelta struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// ExecutionReport is an order update pushed by the exchange.
type ExecutionReport struct {
	Order Order
}

// StreamEventKind tells which field of StreamEvent is set.
type StreamEventKind uint8

const (
	StreamEventUnknown StreamEventKind = iota
	StreamEventConnected
	StreamEventCandle
	StreamEventBalance
	StreamEventExecution
	StreamEventFatal
)

// StreamEvent is the unit delivered from a push stream to its consumer.
type StreamEvent struct {
	Kind      StreamEventKind
	Candle    CandleEvent
	Balances  []BalanceDelta
	Execution ExecutionReport
	Err       error
}
