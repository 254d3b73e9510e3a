package exception

import "errors"

var (
	ErrUnknownSymbol       = errors.New("market data: unknown symbol")
	ErrInvalidCandle       = errors.New("market data: invalid candle")
	ErrBootstrapIncomplete = errors.New("market data: bootstrap incomplete")
)
