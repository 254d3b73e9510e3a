package exception

import "errors"

var (
	ErrOrderInvalidRequest   = errors.New("order: invalid request")
	ErrOrderZeroQuantity     = errors.New("order: quantity truncated to zero")
	ErrOrderUnknown          = errors.New("order: unknown order")
	ErrPrecisionUnavailable  = errors.New("order: symbol precision unavailable")
	ErrInsufficientBalance   = errors.New("order: insufficient balance")
	ErrUnknownStrategy       = errors.New("signal: unknown strategy")
	ErrNotificationQueueFull = errors.New("notify: queue full")
)
