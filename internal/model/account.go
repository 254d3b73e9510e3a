package model

import (
	"time"

	"github.com/shopspring/decimal"

	"spotbot/internal/model/enum"
)

// Balance is the mirrored balance of one asset.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// Order is the mirrored state of one exchange order.
type Order struct {
	ID             int64
	Symbol         string
	Side           enum.Side
	Kind           string
	Quantity       decimal.Decimal
	Price          decimal.Decimal
	Status         enum.OrderStatus
	FilledQuantity decimal.Decimal
	CreatedAt      time.Time
}

// IsFilled reports whether the order is fully executed.
func (o Order) IsFilled() bool {
	if o.Status == enum.OrderStatusFilled {
		return true
	}
	return o.Quantity.IsPositive() && o.FilledQuantity.GreaterThanOrEqual(o.Quantity)
}

// AccountSnapshot is a point in time view of balances and open orders.
type AccountSnapshot struct {
	Balances []Balance
	Orders   []Order
}

// SymbolPrecision holds the exchange quantity and price increments.
type SymbolPrecision struct {
	Symbol       string
	QuantityStep decimal.Decimal
	PriceStep    decimal.Decimal
}
