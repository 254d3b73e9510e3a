package notify

import (
	"context"

	"github.com/yanun0323/logs"
)

// Category selects how a notification is presented.
type Category uint8

const (
	CategoryOperational Category = iota
	CategoryBuyFilled
	CategorySellFilled
)

func (c Category) String() string {
	switch c {
	case CategoryBuyFilled:
		return "buy_filled"
	case CategorySellFilled:
		return "sell_filled"
	default:
		return "operational"
	}
}

// Notification is a human readable trade event.
type Notification struct {
	Symbol      string
	Description string
	Category    Category
}

// Notifier delivers notifications. Implementations must not block the
// caller on delivery.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log only.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	logs.Infof("notification, category: %s, symbol: %s, %s", n.Category, n.Symbol, n.Description)
	return nil
}
