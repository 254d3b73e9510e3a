package enum

// OrderStatus is the exchange-reported order state.
type OrderStatus uint8

const (
	_order_status_beg OrderStatus = iota
	OrderStatusNew
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCanceled
	OrderStatusRejected
	OrderStatusExpired
	_order_status_end
)

var _orderStatusNames = [...]string{
	OrderStatusNew:             "NEW",
	OrderStatusPartiallyFilled: "PARTIALLY_FILLED",
	OrderStatusFilled:          "FILLED",
	OrderStatusCanceled:        "CANCELED",
	OrderStatusRejected:        "REJECTED",
	OrderStatusExpired:         "EXPIRED",
}

func (s OrderStatus) IsAvailable() bool {
	return s > _order_status_beg && s < _order_status_end
}

func (s OrderStatus) String() string {
	if !s.IsAvailable() {
		return "UNKNOWN"
	}
	return _orderStatusNames[s]
}

// IsTerminal reports whether the order can no longer change.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// ParseOrderStatus maps the exchange wire value to an OrderStatus.
// PENDING_CANCEL is reported as NEW since the order is still live.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch s {
	case "NEW", "PENDING_NEW", "PENDING_CANCEL":
		return OrderStatusNew, true
	case "PARTIALLY_FILLED":
		return OrderStatusPartiallyFilled, true
	case "FILLED":
		return OrderStatusFilled, true
	case "CANCELED":
		return OrderStatusCanceled, true
	case "REJECTED":
		return OrderStatusRejected, true
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return OrderStatusExpired, true
	default:
		return _order_status_beg, false
	}
}
