package enum

import "testing"

func TestParseOrderStatus(t *testing.T) {
	cases := map[string]OrderStatus{
		"NEW":              OrderStatusNew,
		"PENDING_CANCEL":   OrderStatusNew,
		"PARTIALLY_FILLED": OrderStatusPartiallyFilled,
		"FILLED":           OrderStatusFilled,
		"CANCELED":         OrderStatusCanceled,
		"REJECTED":         OrderStatusRejected,
		"EXPIRED":          OrderStatusExpired,
		"EXPIRED_IN_MATCH": OrderStatusExpired,
	}
	for raw, want := range cases {
		got, ok := ParseOrderStatus(raw)
		if !ok || got != want {
			t.Fatalf("parse %s: got %v want %v", raw, got, want)
		}
		if got.String() == "UNKNOWN" {
			t.Fatalf("parse %s: unnamed status", raw)
		}
	}

	if _, ok := ParseOrderStatus("WHATEVER"); ok {
		t.Fatalf("expected unknown status to fail")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if OrderStatusNew.IsTerminal() || OrderStatusPartiallyFilled.IsTerminal() {
		t.Fatalf("live statuses must not be terminal")
	}
	for _, s := range []OrderStatus{OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired} {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}
