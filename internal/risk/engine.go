package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"spotbot/internal/model/enum"
)

// Config defines simple pre-trade limits. Zero values disable a check.
type Config struct {
	// KillSwitch stops new entries. Exits are still allowed so an open
	// position can be closed.
	KillSwitch       bool
	MaxOrderNotional decimal.Decimal
	OrderRateLimit   int
	OrderRateWindow  time.Duration
}

type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonKillSwitch
	ReasonRateLimit
	ReasonMaxNotional
	ReasonInvalidOrder
)

func (r Reason) String() string {
	switch r {
	case ReasonKillSwitch:
		return "kill switch"
	case ReasonRateLimit:
		return "order rate limit"
	case ReasonMaxNotional:
		return "max order notional"
	case ReasonInvalidOrder:
		return "invalid order"
	default:
		return "none"
	}
}

// Intent is an order the controller is about to submit.
type Intent struct {
	Symbol   string
	Side     enum.Side
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// Notional is the quote value of the intent.
func (i Intent) Notional() decimal.Decimal {
	return i.Quantity.Mul(i.Price)
}

type Decision struct {
	Allowed bool
	Reason  Reason
}

// Engine evaluates risk decisions. It is not safe for concurrent use.
type Engine struct {
	cfg             Config
	rateWindowStart time.Time
	rateCount       int
}

// NewEngine creates a risk engine with static limits.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate checks an intent at now. An allowed intent counts against the
// rate limit.
func (e *Engine) Evaluate(intent Intent, now time.Time) Decision {
	if !intent.Side.IsAvailable() || !intent.Quantity.IsPositive() || !intent.Price.IsPositive() {
		return deny(ReasonInvalidOrder)
	}

	if e.cfg.KillSwitch && intent.Side == enum.SideBuy {
		return deny(ReasonKillSwitch)
	}

	if intent.Side == enum.SideBuy && e.cfg.MaxOrderNotional.IsPositive() && intent.Notional().GreaterThan(e.cfg.MaxOrderNotional) {
		return deny(ReasonMaxNotional)
	}

	if e.cfg.OrderRateLimit > 0 && e.cfg.OrderRateWindow > 0 {
		if e.rateWindowStart.IsZero() || now.Sub(e.rateWindowStart) >= e.cfg.OrderRateWindow {
			e.rateWindowStart = now
			e.rateCount = 0
		}
		if e.rateCount >= e.cfg.OrderRateLimit {
			return deny(ReasonRateLimit)
		}
		e.rateCount++
	}

	return Decision{Allowed: true, Reason: ReasonNone}
}

func deny(reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason}
}
