package trader

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"spotbot/internal/candle"
	"spotbot/internal/exchange"
	"spotbot/internal/model"
	"spotbot/internal/model/enum"
	"spotbot/internal/notify"
	"spotbot/internal/obs"
	"spotbot/internal/risk"
	"spotbot/internal/signal"
	"spotbot/pkg/exception"
)

// Phase is the state of the single position slot.
type Phase uint8

const (
	PhaseNoPosition Phase = iota
	PhaseBuyPending
	PhasePositionOpen
	PhaseSellPending
)

func (p Phase) String() string {
	switch p {
	case PhaseBuyPending:
		return "BUY_PENDING"
	case PhasePositionOpen:
		return "POSITION_OPEN"
	case PhaseSellPending:
		return "SELL_PENDING"
	default:
		return "NO_POSITION"
	}
}

// Position is the one trade cycle the controller may hold at a time.
type Position struct {
	Phase  Phase
	Symbol string

	BuyOrder   model.Order
	EntryPrice decimal.Decimal
	Investment decimal.Decimal
	Entry      signal.Candidate
	CreatedAt  time.Time
	Bought     decimal.Decimal

	SellOrder model.Order
	SellPrice decimal.Decimal

	cancelRequested bool
}

// Candles is the read side of the candle store.
type Candles interface {
	SnapshotAll() map[string]candle.Series
	Snapshot(symbol string) (candle.Series, error)
}

// Account is the order and balance mirror the controller polls.
type Account interface {
	Balance(asset string) (model.Balance, bool)
	Order(id int64) (model.Order, bool)
	TrackOrder(o model.Order)
	DeleteOrder(id int64)
}

// Readiness is implemented by components that gate trading.
type Readiness interface {
	Status() enum.StreamStatus
}

type Config struct {
	QuoteAsset    string
	Tick          time.Duration
	BuyTimeout    time.Duration
	MinProfit     decimal.Decimal
	Fees          Fees
	MaxInvestment decimal.Decimal
	Risk          risk.Config
}

// Controller drives the buy/sell cycle of a single position.
type Controller struct {
	cfg       Config
	candles   Candles
	account   Account
	gateway   exchange.OrderGateway
	precision *PrecisionCache
	risk      *risk.Engine
	evaluator signal.Evaluator
	notifier  notify.Notifier
	metrics   *obs.Metrics
	now       func() time.Time

	mu  sync.RWMutex
	pos Position
}

func NewController(cfg Config, candles Candles, account Account, gateway exchange.OrderGateway, evaluator signal.Evaluator, notifier notify.Notifier, metrics *obs.Metrics) *Controller {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Controller{
		cfg:       cfg,
		candles:   candles,
		account:   account,
		gateway:   gateway,
		precision: NewPrecisionCache(gateway),
		risk:      risk.NewEngine(cfg.Risk),
		evaluator: evaluator,
		notifier:  notifier,
		metrics:   metrics,
		now:       time.Now,
	}
}

// State returns a copy of the position slot.
func (c *Controller) State() Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pos
}

// WaitReady blocks until every component reports CONNECTED.
func (c *Controller) WaitReady(ctx context.Context, components ...Readiness) error {
	for {
		ready := true
		for _, r := range components {
			if r.Status() != enum.StreamConnected {
				ready = false
				break
			}
		}
		if ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.Tick):
		}
	}
}

// Run waits for the given components, then steps once per tick until ctx is
// canceled.
func (c *Controller) Run(ctx context.Context, components ...Readiness) error {
	if err := c.WaitReady(ctx, components...); err != nil {
		logs.Infof("trader stopped before ready, err: %+v", err)
		return nil
	}
	logs.Infof("trader started, tick: %s, buy timeout: %s", c.cfg.Tick, c.cfg.BuyTimeout)

	ticker := time.NewTicker(c.cfg.Tick)
	defer ticker.Stop()

	for {
		c.Step(ctx)

		select {
		case <-ctx.Done():
			logs.Info("trader stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Step advances the position by at most one transition.
func (c *Controller) Step(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.pos.Phase {
	case PhaseNoPosition:
		c.enter(ctx)
	case PhaseBuyPending:
		c.checkBuy(ctx)
	case PhasePositionOpen:
		c.placeSell(ctx)
	case PhaseSellPending:
		c.checkSell(ctx)
	}

	c.metrics.SetPositionPhase(int(c.pos.Phase))
}

func (c *Controller) enter(ctx context.Context) {
	cand, ok := c.evaluator.Evaluate(c.candles.SnapshotAll())
	if !ok {
		return
	}

	prec, err := c.precision.Get(ctx, cand.Symbol)
	if err != nil {
		c.metrics.IncOrderError("precision")
		logs.Errorf("get precision, symbol: %s, err: %+v", cand.Symbol, err)
		return
	}

	bal, ok := c.account.Balance(c.cfg.QuoteAsset)
	if !ok || !bal.Free.IsPositive() {
		logs.Warnf("skip entry, symbol: %s, err: %+v", cand.Symbol, exception.ErrInsufficientBalance)
		return
	}

	budget := bal.Free
	if c.cfg.MaxInvestment.IsPositive() && budget.GreaterThan(c.cfg.MaxInvestment) {
		budget = c.cfg.MaxInvestment
	}

	price := RoundToStep(decimal.NewFromFloat(cand.ReferencePrice), prec.PriceStep)
	if !price.IsPositive() {
		logs.Warnf("skip entry, symbol: %s, reference price %v rounds to zero", cand.Symbol, cand.ReferencePrice)
		return
	}

	qty := TruncateToStep(budget.Div(price), prec.QuantityStep)
	if !qty.IsPositive() {
		logs.Warnf("skip entry, symbol: %s, budget: %s, err: %+v", cand.Symbol, budget, exception.ErrOrderZeroQuantity)
		return
	}

	if !c.allowed(risk.Intent{Symbol: cand.Symbol, Side: enum.SideBuy, Quantity: qty, Price: price}) {
		return
	}

	order, err := c.gateway.SubmitLimitOrder(ctx, cand.Symbol, enum.SideBuy, qty, price)
	if err != nil {
		c.metrics.IncOrderError("submit_buy")
		logs.Errorf("submit buy, symbol: %s, qty: %s, price: %s, err: %+v", cand.Symbol, qty, price, err)
		return
	}
	c.metrics.IncOrderSubmitted(enum.SideBuy.String())

	now := c.now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	c.account.TrackOrder(order)

	c.pos = Position{
		Phase:      PhaseBuyPending,
		Symbol:     cand.Symbol,
		BuyOrder:   order,
		EntryPrice: price,
		Investment: qty.Mul(price),
		Entry:      cand,
		CreatedAt:  now,
	}
	logs.Infof("buy submitted, symbol: %s, id: %d, qty: %s, price: %s, score: %.3f", cand.Symbol, order.ID, qty, price, cand.Score)
}

func (c *Controller) checkBuy(ctx context.Context) {
	pos := &c.pos
	order, seen := c.account.Order(pos.BuyOrder.ID)
	if !seen {
		order = pos.BuyOrder
	}
	if !order.Status.IsAvailable() {
		order.Status = enum.OrderStatusNew
	}

	if order.IsFilled() {
		c.onBuyFilled(ctx, order)
		return
	}

	switch order.Status {
	case enum.OrderStatusPartiallyFilled:
		return
	case enum.OrderStatusCanceled, enum.OrderStatusRejected, enum.OrderStatusExpired:
		if order.FilledQuantity.IsPositive() {
			logs.Warnf("buy closed with partial fill left on the account, symbol: %s, id: %d, filled: %s", pos.Symbol, order.ID, order.FilledQuantity)
		}
		logs.Infof("buy %s, symbol: %s, id: %d", strings.ToLower(order.Status.String()), pos.Symbol, order.ID)
		c.account.DeleteOrder(order.ID)
		c.reset()
		return
	}

	c.maybeCancelBuy(ctx)
}

func (c *Controller) maybeCancelBuy(ctx context.Context) {
	pos := &c.pos
	if pos.cancelRequested {
		return
	}

	reason := ""
	if elapsed := c.now().Sub(pos.CreatedAt); elapsed >= c.cfg.BuyTimeout {
		reason = "timeout after " + elapsed.Truncate(time.Second).String()
	} else if c.weakened() {
		reason = "signal weakened"
	}
	if reason == "" {
		return
	}

	if err := c.gateway.CancelOrder(ctx, pos.Symbol, pos.BuyOrder.ID); err != nil {
		c.metrics.IncOrderError("cancel")
		logs.Errorf("cancel buy, symbol: %s, id: %d, err: %+v", pos.Symbol, pos.BuyOrder.ID, err)
		return
	}
	pos.cancelRequested = true
	c.metrics.IncCancelRequest()
	logs.Infof("buy cancel requested, symbol: %s, id: %d, reason: %s", pos.Symbol, pos.BuyOrder.ID, reason)
}

// weakened reports whether the entry signal lost strength while the
// market moved above the entry price.
func (c *Controller) weakened() bool {
	pos := &c.pos
	series, err := c.candles.Snapshot(pos.Symbol)
	if err != nil {
		logs.Warnf("reevaluate, symbol: %s, err: %+v", pos.Symbol, err)
		return false
	}
	cur, ok := c.evaluator.Reevaluate(pos.Symbol, series)
	if !ok {
		return false
	}
	return cur.Score < pos.Entry.Score && decimal.NewFromFloat(cur.ReferencePrice).GreaterThan(pos.EntryPrice)
}

func (c *Controller) onBuyFilled(ctx context.Context, order model.Order) {
	pos := &c.pos
	pos.Bought = order.FilledQuantity
	if !pos.Bought.IsPositive() {
		pos.Bought = pos.BuyOrder.Quantity
	}
	pos.Phase = PhasePositionOpen
	logs.Infof("buy filled, symbol: %s, id: %d, qty: %s, price: %s", pos.Symbol, order.ID, pos.Bought, pos.EntryPrice)

	c.notify(ctx, notify.Notification{
		Symbol:      pos.Symbol,
		Description: fmt.Sprintf("Bought %s %s at %s", pos.Bought, pos.Symbol, pos.EntryPrice),
		Category:    notify.CategoryBuyFilled,
	})
}

func (c *Controller) placeSell(ctx context.Context) {
	pos := &c.pos
	prec, err := c.precision.Get(ctx, pos.Symbol)
	if err != nil {
		c.metrics.IncOrderError("precision")
		logs.Errorf("get precision, symbol: %s, err: %+v", pos.Symbol, err)
		return
	}

	base := strings.TrimSuffix(pos.Symbol, c.cfg.QuoteAsset)
	bal, ok := c.account.Balance(base)
	if !ok {
		logs.Warnf("skip sell, symbol: %s, no %s balance yet", pos.Symbol, base)
		return
	}
	qty := decimal.Min(bal.Free, pos.Bought)
	qty = TruncateToStep(qty, prec.QuantityStep)
	if !qty.IsPositive() {
		logs.Warnf("skip sell, symbol: %s, free: %s, err: %+v", pos.Symbol, bal.Free, exception.ErrOrderZeroQuantity)
		return
	}

	price := RoundToStep(pos.EntryPrice.Mul(c.cfg.MinProfit), prec.PriceStep)
	if !c.allowed(risk.Intent{Symbol: pos.Symbol, Side: enum.SideSell, Quantity: qty, Price: price}) {
		return
	}

	order, err := c.gateway.SubmitLimitOrder(ctx, pos.Symbol, enum.SideSell, qty, price)
	if err != nil {
		c.metrics.IncOrderError("submit_sell")
		logs.Errorf("submit sell, symbol: %s, qty: %s, price: %s, err: %+v", pos.Symbol, qty, price, err)
		return
	}
	c.metrics.IncOrderSubmitted(enum.SideSell.String())

	if order.CreatedAt.IsZero() {
		order.CreatedAt = c.now()
	}
	c.account.TrackOrder(order)

	pos.SellOrder = order
	pos.SellPrice = price
	pos.Phase = PhaseSellPending
	logs.Infof("sell submitted, symbol: %s, id: %d, qty: %s, price: %s", pos.Symbol, order.ID, qty, price)
}

func (c *Controller) checkSell(ctx context.Context) {
	pos := &c.pos
	order, seen := c.account.Order(pos.SellOrder.ID)
	if !seen {
		return
	}

	if order.IsFilled() {
		c.onSellFilled(ctx)
		return
	}

	switch order.Status {
	case enum.OrderStatusRejected, enum.OrderStatusExpired:
		logs.Warnf("sell %s, symbol: %s, id: %d, resubmitting", strings.ToLower(order.Status.String()), pos.Symbol, order.ID)
		c.account.DeleteOrder(order.ID)
		pos.SellOrder = model.Order{}
		pos.SellPrice = decimal.Zero
		pos.Phase = PhasePositionOpen
	case enum.OrderStatusCanceled:
		c.abandon(ctx, order)
	}
}

func (c *Controller) onSellFilled(ctx context.Context) {
	pos := &c.pos
	gross := GrossProfit(pos.Investment, pos.EntryPrice, pos.SellPrice)
	net := NetProfit(pos.Investment, pos.EntryPrice, pos.SellPrice, c.cfg.Fees)
	netf, _ := net.Float64()
	c.metrics.ObserveCycle(netf)

	logs.Infof("sell filled, symbol: %s, id: %d, price: %s, gross: %s, net: %s", pos.Symbol, pos.SellOrder.ID, pos.SellPrice, gross, net)
	c.notify(ctx, notify.Notification{
		Symbol: pos.Symbol,
		Description: fmt.Sprintf("Sold %s at %s, bought at %s. Profit %s %s (gross %s)",
			pos.Symbol, pos.SellPrice, pos.EntryPrice, net.StringFixed(4), c.cfg.QuoteAsset, gross.StringFixed(4)),
		Category: notify.CategorySellFilled,
	})

	c.account.DeleteOrder(pos.BuyOrder.ID)
	c.account.DeleteOrder(pos.SellOrder.ID)
	c.reset()
}

// abandon gives the position back to the operator after a sell was canceled
// outside the bot.
func (c *Controller) abandon(ctx context.Context, order model.Order) {
	pos := &c.pos
	c.metrics.IncCycleAbandoned()
	logs.Warnf("sell canceled externally, symbol: %s, id: %d, position left open", pos.Symbol, order.ID)
	c.notify(ctx, notify.Notification{
		Symbol:      pos.Symbol,
		Description: fmt.Sprintf("Sell order %d of %s was canceled manually. %s %s is no longer managed.", order.ID, pos.Symbol, pos.Bought, pos.Symbol),
		Category:    notify.CategoryOperational,
	})

	c.account.DeleteOrder(pos.BuyOrder.ID)
	c.account.DeleteOrder(order.ID)
	c.reset()
}

func (c *Controller) allowed(intent risk.Intent) bool {
	d := c.risk.Evaluate(intent, c.now())
	if d.Allowed {
		return true
	}
	c.metrics.IncOrderError("risk")
	logs.Warnf("%s blocked, symbol: %s, qty: %s, price: %s, reason: %s", strings.ToLower(intent.Side.String()), intent.Symbol, intent.Quantity, intent.Price, d.Reason)
	return false
}

func (c *Controller) notify(ctx context.Context, n notify.Notification) {
	if err := c.notifier.Notify(ctx, n); err != nil {
		c.metrics.IncNotificationError()
		logs.Errorf("notify %s, symbol: %s, err: %+v", n.Category, n.Symbol, errors.Wrap(err, "deliver notification"))
	}
}

func (c *Controller) reset() {
	c.pos = Position{}
}
