package account

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"spotbot/internal/bus"
	"spotbot/internal/exchange"
	"spotbot/internal/model"
	"spotbot/internal/model/enum"
	"spotbot/internal/obs"
	"spotbot/pkg/exception"
)

// Tracker mirrors balances of the traded assets and the bot's orders. The
// push stream is the only writer after bootstrap, apart from TrackOrder and
// the delete calls made by the order controller.
type Tracker struct {
	source        exchange.AccountSource
	metrics       *obs.Metrics
	assets        map[string]struct{}
	queueCapacity int

	balanceMu sync.RWMutex
	balances  map[string]model.Balance

	orderMu sync.RWMutex
	orders  map[int64]model.Order

	status atomic.Uint32
}

// NewTracker tracks the given base assets plus the quote asset.
func NewTracker(source exchange.AccountSource, baseAssets []string, quoteAsset string, queueCapacity int, metrics *obs.Metrics) *Tracker {
	assets := make(map[string]struct{}, len(baseAssets)+1)
	for _, a := range baseAssets {
		assets[a] = struct{}{}
	}
	assets[quoteAsset] = struct{}{}
	if queueCapacity <= 0 {
		queueCapacity = 256
	}

	return &Tracker{
		source:        source,
		metrics:       metrics,
		assets:        assets,
		queueCapacity: queueCapacity,
		balances:      make(map[string]model.Balance, len(assets)),
		orders:        make(map[int64]model.Order),
	}
}

func (t *Tracker) Status() enum.StreamStatus {
	return enum.StreamStatus(t.status.Load())
}

func (t *Tracker) setStatus(st enum.StreamStatus) {
	t.status.Store(uint32(st))
}

// Bootstrap replaces the mirror with a fresh account snapshot.
func (t *Tracker) Bootstrap(ctx context.Context) error {
	snap, err := t.source.FetchAccountSnapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch account snapshot")
	}
	t.ApplySnapshot(snap)
	return nil
}

// ApplySnapshot replaces balances wholesale and records the open orders.
func (t *Tracker) ApplySnapshot(snap model.AccountSnapshot) {
	balances := make(map[string]model.Balance, len(t.assets))
	for _, b := range snap.Balances {
		if _, ok := t.assets[b.Asset]; ok {
			balances[b.Asset] = b
		}
	}

	t.balanceMu.Lock()
	t.balances = balances
	t.balanceMu.Unlock()

	t.orderMu.Lock()
	for _, o := range snap.Orders {
		t.orders[o.ID] = o
	}
	t.orderMu.Unlock()

	logs.Infof("account snapshot applied, balances: %d, open orders: %d", len(balances), len(snap.Orders))
}

// Run bootstraps the mirror and applies account push events until ctx is
// done. It returns an error wrapping exception.ErrStreamDisconnected when
// the subscription gives up reconnecting.
func (t *Tracker) Run(ctx context.Context) error {
	t.setStatus(enum.StreamStarting)
	if err := t.Bootstrap(ctx); err != nil {
		t.setStatus(enum.StreamDisconnected)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := bus.NewQueue[model.StreamEvent](t.queueCapacity)
	streamErr := make(chan error, 1)
	go func() {
		defer queue.Close()
		streamErr <- t.source.StreamAccount(runCtx, queue)
	}()

	err := queue.Run(runCtx, t.apply)
	cancel()
	serr := <-streamErr

	if ctx.Err() != nil {
		t.setStatus(enum.StreamInactive)
		return nil
	}
	if err == nil {
		err = errors.Wrap(exception.ErrStreamDisconnected, "account stream closed")
		if serr != nil {
			err = errors.Wrap(exception.ErrStreamDisconnected, "account stream: "+serr.Error())
		}
	}
	t.setStatus(enum.StreamDisconnected)
	return err
}

func (t *Tracker) apply(e model.StreamEvent) error {
	switch e.Kind {
	case model.StreamEventConnected:
		t.setStatus(enum.StreamConnected)
		t.metrics.IncStreamEvent("account", "connected")
		logs.Info("account stream connected")
	case model.StreamEventBalance:
		t.ApplyBalances(e.Balances)
		t.metrics.IncStreamEvent("account", "balance")
	case model.StreamEventExecution:
		t.ApplyExecution(e.Execution)
		t.metrics.IncStreamEvent("account", "execution")
	case model.StreamEventFatal:
		t.metrics.IncStreamEvent("account", "fatal")
		logs.Errorf("account stream lost, err: %+v", e.Err)
		msg := "unknown"
		if e.Err != nil {
			msg = e.Err.Error()
		}
		return errors.Wrap(exception.ErrStreamDisconnected, "account stream: "+msg)
	}
	return nil
}

// ApplyBalances replaces free and locked amounts of tracked assets.
func (t *Tracker) ApplyBalances(deltas []model.BalanceDelta) {
	t.balanceMu.Lock()
	defer t.balanceMu.Unlock()
	for _, d := range deltas {
		if _, ok := t.assets[d.Asset]; !ok {
			continue
		}
		t.balances[d.Asset] = model.Balance{Asset: d.Asset, Free: d.Free, Locked: d.Locked}
	}
}

// ApplyExecution updates a known order or inserts an unseen one.
func (t *Tracker) ApplyExecution(r model.ExecutionReport) {
	t.orderMu.Lock()
	defer t.orderMu.Unlock()

	o, ok := t.orders[r.Order.ID]
	if !ok {
		t.orders[r.Order.ID] = r.Order
		return
	}
	o.Status = r.Order.Status
	o.FilledQuantity = r.Order.FilledQuantity
	t.orders[o.ID] = o
}

// TrackOrder records a freshly submitted order unless the stream already
// reported it.
func (t *Tracker) TrackOrder(o model.Order) {
	t.orderMu.Lock()
	defer t.orderMu.Unlock()
	if _, ok := t.orders[o.ID]; ok {
		return
	}
	t.orders[o.ID] = o
}

func (t *Tracker) Balance(asset string) (model.Balance, bool) {
	t.balanceMu.RLock()
	defer t.balanceMu.RUnlock()
	b, ok := t.balances[asset]
	return b, ok
}

func (t *Tracker) Order(id int64) (model.Order, bool) {
	t.orderMu.RLock()
	defer t.orderMu.RUnlock()
	o, ok := t.orders[id]
	return o, ok
}

func (t *Tracker) DeleteOrder(id int64) {
	t.orderMu.Lock()
	delete(t.orders, id)
	t.orderMu.Unlock()
}

func (t *Tracker) ClearOrders() {
	t.orderMu.Lock()
	t.orders = make(map[int64]model.Order)
	t.orderMu.Unlock()
}

// OrderCount returns the number of mirrored orders.
func (t *Tracker) OrderCount() int {
	t.orderMu.RLock()
	defer t.orderMu.RUnlock()
	return len(t.orders)
}
