package marketdata

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"

	"spotbot/internal/bus"
	"spotbot/internal/candle"
	"spotbot/internal/exchange"
	"spotbot/internal/model"
	"spotbot/internal/model/enum"
	"spotbot/internal/obs"
	"spotbot/pkg/exception"
)

// Config controls history bootstrap and the live subscription.
type Config struct {
	Interval             string
	Lookback             time.Duration
	BootstrapConcurrency int
	QueueCapacity        int
}

// Stream keeps the candle store current: it loads history for every symbol
// and then applies live kline updates in delivery order.
type Stream struct {
	cfg      Config
	store    *candle.Store
	history  exchange.HistorySource
	streamer exchange.CandleStreamer
	metrics  *obs.Metrics
	now      func() time.Time

	status atomic.Uint32
}

func NewStream(cfg Config, store *candle.Store, history exchange.HistorySource, streamer exchange.CandleStreamer, metrics *obs.Metrics) *Stream {
	if cfg.BootstrapConcurrency <= 0 {
		cfg.BootstrapConcurrency = 4
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 1024
	}
	return &Stream{
		cfg:      cfg,
		store:    store,
		history:  history,
		streamer: streamer,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Status reports the connection state of the live subscription.
func (s *Stream) Status() enum.StreamStatus {
	return enum.StreamStatus(s.status.Load())
}

func (s *Stream) setStatus(st enum.StreamStatus) {
	s.status.Store(uint32(st))
}

// Bootstrap fetches [now-lookback, now] for every symbol in parallel and
// loads it into the store. The first failure cancels the rest.
func (s *Stream) Bootstrap(ctx context.Context) error {
	end := s.now()
	start := end.Add(-s.cfg.Lookback)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.BootstrapConcurrency)
	for _, symbol := range s.store.Symbols() {
		eg.Go(func() error {
			candles, err := s.history.FetchHistoricalCandles(ctx, symbol, s.cfg.Interval, start, end)
			if err != nil {
				return errors.Wrapf(err, "fetch history of %s", symbol)
			}
			if err := s.store.Replace(symbol, candles); err != nil {
				return errors.Wrapf(err, "load history of %s", symbol)
			}
			logs.Infof("candle history loaded, symbol: %s, count: %d", symbol, s.store.Len(symbol))
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return errors.Wrap(exception.ErrBootstrapIncomplete, err.Error())
	}
	return nil
}

// Run bootstraps history, subscribes to live candles and applies them until
// ctx is done. It returns an error wrapping exception.ErrStreamDisconnected
// when the subscription gives up reconnecting.
func (s *Stream) Run(ctx context.Context) error {
	s.setStatus(enum.StreamStarting)
	if err := s.Bootstrap(ctx); err != nil {
		s.setStatus(enum.StreamDisconnected)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := bus.NewQueue[model.StreamEvent](s.cfg.QueueCapacity)
	streamErr := make(chan error, 1)
	go func() {
		defer queue.Close()
		streamErr <- s.streamer.StreamCandles(runCtx, s.store.Symbols(), s.cfg.Interval, queue)
	}()

	err := queue.Run(runCtx, s.apply)
	cancel()
	serr := <-streamErr

	if ctx.Err() != nil {
		s.setStatus(enum.StreamInactive)
		return nil
	}
	if err == nil {
		// the streamer returned without a fatal event
		err = errors.Wrap(exception.ErrStreamDisconnected, "candle stream: "+errMessage(serr))
	}
	s.setStatus(enum.StreamDisconnected)
	return err
}

func (s *Stream) apply(e model.StreamEvent) error {
	switch e.Kind {
	case model.StreamEventConnected:
		s.setStatus(enum.StreamConnected)
		s.metrics.IncStreamEvent("candles", "connected")
		logs.Info("candle stream connected")
	case model.StreamEventCandle:
		res, err := s.store.Upsert(e.Candle.Symbol, e.Candle.Candle)
		if err != nil {
			return errors.Wrap(err, "upsert candle").With("symbol", e.Candle.Symbol)
		}
		s.metrics.IncStreamEvent("candles", res.String())
	case model.StreamEventFatal:
		s.metrics.IncStreamEvent("candles", "fatal")
		logs.Errorf("candle stream lost, err: %+v", e.Err)
		return errors.Wrap(exception.ErrStreamDisconnected, "candle stream: "+errMessage(e.Err))
	}
	return nil
}

func errMessage(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
