package binance

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"spotbot/internal/exchange"
	"spotbot/internal/model"
	"spotbot/pkg/websocket"
)

// StreamCandles subscribes to the combined <symbol>@kline_<interval> streams.
func (c *Client) StreamCandles(ctx context.Context, symbols []string, interval string, pub exchange.Publisher) error {
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, strings.ToLower(s)+"@kline_"+interval)
	}
	target := strings.TrimRight(c.cfg.StreamURL, "/") + "/stream?streams=" + strings.Join(streams, "/")

	return c.runStream(ctx, "candle stream", func(context.Context) (string, error) {
		return target, nil
	}, c.decodeKline, pub)
}

// StreamAccount opens the user data stream. A fresh listen key is created
// for every connection and kept alive while the stream runs.
func (c *Client) StreamAccount(ctx context.Context, pub exchange.Publisher) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.keepAliveLoop(ctx)

	return c.runStream(ctx, "account stream", func(ctx context.Context) (string, error) {
		key, err := c.createListenKey(ctx)
		if err != nil {
			return "", errors.Wrap(err, "create listen key")
		}
		c.keyMu.Lock()
		c.listenKey = key
		c.keyMu.Unlock()
		return strings.TrimRight(c.cfg.StreamURL, "/") + "/ws/" + key, nil
	}, c.decodeAccount, pub)
}

func (c *Client) keepAliveLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.ListenKeyKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.keyMu.Lock()
			key := c.listenKey
			c.keyMu.Unlock()
			if key == "" {
				continue
			}
			if err := c.keepAliveListenKey(ctx, key); err != nil {
				logs.Errorf("keep alive listen key, err: %+v", err)
			}
		}
	}
}

type decodeFunc func(payload []byte) ([]model.StreamEvent, error)

// runStream runs a reconnecting session and forwards decoded events. When
// the reconnect budget is spent it publishes a fatal event and returns.
func (c *Client) runStream(ctx context.Context, name string, url func(context.Context) (string, error), decode decodeFunc, pub exchange.Publisher) error {
	manager, err := websocket.NewManager(websocket.Config{
		Name:         name,
		URL:          url,
		MaxRetries:   c.cfg.MaxReconnectRetries,
		Backoff:      c.cfg.Backoff,
		PingInterval: c.cfg.PingInterval,
		ReadTimeout:  c.cfg.ReadTimeout,
		OnConnect: func(ctx context.Context) error {
			return pub.Publish(ctx, model.StreamEvent{Kind: model.StreamEventConnected})
		},
		OnMessage: func(ctx context.Context, payload []byte) error {
			events, err := decode(payload)
			if err != nil {
				logs.Errorf("%s: drop message, err: %+v", name, err)
				return nil
			}
			for _, e := range events {
				if err := pub.Publish(ctx, e); err != nil {
					return err
				}
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	err = manager.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if perr := pub.Publish(ctx, model.StreamEvent{Kind: model.StreamEventFatal, Err: err}); perr != nil {
		logs.Errorf("%s: publish fatal event, err: %+v", name, perr)
	}
	return err
}

func (c *Client) decodeKline(payload []byte) ([]model.StreamEvent, error) {
	var msg combinedKline
	if err := sonic.ConfigFastest.Unmarshal(payload, &msg); err != nil {
		return nil, errors.Wrap(err, "unmarshal kline")
	}
	if err := c.validate.Struct(msg); err != nil {
		return nil, errors.Wrap(err, "validate kline").With("stream", msg.Stream)
	}
	candle, err := msg.Data.Kline.toCandle()
	if err != nil {
		return nil, err
	}
	return []model.StreamEvent{{
		Kind: model.StreamEventCandle,
		Candle: model.CandleEvent{
			Symbol: msg.Data.Symbol,
			Candle: candle,
			Closed: msg.Data.Kline.Closed,
		},
	}}, nil
}

func (c *Client) decodeAccount(payload []byte) ([]model.StreamEvent, error) {
	var header userEventHeader
	if err := sonic.ConfigFastest.Unmarshal(payload, &header); err != nil {
		return nil, errors.Wrap(err, "unmarshal user event")
	}

	switch header.EventType {
	case "outboundAccountPosition":
		var e accountPositionEvent
		if err := sonic.ConfigFastest.Unmarshal(payload, &e); err != nil {
			return nil, errors.Wrap(err, "unmarshal account position")
		}
		if err := c.validate.Struct(e); err != nil {
			return nil, errors.Wrap(err, "validate account position")
		}
		deltas := make([]model.BalanceDelta, 0, len(e.Balances))
		for _, b := range e.Balances {
			deltas = append(deltas, model.BalanceDelta{
				Asset:  b.Asset,
				Free:   parseDecimal(b.Free),
				Locked: parseDecimal(b.Locked),
			})
		}
		return []model.StreamEvent{{Kind: model.StreamEventBalance, Balances: deltas}}, nil

	case "executionReport":
		var e executionReportEvent
		if err := sonic.ConfigFastest.Unmarshal(payload, &e); err != nil {
			return nil, errors.Wrap(err, "unmarshal execution report")
		}
		if err := c.validate.Struct(e); err != nil {
			return nil, errors.Wrap(err, "validate execution report")
		}
		o, err := e.toOrder()
		if err != nil {
			return nil, err
		}
		return []model.StreamEvent{{Kind: model.StreamEventExecution, Execution: model.ExecutionReport{Order: o}}}, nil

	default:
		// balanceUpdate, listStatus and listenKeyExpired carry nothing the
		// mirror needs; an expired key surfaces as a dropped connection.
		return nil, nil
	}
}
