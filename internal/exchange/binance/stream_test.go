package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotbot/internal/model"
	"spotbot/internal/model/enum"
	"spotbot/pkg/exception"
	"spotbot/pkg/websocket"
)

type recorder struct {
	mu     sync.Mutex
	events []model.StreamEvent
	want   int
	done   context.CancelFunc
}

func (r *recorder) Publish(_ context.Context, e model.StreamEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.done != nil && len(r.events) == r.want {
		r.done()
	}
	return nil
}

func (r *recorder) snapshot() []model.StreamEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.StreamEvent(nil), r.events...)
}

const klineMessage = `{"stream":"xyzusdt@kline_1m","data":{"e":"kline","E":1700000001000,"s":"XYZUSDT","k":{
	"t":1700000000000,"T":1700000059999,"s":"XYZUSDT","i":"1m","f":100,"L":200,
	"o":"100.0","c":"100.5","h":"101.0","l":"99.5","v":"12.5","n":100,"x":false,"q":"1250","V":"6","Q":"600","B":"0"}}}`

func TestStreamCandlesDecodesKlines(t *testing.T) {
	upgrader := ws.Upgrader{}
	paths := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path + "?" + r.URL.RawQuery
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(ws.TextMessage, []byte(`{"stream":"xyzusdt@kline_1m","data":{"e":"trade"}}`))
		_ = conn.WriteMessage(ws.TextMessage, []byte(klineMessage))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	c := New(Config{StreamURL: "ws" + strings.TrimPrefix(srv.URL, "http")}, nil, nil)
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	rec := &recorder{want: 2, done: cancel}

	err := c.StreamCandles(ctx, []string{"XYZUSDT", "ABCUSDT"}, "1m", rec)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "/stream?streams=xyzusdt@kline_1m/abcusdt@kline_1m", <-paths)

	events := rec.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, model.StreamEventConnected, events[0].Kind)
	require.Equal(t, model.StreamEventCandle, events[1].Kind)
	assert.Equal(t, "XYZUSDT", events[1].Candle.Symbol)
	assert.Equal(t, model.Candle{OpenTime: 1700000000000, Open: 100, High: 101, Low: 99.5, Close: 100.5, Volume: 12.5}, events[1].Candle.Candle)
	assert.False(t, events[1].Candle.Closed)
}

func TestStreamCandlesPublishesFatalAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{
		StreamURL:           "ws" + strings.TrimPrefix(srv.URL, "http"),
		MaxReconnectRetries: 2,
		Backoff:             websocket.Backoff{Min: time.Millisecond, Max: time.Millisecond, Factor: 2},
	}, nil, nil)
	rec := &recorder{}

	err := c.StreamCandles(t.Context(), []string{"XYZUSDT"}, "1m", rec)
	require.ErrorIs(t, err, exception.ErrMaxReconnectRetries)

	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, model.StreamEventFatal, events[0].Kind)
	assert.ErrorIs(t, events[0].Err, exception.ErrMaxReconnectRetries)
	assert.Contains(t, events[0].Err.Error(), "max reconnect retries reached")
}

func TestStreamAccountDecodesUserEvents(t *testing.T) {
	upgrader := ws.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/userDataStream", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"listenKey":"lk1"}`))
	})
	mux.HandleFunc("/ws/lk1", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(ws.TextMessage, []byte(`{"e":"outboundAccountPosition","E":1564034571105,"u":1564034571073,"B":[{"a":"XYZ","f":"9.99","l":"0.000"}]}`))
		_ = conn.WriteMessage(ws.TextMessage, []byte(`{"e":"balanceUpdate","E":1573200697110,"a":"BTC","d":"100.00","T":1573200697068}`))
		_ = conn.WriteMessage(ws.TextMessage, []byte(`{"e":"executionReport","E":1499405658658,"s":"XYZUSDT","c":"mUvoqJxFIILMdfAW5iGSOW","S":"BUY","o":"LIMIT","f":"GTC",
			"q":"9.99000000","p":"100.00000000","P":"0.00000000","F":"0.00000000","g":-1,"C":"","x":"TRADE","X":"PARTIALLY_FILLED","r":"NONE",
			"i":4293153,"l":"5.00000000","z":"5.00000000","L":"100.00000000","n":"0","N":null,"T":1499405658657,"t":1,"I":8641984,
			"w":false,"m":false,"M":true,"O":1499405658650,"Z":"500","Y":"500","Q":"0.00000000","W":1499405658657,"V":"NONE"}`))
		_, _, _ = conn.ReadMessage()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(Config{
		RestURL:   srv.URL,
		StreamURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
		APIKey:    "key",
	}, srv.Client(), nil)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	rec := &recorder{want: 3, done: cancel}

	err := c.StreamAccount(ctx, rec)
	require.ErrorIs(t, err, context.Canceled)

	events := rec.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, model.StreamEventConnected, events[0].Kind)

	require.Equal(t, model.StreamEventBalance, events[1].Kind)
	require.Len(t, events[1].Balances, 1)
	assert.Equal(t, "XYZ", events[1].Balances[0].Asset)
	assert.True(t, events[1].Balances[0].Free.Equal(decimal.RequireFromString("9.99")))

	require.Equal(t, model.StreamEventExecution, events[2].Kind)
	o := events[2].Execution.Order
	assert.Equal(t, int64(4293153), o.ID)
	assert.Equal(t, enum.SideBuy, o.Side)
	assert.Equal(t, enum.OrderStatusPartiallyFilled, o.Status)
	assert.True(t, o.FilledQuantity.Equal(decimal.RequireFromString("5")))
	assert.Equal(t, time.UnixMilli(1499405658650), o.CreatedAt)
}
