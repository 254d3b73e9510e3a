package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"spotbot/internal/model"
	"spotbot/internal/model/enum"
	"spotbot/pkg/exception"
)

func msTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (c *Client) sign(params url.Values) string {
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow.Milliseconds(), 10))
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	query := params.Encode()
	mac := hmac.New(sha256.New, []byte(c.cfg.Secret))
	mac.Write([]byte(query))
	return query + "&signature=" + hex.EncodeToString(mac.Sum(nil))
}

// do sends a request and decodes a 2xx JSON body into out. signed adds
// timestamp and signature, keyed adds only the API key header.
func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, signed, keyed bool, out any) error {
	begin := time.Now()
	defer c.metrics.ObserveGateway(op, begin)

	if params == nil {
		params = url.Values{}
	}
	query := params.Encode()
	if signed {
		query = c.sign(params)
	}
	target := strings.TrimRight(c.cfg.RestURL, "/") + path
	if query != "" {
		target += "?" + query
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	r, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	if signed || keyed {
		r.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	}

	resp, err := c.http.Do(r)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr apiError
		_ = sonic.ConfigFastest.Unmarshal(body, &apiErr)
		return errors.Wrapf(exception.ErrUnexpectedStatusCode, "%s %s: status %d, code %d, msg %s",
			method, path, resp.StatusCode, apiErr.Code, apiErr.Msg)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}
	return nil
}

// FetchHistoricalCandles pages through /api/v3/klines from start to end.
func (c *Client) FetchHistoricalCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]model.Candle, error) {
	var (
		out  []model.Candle
		from = start.UnixMilli()
		to   = end.UnixMilli()
	)
	for from <= to {
		params := url.Values{}
		params.Set("symbol", symbol)
		params.Set("interval", interval)
		params.Set("startTime", strconv.FormatInt(from, 10))
		params.Set("endTime", strconv.FormatInt(to, 10))
		params.Set("limit", strconv.Itoa(_klineLimit))

		var rows [][]any
		if err := c.do(ctx, "klines", http.MethodGet, "/api/v3/klines", params, false, false, &rows); err != nil {
			return nil, err
		}

		for _, row := range rows {
			candle, err := parseRestKline(row)
			if err != nil {
				return nil, errors.Wrap(err, "parse kline").With("symbol", symbol)
			}
			out = append(out, candle)
		}

		if len(rows) < _klineLimit || len(out) == 0 {
			break
		}
		from = out[len(out)-1].OpenTime + 1
	}
	return out, nil
}

// FetchSymbolPrecision reads the LOT_SIZE step and PRICE_FILTER tick.
func (c *Client) FetchSymbolPrecision(ctx context.Context, symbol string) (model.SymbolPrecision, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var info exchangeInfo
	if err := c.do(ctx, "exchange_info", http.MethodGet, "/api/v3/exchangeInfo", params, false, false, &info); err != nil {
		return model.SymbolPrecision{}, err
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		p := model.SymbolPrecision{Symbol: symbol}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				p.QuantityStep = parseDecimal(f.StepSize)
			case "PRICE_FILTER":
				p.PriceStep = parseDecimal(f.TickSize)
			}
		}
		if !p.QuantityStep.IsPositive() || !p.PriceStep.IsPositive() {
			return model.SymbolPrecision{}, errors.Wrapf(exception.ErrPrecisionUnavailable, "symbol %s", symbol)
		}
		return p, nil
	}
	return model.SymbolPrecision{}, errors.Wrapf(exception.ErrUnknownSymbol, "exchange info for %s", symbol)
}

// FetchAccountSnapshot reads balances and open orders.
func (c *Client) FetchAccountSnapshot(ctx context.Context) (model.AccountSnapshot, error) {
	var info accountInfo
	if err := c.do(ctx, "account", http.MethodGet, "/api/v3/account", nil, true, true, &info); err != nil {
		return model.AccountSnapshot{}, err
	}

	var open []orderPayload
	if err := c.do(ctx, "open_orders", http.MethodGet, "/api/v3/openOrders", nil, true, true, &open); err != nil {
		return model.AccountSnapshot{}, err
	}

	snap := model.AccountSnapshot{
		Balances: make([]model.Balance, 0, len(info.Balances)),
		Orders:   make([]model.Order, 0, len(open)),
	}
	for _, b := range info.Balances {
		snap.Balances = append(snap.Balances, model.Balance{
			Asset:  b.Asset,
			Free:   parseDecimal(b.Free),
			Locked: parseDecimal(b.Locked),
		})
	}
	for _, p := range open {
		o, err := p.toOrder()
		if err != nil {
			logs.Errorf("skip open order %d, err: %+v", p.OrderID, err)
			continue
		}
		snap.Orders = append(snap.Orders, o)
	}
	return snap, nil
}

// SubmitLimitOrder places a good-till-cancel limit order.
func (c *Client) SubmitLimitOrder(ctx context.Context, symbol string, side enum.Side, quantity, price decimal.Decimal) (model.Order, error) {
	if !side.IsAvailable() || !quantity.IsPositive() || !price.IsPositive() {
		return model.Order{}, exception.ErrOrderInvalidRequest
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side.String())
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "GTC")
	params.Set("quantity", quantity.String())
	params.Set("price", price.String())
	params.Set("newOrderRespType", "RESULT")

	var ack orderPayload
	if err := c.do(ctx, "submit_order", http.MethodPost, "/api/v3/order", params, true, true, &ack); err != nil {
		return model.Order{}, err
	}

	o, err := ack.toOrder()
	if err != nil {
		return model.Order{}, err
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = c.now()
	}
	return o, nil
}

// CancelOrder requests cancellation. The resulting status arrives on the
// account stream.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))
	return c.do(ctx, "cancel_order", http.MethodDelete, "/api/v3/order", params, true, true, nil)
}

func (c *Client) createListenKey(ctx context.Context) (string, error) {
	var out listenKeyPayload
	if err := c.do(ctx, "listen_key", http.MethodPost, "/api/v3/userDataStream", nil, false, true, &out); err != nil {
		return "", err
	}
	if out.ListenKey == "" {
		return "", errors.Wrap(exception.ErrInResponseError, "empty listen key")
	}
	return out.ListenKey, nil
}

func (c *Client) keepAliveListenKey(ctx context.Context, key string) error {
	params := url.Values{}
	params.Set("listenKey", key)
	return c.do(ctx, "listen_key_keepalive", http.MethodPut, "/api/v3/userDataStream", params, false, true, nil)
}
