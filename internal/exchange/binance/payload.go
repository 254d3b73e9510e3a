package binance

import (
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"spotbot/internal/model"
	"spotbot/internal/model/enum"
	"spotbot/pkg/exception"
)

// Binance event payloads reuse single letters in both cases ("e" and "E",
// "l" and "L", ...). The json decoder matches keys case-insensitively when
// no exact field exists, so every colliding key is declared.

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type exchangeInfo struct {
	Symbols []symbolInfo `json:"symbols"`
}

type symbolInfo struct {
	Symbol     string         `json:"symbol"`
	BaseAsset  string         `json:"baseAsset"`
	QuoteAsset string         `json:"quoteAsset"`
	Filters    []symbolFilter `json:"filters"`
}

type symbolFilter struct {
	FilterType string `json:"filterType"`
	StepSize   string `json:"stepSize"`
	TickSize   string `json:"tickSize"`
}

type accountInfo struct {
	Balances []balancePayload `json:"balances"`
}

type balancePayload struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type orderPayload struct {
	Symbol       string `json:"symbol"`
	OrderID      int64  `json:"orderId"`
	Price        string `json:"price"`
	OrigQty      string `json:"origQty"`
	ExecutedQty  string `json:"executedQty"`
	Status       string `json:"status"`
	Type         string `json:"type"`
	Side         string `json:"side"`
	Time         int64  `json:"time"`
	TransactTime int64  `json:"transactTime"`
}

type listenKeyPayload struct {
	ListenKey string `json:"listenKey"`
}

type combinedKline struct {
	Stream string     `json:"stream" validate:"required"`
	Data   klineEvent `json:"data"`
}

type klineEvent struct {
	EventType string       `json:"e" validate:"eq=kline"`
	EventTime int64        `json:"E"`
	Symbol    string       `json:"s" validate:"required"`
	Kline     klinePayload `json:"k"`
}

type klinePayload struct {
	OpenTime    int64  `json:"t" validate:"gt=0"`
	CloseTime   int64  `json:"T"`
	Interval    string `json:"i"`
	Open        string `json:"o" validate:"required"`
	Close       string `json:"c" validate:"required"`
	High        string `json:"h" validate:"required"`
	Low         string `json:"l" validate:"required"`
	LastTradeID int64  `json:"L"`
	Volume      string `json:"v"`
	TakerVolume string `json:"V"`
	QuoteVolume string `json:"q"`
	TakerQuote  string `json:"Q"`
	Closed      bool   `json:"x"`
}

type userEventHeader struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
}

type accountPositionEvent struct {
	EventType  string                  `json:"e"`
	EventTime  int64                   `json:"E"`
	LastUpdate int64                   `json:"u"`
	Balances   []accountPositionAssets `json:"B" validate:"dive"`
}

type accountPositionAssets struct {
	Asset  string `json:"a" validate:"required"`
	Free   string `json:"f"`
	Locked string `json:"l"`
}

type executionReportEvent struct {
	EventType       string `json:"e"`
	EventTime       int64  `json:"E"`
	Symbol          string `json:"s" validate:"required"`
	Side            string `json:"S" validate:"required"`
	ClientOrderID   string `json:"c"`
	OrigClientID    string `json:"C"`
	OrderType       string `json:"o"`
	CreatedAt       int64  `json:"O"`
	TimeInForce     string `json:"f"`
	IcebergQty      string `json:"F"`
	Quantity        string `json:"q"`
	QuoteQuantity   string `json:"Q"`
	Price           string `json:"p"`
	StopPrice       string `json:"P"`
	ExecutionType   string `json:"x"`
	Status          string `json:"X" validate:"required"`
	OrderID         int64  `json:"i" validate:"gt=0"`
	Ignore          int64  `json:"I"`
	LastQty         string `json:"l"`
	LastPrice       string `json:"L"`
	CumulativeQty   string `json:"z"`
	CumulativeQuote string `json:"Z"`
	Commission      string `json:"n"`
	CommissionAsset string `json:"N"`
	TransactionTime int64  `json:"T"`
	TradeID         int64  `json:"t"`
	OnBook          bool   `json:"w"`
	WorkingTime     int64  `json:"W"`
	Maker           bool   `json:"m"`
	IgnoreM         bool   `json:"M"`
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (p orderPayload) toOrder() (model.Order, error) {
	status, ok := enum.ParseOrderStatus(p.Status)
	if !ok {
		return model.Order{}, errors.Errorf("unknown order status %q", p.Status)
	}
	created := p.Time
	if created == 0 {
		created = p.TransactTime
	}
	return model.Order{
		ID:             p.OrderID,
		Symbol:         p.Symbol,
		Side:           enum.ParseSide(p.Side),
		Kind:           p.Type,
		Quantity:       parseDecimal(p.OrigQty),
		Price:          parseDecimal(p.Price),
		Status:         status,
		FilledQuantity: parseDecimal(p.ExecutedQty),
		CreatedAt:      msTime(created),
	}, nil
}

func (e executionReportEvent) toOrder() (model.Order, error) {
	status, ok := enum.ParseOrderStatus(e.Status)
	if !ok {
		return model.Order{}, errors.Errorf("unknown order status %q", e.Status)
	}
	return model.Order{
		ID:             e.OrderID,
		Symbol:         e.Symbol,
		Side:           enum.ParseSide(e.Side),
		Kind:           e.OrderType,
		Quantity:       parseDecimal(e.Quantity),
		Price:          parseDecimal(e.Price),
		Status:         status,
		FilledQuantity: parseDecimal(e.CumulativeQty),
		CreatedAt:      msTime(e.CreatedAt),
	}, nil
}

func (k klinePayload) toCandle() (model.Candle, error) {
	var (
		c   = model.Candle{OpenTime: k.OpenTime}
		err error
	)
	for _, f := range []struct {
		dst *float64
		raw string
	}{
		{&c.Open, k.Open},
		{&c.High, k.High},
		{&c.Low, k.Low},
		{&c.Close, k.Close},
		{&c.Volume, k.Volume},
	} {
		if f.raw == "" {
			continue
		}
		if *f.dst, err = strconv.ParseFloat(f.raw, 64); err != nil {
			return model.Candle{}, errors.Wrap(exception.ErrInvalidCandle, err.Error())
		}
	}
	return c, nil
}

// parseRestKline converts one /api/v3/klines row:
// [openTime, open, high, low, close, volume, closeTime, ...].
func parseRestKline(row []any) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, errors.Wrapf(exception.ErrInvalidCandle, "kline row has %d fields", len(row))
	}
	openTime, err := anyInt64(row[0])
	if err != nil {
		return model.Candle{}, err
	}
	c := model.Candle{OpenTime: openTime}
	for i, dst := range []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume} {
		v, err := anyFloat(row[i+1])
		if err != nil {
			return model.Candle{}, err
		}
		*dst = v
	}
	return c, nil
}

func anyInt64(v any) (int64, error) {
	switch x := v.(type) {
	case float64:
		return int64(x), nil
	case int64:
		return x, nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	default:
		return 0, errors.Wrapf(exception.ErrInvalidCandle, "unexpected open time type %T", v)
	}
}

func anyFloat(v any) (float64, error) {
	switch x := v.(type) {
	case string:
		return strconv.ParseFloat(x, 64)
	case float64:
		return x, nil
	default:
		return 0, errors.Wrapf(exception.ErrInvalidCandle, "unexpected price type %T", v)
	}
}
