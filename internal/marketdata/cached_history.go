package marketdata

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/yanun0323/logs"

	"spotbot/internal/exchange"
	"spotbot/internal/model"
)

// CandleCache persists closed candles between runs.
type CandleCache interface {
	Load(ctx context.Context, symbol, interval string, start, end time.Time) ([]model.Candle, error)
	Save(ctx context.Context, symbol, interval string, candles []model.Candle) error
}

// CachedHistory serves history from a cache and only asks the exchange for
// the part after the newest cached candle. Cache failures fall back to the
// exchange.
type CachedHistory struct {
	cache  CandleCache
	source exchange.HistorySource
}

func NewCachedHistory(cache CandleCache, source exchange.HistorySource) *CachedHistory {
	return &CachedHistory{cache: cache, source: source}
}

func (h *CachedHistory) FetchHistoricalCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]model.Candle, error) {
	cached, err := h.cache.Load(ctx, symbol, interval, start, end)
	if err != nil {
		logs.Errorf("load cached candles, symbol: %s, err: %+v", symbol, err)
		cached = nil
	}

	if !contiguous(cached, start, interval) {
		cached = nil
	}

	from := start
	if n := len(cached); n > 0 {
		// the newest cached bar may have been stored before it closed
		from = time.UnixMilli(cached[n-1].OpenTime)
		cached = cached[:n-1]
	}

	fresh, err := h.source.FetchHistoricalCandles(ctx, symbol, interval, from, end)
	if err != nil {
		return nil, err
	}

	if err := h.cache.Save(ctx, symbol, interval, fresh); err != nil {
		logs.Errorf("save cached candles, symbol: %s, err: %+v", symbol, err)
	}

	out := make([]model.Candle, 0, len(cached)+len(fresh))
	out = append(out, cached...)
	out = append(out, fresh...)
	return out, nil
}

// contiguous reports whether candles cover start onwards without a missing
// bar. Anything else is refetched in full.
func contiguous(candles []model.Candle, start time.Time, interval string) bool {
	if len(candles) == 0 {
		return true
	}
	step, ok := intervalDuration(interval)
	if !ok {
		return false
	}

	ms := step.Milliseconds()
	if candles[0].OpenTime > start.UnixMilli()+ms {
		return false
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].OpenTime-candles[i-1].OpenTime > ms {
			return false
		}
	}
	return true
}

// intervalDuration converts a kline interval such as 1m, 4h or 1d.
func intervalDuration(interval string) (time.Duration, bool) {
	if n, ok := strings.CutSuffix(interval, "d"); ok {
		days, err := strconv.Atoi(n)
		if err != nil || days <= 0 {
			return 0, false
		}
		return time.Duration(days) * 24 * time.Hour, true
	}
	d, err := time.ParseDuration(interval)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
