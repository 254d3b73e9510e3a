package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotbot/internal/model"
)

type memoryCache struct {
	rows    []model.Candle
	saved   []model.Candle
	loadErr error
}

func (m *memoryCache) Load(context.Context, string, string, time.Time, time.Time) ([]model.Candle, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make([]model.Candle, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

func (m *memoryCache) Save(_ context.Context, _, _ string, candles []model.Candle) error {
	m.saved = append(m.saved, candles...)
	return nil
}

func TestCachedHistoryFetchesOnlyTail(t *testing.T) {
	cache := &memoryCache{rows: []model.Candle{{OpenTime: 60_000, Close: 1}, {OpenTime: 120_000, Close: 2}}}
	source := &fakeHistory{candles: map[string][]model.Candle{
		"BTCUSDT": {{OpenTime: 120_000, Close: 2.5}, {OpenTime: 180_000, Close: 3}},
	}}
	h := NewCachedHistory(cache, source)

	start, end := time.UnixMilli(0), time.UnixMilli(200_000)
	got, err := h.FetchHistoricalCandles(t.Context(), "BTCUSDT", "1m", start, end)
	require.NoError(t, err)

	assert.Equal(t, []model.Candle{{OpenTime: 60_000, Close: 1}, {OpenTime: 120_000, Close: 2.5}, {OpenTime: 180_000, Close: 3}}, got)
	assert.Equal(t, time.UnixMilli(120_000), source.calls["BTCUSDT"][0])
	assert.Len(t, cache.saved, 2)
}

func TestCachedHistoryFallsBackOnCacheError(t *testing.T) {
	cache := &memoryCache{loadErr: errors.New("db down")}
	source := &fakeHistory{candles: map[string][]model.Candle{"BTCUSDT": {{OpenTime: 1}}}}
	h := NewCachedHistory(cache, source)

	start := time.UnixMilli(0)
	got, err := h.FetchHistoricalCandles(t.Context(), "BTCUSDT", "1m", start, time.UnixMilli(10))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, start, source.calls["BTCUSDT"][0])
}

func TestCachedHistoryRefetchesOnGap(t *testing.T) {
	cases := map[string][]model.Candle{
		"hole in the middle": {{OpenTime: 60_000}, {OpenTime: 240_000}, {OpenTime: 300_000}},
		"late first bar":     {{OpenTime: 180_000}, {OpenTime: 240_000}},
	}
	for name, rows := range cases {
		t.Run(name, func(t *testing.T) {
			cache := &memoryCache{rows: rows}
			source := &fakeHistory{candles: map[string][]model.Candle{"BTCUSDT": {{OpenTime: 60_000}}}}
			h := NewCachedHistory(cache, source)

			start := time.UnixMilli(0)
			_, err := h.FetchHistoricalCandles(t.Context(), "BTCUSDT", "1m", start, time.UnixMilli(400_000))
			require.NoError(t, err)
			assert.Equal(t, start, source.calls["BTCUSDT"][0])
		})
	}
}

func TestIntervalDuration(t *testing.T) {
	for in, want := range map[string]time.Duration{
		"1m":  time.Minute,
		"15m": 15 * time.Minute,
		"4h":  4 * time.Hour,
		"1d":  24 * time.Hour,
	} {
		got, ok := intervalDuration(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := intervalDuration("xd")
	assert.False(t, ok)
}
