package candle

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotbot/internal/model"
	"spotbot/pkg/exception"
)

func bar(openTime int64, close float64) model.Candle {
	return model.Candle{OpenTime: openTime, Open: close, High: close, Low: close, Close: close, Volume: 1}
}

func TestStoreLengthNeverExceedsWindow(t *testing.T) {
	s := NewStore([]string{"BTCUSDT"}, 5)
	rng := rand.New(rand.NewSource(7))
	for range 500 {
		_, err := s.Upsert("BTCUSDT", bar(rng.Int63n(40), rng.Float64()))
		require.NoError(t, err)
		if got := s.Len("BTCUSDT"); got > 5 {
			t.Fatalf("buffer length: got %d want <= 5", got)
		}
	}
}

func TestStoreUpsertExistingReplaces(t *testing.T) {
	s := NewStore([]string{"BTCUSDT"}, 3)
	for i := range 3 {
		_, err := s.Upsert("BTCUSDT", bar(int64(i)*60_000, float64(i)))
		require.NoError(t, err)
	}

	updated := model.Candle{OpenTime: 60_000, Open: 9, High: 10, Low: 8, Close: 9.5, Volume: 42}
	res, err := s.Upsert("BTCUSDT", updated)
	require.NoError(t, err)
	assert.Equal(t, Updated, res)

	series, err := s.Snapshot("BTCUSDT")
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, updated, series[1])
	assert.Equal(t, bar(0, 0), series[0])
	assert.Equal(t, bar(120_000, 2), series[2])
}

func TestStoreAppendEvictsOldest(t *testing.T) {
	s := NewStore([]string{"ETHUSDT"}, 3)
	for i := range 3 {
		_, err := s.Upsert("ETHUSDT", bar(int64(i+1), float64(i)))
		require.NoError(t, err)
	}

	res, err := s.Upsert("ETHUSDT", bar(4, 3))
	require.NoError(t, err)
	assert.Equal(t, Appended, res)

	series, _ := s.Snapshot("ETHUSDT")
	require.Len(t, series, 3)
	assert.Equal(t, []int64{2, 3, 4}, openTimes(series))
}

func TestStoreIgnoresOutOfOrder(t *testing.T) {
	s := NewStore([]string{"ETHUSDT"}, 4)
	_, _ = s.Upsert("ETHUSDT", bar(10, 1))
	_, _ = s.Upsert("ETHUSDT", bar(30, 1))

	res, err := s.Upsert("ETHUSDT", bar(20, 1))
	require.NoError(t, err)
	assert.Equal(t, Ignored, res)

	series, _ := s.Snapshot("ETHUSDT")
	assert.Equal(t, []int64{10, 30}, openTimes(series))
}

func TestStoreUnknownSymbol(t *testing.T) {
	s := NewStore([]string{"BTCUSDT"}, 3)
	_, err := s.Upsert("DOGEUSDT", bar(1, 1))
	require.ErrorIs(t, err, exception.ErrUnknownSymbol)
	_, err = s.Snapshot("DOGEUSDT")
	require.ErrorIs(t, err, exception.ErrUnknownSymbol)
	require.ErrorIs(t, s.Replace("DOGEUSDT", nil), exception.ErrUnknownSymbol)
}

func TestStoreReplaceSortsDedupesTrims(t *testing.T) {
	s := NewStore([]string{"BTCUSDT"}, 3)
	err := s.Replace("BTCUSDT", []model.Candle{
		bar(5, 5), bar(1, 1), bar(3, 3), bar(4, 4), bar(3, 33), bar(2, 2),
	})
	require.NoError(t, err)

	series, _ := s.Snapshot("BTCUSDT")
	assert.Equal(t, []int64{3, 4, 5}, openTimes(series))
	assert.Equal(t, 33.0, series[0].Close)
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	s := NewStore([]string{"BTCUSDT"}, 3)
	_, _ = s.Upsert("BTCUSDT", bar(1, 1))

	series, _ := s.Snapshot("BTCUSDT")
	series[0].Close = 99

	again, _ := s.Snapshot("BTCUSDT")
	assert.Equal(t, 1.0, again[0].Close)
}

func TestStoreConcurrentUpsertAndSnapshot(t *testing.T) {
	symbols := []string{"A", "B"}
	s := NewStore(symbols, 50)

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 1000 {
				_, _ = s.Upsert(symbol, bar(int64(i/2), float64(i)))
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 200 {
			for _, series := range s.SnapshotAll() {
				for i := 1; i < len(series); i++ {
					if series[i].OpenTime <= series[i-1].OpenTime {
						t.Errorf("snapshot out of order at %d", i)
						return
					}
				}
			}
		}
	}()
	wg.Wait()

	for _, symbol := range symbols {
		assert.Equal(t, 50, s.Len(symbol))
	}
}

func openTimes(series Series) []int64 {
	out := make([]int64, len(series))
	for i := range series {
		out[i] = series[i].OpenTime
	}
	return out
}
