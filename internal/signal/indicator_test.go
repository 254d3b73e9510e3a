package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEWM(t *testing.T) {
	got := EWM([]float64{1, 2, 3}, 1)
	assert.InDeltaSlice(t, []float64{1, 1.5, 2.25}, got, 1e-12)
	assert.Empty(t, EWM(nil, 3))
}

func TestEMAUsesWindowMinusOne(t *testing.T) {
	assert.Equal(t, EWM([]float64{4, 8, 2}, 4), EMA([]float64{4, 8, 2}, 5))
}

func TestRSI(t *testing.T) {
	got := RSI([]float64{1, 2, 1}, 1)
	require.Len(t, got, 3)
	assert.True(t, math.IsNaN(got[0]))
	assert.Equal(t, 100.0, got[1])
	assert.Equal(t, 50.0, got[2])

	flat := RSI([]float64{5, 5, 5}, 2)
	assert.True(t, math.IsNaN(flat[2]))

	falling := RSI([]float64{10, 9, 8, 7}, 13)
	assert.Equal(t, 0.0, falling[3])
}
