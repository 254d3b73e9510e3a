package model

// Candle is one OHLCV bar. OpenTime is the bar start in unix milliseconds
// and is unique within a symbol.
type Candle struct {
	OpenTime int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Closes returns the close prices of the given candles in order.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Close
	}
	return out
}
