package signal

import "math"

// EWM is an exponentially weighted mean with center of mass com and no
// bias adjustment: y[0] = x[0], y[t] = (1-a)*y[t-1] + a*x[t], a = 1/(1+com).
func EWM(values []float64, com float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 1 / (1 + com)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = (1-alpha)*out[i-1] + alpha*values[i]
	}
	return out
}

// EMA is the moving average over window periods (com = window-1).
func EMA(values []float64, window int) []float64 {
	return EWM(values, float64(window-1))
}

// RSI is the relative strength index of closes, smoothing gains and losses
// with center of mass com. The first value has no change and is NaN.
func RSI(closes []float64, com float64) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}

	ups := make([]float64, len(closes)-1)
	downs := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			ups[i-1] = delta
		} else {
			downs[i-1] = -delta
		}
	}

	emaUp := EWM(ups, com)
	emaDown := EWM(downs, com)

	out[0] = math.NaN()
	for i := range emaUp {
		out[i+1] = rsiValue(emaUp[i], emaDown[i])
	}
	return out
}

func rsiValue(up, down float64) float64 {
	switch {
	case up == 0 && down == 0:
		return math.NaN()
	case down == 0:
		return 100
	}
	rs := up / down
	return round(100-100/(1+rs), 3)
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func last(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	v := values[len(values)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
