package signal

import (
	"github.com/yanun0323/errors"

	"spotbot/internal/candle"
	"spotbot/pkg/exception"
)

const (
	StrategyRSI           = "rsi"
	StrategyEMADivergence = "ema_divergence"
	StrategyMonotonic     = "monotonic"
)

// Config selects and parameterizes a strategy.
type Config struct {
	Strategy  string
	Window    int
	Threshold float64
}

// New builds the evaluator named by cfg.Strategy.
func New(cfg Config) (Evaluator, error) {
	switch cfg.Strategy {
	case StrategyRSI:
		return NewRSI(cfg.Window, cfg.Threshold), nil
	case StrategyEMADivergence:
		return NewEMADivergence(cfg.Window, cfg.Threshold), nil
	case StrategyMonotonic:
		return NewMonotonic(cfg.Window), nil
	default:
		return nil, errors.Wrapf(exception.ErrUnknownStrategy, "strategy %q", cfg.Strategy)
	}
}

// NewRSI qualifies symbols whose RSI is at or below threshold. The lowest
// RSI ranks first.
func NewRSI(window int, threshold float64) Evaluator {
	return ranked{score: func(symbol string, series candle.Series) (Candidate, bool, bool) {
		closes := series.Closes()
		if len(closes) < 2 {
			return Candidate{}, false, false
		}
		rsi, ok := last(RSI(closes, float64(window)))
		if !ok {
			return Candidate{}, false, false
		}
		return Candidate{
			Symbol:         symbol,
			ReferencePrice: closes[len(closes)-1],
			Score:          100 - rsi,
			Metadata:       map[string]float64{"rsi": rsi},
		}, true, rsi <= threshold
	}}
}

// NewEMADivergence qualifies symbols trading below their moving average by
// at least threshold, measured as ema/close.
func NewEMADivergence(window int, threshold float64) Evaluator {
	return ranked{score: func(symbol string, series candle.Series) (Candidate, bool, bool) {
		closes := series.Closes()
		if len(closes) < window || window <= 0 {
			return Candidate{}, false, false
		}
		ema, ok := last(EMA(closes, window))
		price := closes[len(closes)-1]
		if !ok || price <= 0 {
			return Candidate{}, false, false
		}
		ratio := ema / price
		return Candidate{
			Symbol:         symbol,
			ReferencePrice: price,
			Score:          ratio,
			Metadata:       map[string]float64{"ema": ema, "ratio": ratio},
		}, true, ratio >= threshold
	}}
}

// NewMonotonic qualifies symbols whose last window closes strictly rise.
// The relative rise over the window is the score.
func NewMonotonic(window int) Evaluator {
	if window < 2 {
		window = 2
	}
	return ranked{score: func(symbol string, series candle.Series) (Candidate, bool, bool) {
		closes := series.Closes()
		if len(closes) < window {
			return Candidate{}, false, false
		}
		tail := closes[len(closes)-window:]
		rising := true
		for i := 1; i < len(tail); i++ {
			if tail[i] <= tail[i-1] {
				rising = false
				break
			}
		}
		if tail[0] <= 0 {
			return Candidate{}, false, false
		}
		rise := tail[len(tail)-1]/tail[0] - 1
		return Candidate{
			Symbol:         symbol,
			ReferencePrice: tail[len(tail)-1],
			Score:          rise,
			Metadata:       map[string]float64{"rise": rise},
		}, true, rising
	}}
}
