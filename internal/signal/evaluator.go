package signal

import (
	"sort"

	"spotbot/internal/candle"
)

// Candidate is an entry opportunity. Higher Score means a stronger entry.
type Candidate struct {
	Symbol         string
	ReferencePrice float64
	Score          float64
	Metadata       map[string]float64
}

// Evaluator finds entry opportunities on candle snapshots. Implementations
// must not keep or modify the series they are given.
type Evaluator interface {
	// Evaluate returns the best qualifying candidate across symbols.
	Evaluate(series map[string]candle.Series) (Candidate, bool)
	// Reevaluate scores one symbol regardless of whether it still
	// qualifies, so a pending entry can be compared with its origin.
	Reevaluate(symbol string, series candle.Series) (Candidate, bool)
}

// Rank orders candidates by score descending, then symbol ascending.
func Rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Symbol < candidates[j].Symbol
	})
}

// scorer computes a candidate for one series and tells whether it
// qualifies for entry.
type scorer func(symbol string, series candle.Series) (c Candidate, ok bool, qualified bool)

type ranked struct {
	score scorer
}

func (r ranked) Evaluate(series map[string]candle.Series) (Candidate, bool) {
	candidates := make([]Candidate, 0, len(series))
	for symbol, s := range series {
		c, ok, qualified := r.score(symbol, s)
		if ok && qualified {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	Rank(candidates)
	return candidates[0], true
}

func (r ranked) Reevaluate(symbol string, series candle.Series) (Candidate, bool) {
	c, ok, _ := r.score(symbol, series)
	return c, ok
}
