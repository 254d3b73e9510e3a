package candle

import (
	"sort"
	"sync"

	"spotbot/internal/model"
	"spotbot/pkg/exception"
)

// Series is an ordered copy of one symbol's candles, oldest first.
type Series []model.Candle

// Last returns the newest candle.
func (s Series) Last() (model.Candle, bool) {
	if len(s) == 0 {
		return model.Candle{}, false
	}
	return s[len(s)-1], true
}

// Closes returns the close prices in order.
func (s Series) Closes() []float64 {
	return model.Closes(s)
}

// UpsertResult tells what Upsert did with a candle.
type UpsertResult uint8

const (
	Ignored UpsertResult = iota
	Updated
	Appended
)

func (r UpsertResult) String() string {
	switch r {
	case Updated:
		return "updated"
	case Appended:
		return "appended"
	default:
		return "ignored"
	}
}

type buffer struct {
	mu      sync.RWMutex
	candles []model.Candle
}

// Store keeps a bounded, time ordered window of candles per symbol.
// The symbol set is fixed at construction so only per-symbol locks are needed.
type Store struct {
	window  int
	buffers map[string]*buffer
}

// NewStore creates a store holding at most window candles per symbol.
func NewStore(symbols []string, window int) *Store {
	if window <= 0 {
		window = 1
	}
	buffers := make(map[string]*buffer, len(symbols))
	for _, symbol := range symbols {
		buffers[symbol] = &buffer{candles: make([]model.Candle, 0, window+1)}
	}
	return &Store{window: window, buffers: buffers}
}

// Window returns the per-symbol capacity.
func (s *Store) Window() int {
	return s.window
}

// Symbols returns the tracked symbols in ascending order.
func (s *Store) Symbols() []string {
	out := make([]string, 0, len(s.buffers))
	for symbol := range s.buffers {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Upsert overwrites the candle with the same OpenTime, or appends a newer one
// and evicts the oldest on overflow. A candle older than the newest one that
// is not already stored is ignored so the buffer stays strictly ordered.
func (s *Store) Upsert(symbol string, c model.Candle) (UpsertResult, error) {
	b, ok := s.buffers[symbol]
	if !ok {
		return Ignored, exception.ErrUnknownSymbol
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.candles)
	if n == 0 || c.OpenTime > b.candles[n-1].OpenTime {
		b.candles = append(b.candles, c)
		if len(b.candles) > s.window {
			drop := len(b.candles) - s.window
			copy(b.candles, b.candles[drop:])
			b.candles = b.candles[:s.window]
		}
		return Appended, nil
	}

	// updates almost always hit the newest candle
	for i := n - 1; i >= 0; i-- {
		switch {
		case b.candles[i].OpenTime == c.OpenTime:
			b.candles[i] = c
			return Updated, nil
		case b.candles[i].OpenTime < c.OpenTime:
			return Ignored, nil
		}
	}
	return Ignored, nil
}

// Replace loads a history for symbol, sorting it, keeping the last value per
// OpenTime and trimming to the newest window candles.
func (s *Store) Replace(symbol string, candles []model.Candle) error {
	b, ok := s.buffers[symbol]
	if !ok {
		return exception.ErrUnknownSymbol
	}

	sorted := make([]model.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OpenTime < sorted[j].OpenTime
	})

	deduped := sorted[:0]
	for _, c := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].OpenTime == c.OpenTime {
			deduped[n-1] = c
			continue
		}
		deduped = append(deduped, c)
	}
	if len(deduped) > s.window {
		deduped = deduped[len(deduped)-s.window:]
	}

	next := make([]model.Candle, len(deduped), s.window+1)
	copy(next, deduped)

	b.mu.Lock()
	b.candles = next
	b.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the candles for symbol.
func (s *Store) Snapshot(symbol string) (Series, error) {
	b, ok := s.buffers[symbol]
	if !ok {
		return nil, exception.ErrUnknownSymbol
	}
	return b.snapshot(), nil
}

// SnapshotAll returns a copy of every symbol's candles.
func (s *Store) SnapshotAll() map[string]Series {
	out := make(map[string]Series, len(s.buffers))
	for symbol, b := range s.buffers {
		out[symbol] = b.snapshot()
	}
	return out
}

// Len returns the number of candles stored for symbol.
func (s *Store) Len(symbol string) int {
	b, ok := s.buffers[symbol]
	if !ok {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.candles)
}

func (b *buffer) snapshot() Series {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(Series, len(b.candles))
	copy(out, b.candles)
	return out
}
