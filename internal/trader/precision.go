package trader

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"spotbot/internal/exchange"
	"spotbot/internal/model"
)

// TruncateToStep floors v to a multiple of step.
func TruncateToStep(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Floor().Mul(step)
}

// RoundToStep rounds v to the nearest multiple of step.
func RoundToStep(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Round(0).Mul(step)
}

// PrecisionCache fetches a symbol's steps once and keeps them for the
// lifetime of the process.
type PrecisionCache struct {
	gateway exchange.OrderGateway

	mu    sync.Mutex
	cache map[string]model.SymbolPrecision
}

func NewPrecisionCache(gateway exchange.OrderGateway) *PrecisionCache {
	return &PrecisionCache{
		gateway: gateway,
		cache:   make(map[string]model.SymbolPrecision),
	}
}

func (p *PrecisionCache) Get(ctx context.Context, symbol string) (model.SymbolPrecision, error) {
	p.mu.Lock()
	cached, ok := p.cache[symbol]
	p.mu.Unlock()
	if ok {
		return cached, nil
	}

	fetched, err := p.gateway.FetchSymbolPrecision(ctx, symbol)
	if err != nil {
		return model.SymbolPrecision{}, errors.Wrapf(err, "fetch precision of %s", symbol)
	}

	p.mu.Lock()
	p.cache[symbol] = fetched
	p.mu.Unlock()
	return fetched, nil
}
