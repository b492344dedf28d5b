package rates

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fastygo/ledger/domain"
)

// Static is a fixed rate table for tests and deployments without a pricing
// service. Same-asset pairs always quote 1.
type Static struct {
	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewStatic creates an empty static rate table.
func NewStatic() *Static {
	return &Static{rates: make(map[string]decimal.Decimal)}
}

// Set pins the rate for a pair.
func (s *Static) Set(fromAsset, toAsset string, rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[pairKey(fromAsset, toAsset)] = rate
}

func (s *Static) GetRate(ctx context.Context, fromAsset, toAsset string) (decimal.Decimal, error) {
	if fromAsset == toAsset {
		return decimal.NewFromInt(1), nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rate, ok := s.rates[pairKey(fromAsset, toAsset)]
	if !ok {
		return decimal.Decimal{}, domain.NewError(domain.ErrCodeNotFound,
			fmt.Sprintf("no rate for %s/%s", fromAsset, toAsset))
	}
	return rate, nil
}

func pairKey(fromAsset, toAsset string) string {
	return fromAsset + "/" + toAsset
}
