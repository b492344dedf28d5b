package repository

import (
	"context"

	"github.com/shopspring/decimal"
)

// RateProvider quotes exchange rates for cross-asset transfers. The rate is
// looked up before the transfer aggregate is initiated; the aggregate stores
// the agreed rate but never computes it.
type RateProvider interface {
	GetRate(ctx context.Context, fromAsset, toAsset string) (decimal.Decimal, error)
}
