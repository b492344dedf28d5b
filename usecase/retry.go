package usecase

import (
	"context"
	"errors"

	"github.com/fastygo/ledger/domain"
)

// RetryOnConflict re-runs fn when it loses an optimistic-concurrency race.
// fn must reload the aggregate on every attempt; any other error passes
// through untouched.
func RetryOnConflict(ctx context.Context, attempts int, fn func() error) error {
	if attempts <= 0 {
		attempts = 3
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); !errors.Is(err, domain.ErrConcurrencyConflict) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
