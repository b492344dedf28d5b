package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/fastygo/ledger/domain"
)

func TestRetryOnConflictRetriesOnlyConflicts(t *testing.T) {
	calls := 0
	err := RetryOnConflict(context.Background(), 3, func() error {
		calls++
		if calls < 3 {
			return domain.ErrConcurrencyConflict
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryOnConflictPassesOtherErrorsThrough(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := RetryOnConflict(context.Background(), 5, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("non-conflict errors must not retry, calls=%d", calls)
	}
}

func TestRetryOnConflictExhaustsAttempts(t *testing.T) {
	calls := 0
	err := RetryOnConflict(context.Background(), 2, func() error {
		calls++
		return domain.ErrConcurrencyConflict
	})
	if !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected the conflict to surface, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestRetryOnConflictStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryOnConflict(ctx, 10, func() error {
		calls++
		cancel()
		return domain.ErrConcurrencyConflict
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("cancelled context must stop retries, calls=%d", calls)
	}
}
