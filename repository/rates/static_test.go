package rates

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fastygo/ledger/domain"
)

func TestStaticSameAssetQuotesOne(t *testing.T) {
	table := NewStatic()
	rate, err := table.GetRate(context.Background(), "USD", "USD")
	if err != nil {
		t.Fatalf("same asset: %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected 1, got %s", rate)
	}
}

func TestStaticPairsAreDirectional(t *testing.T) {
	table := NewStatic()
	table.Set("USD", "EUR", decimal.RequireFromString("0.9"))

	rate, err := table.GetRate(context.Background(), "USD", "EUR")
	if err != nil {
		t.Fatalf("get rate: %v", err)
	}
	if rate.String() != "0.9" {
		t.Fatalf("unexpected rate %s", rate)
	}

	// The reverse pair is not implied.
	if _, err := table.GetRate(context.Background(), "EUR", "USD"); !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND for the reverse pair, got %v", err)
	}
}

func TestStaticMissingPair(t *testing.T) {
	table := NewStatic()
	if _, err := table.GetRate(context.Background(), "USD", "GBP"); !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
