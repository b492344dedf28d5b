package domain

import "fmt"

// Money is an amount in the smallest unit of a currency. Amounts are plain
// integers; no floating point anywhere near a balance.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

// NewMoney builds a non-negative Money value. Debits are expressed as
// operations, not negative amounts.
func NewMoney(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, NewError(ErrCodeInvalid, fmt.Sprintf("money amount must not be negative, got %d", amount))
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// AssetAmount pairs an asset code with a quantity in minor units. Used where
// an account holds multiple assets under one stream.
type AssetAmount struct {
	AssetCode string `json:"asset_code"`
	Amount    int64  `json:"amount"`
}

// NewAssetAmount validates the asset code and quantity.
func NewAssetAmount(assetCode string, amount int64) (AssetAmount, error) {
	if assetCode == "" {
		return AssetAmount{}, NewError(ErrCodeInvalid, "asset code is required")
	}
	if amount < 0 {
		return AssetAmount{}, NewError(ErrCodeInvalid, fmt.Sprintf("asset amount must not be negative, got %d", amount))
	}
	return AssetAmount{AssetCode: assetCode, Amount: amount}, nil
}
