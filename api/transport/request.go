package transport

type OpenAccountRequest struct {
	AccountID      string `json:"account_id,omitempty"`
	Name           string `json:"name"`
	OwnerID        string `json:"owner_id,omitempty"`
	AllowOverdraft bool   `json:"allow_overdraft"`
}

type MovementRequest struct {
	AssetCode string `json:"asset_code"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Async     bool   `json:"async,omitempty"`
}

type LifecycleRequest struct {
	Reason string `json:"reason,omitempty"`
}

type TransferRequest struct {
	FromAccount string `json:"from_account"`
	ToAccount   string `json:"to_account"`
	FromAsset   string `json:"from_asset"`
	ToAsset     string `json:"to_asset,omitempty"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Reference   string `json:"reference,omitempty"`
}
