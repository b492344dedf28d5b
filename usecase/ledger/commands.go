package ledger

// Commands. Each carries plain data; behavior lives in the handlers.

type OpenAccount struct {
	AccountID      string `json:"account_id,omitempty"`
	Name           string `json:"name"`
	OwnerID        string `json:"owner_id,omitempty"`
	AllowOverdraft bool   `json:"allow_overdraft"`
}

func (OpenAccount) CommandName() string { return "ledger.open_account" }

type CreditAccount struct {
	AccountID string `json:"account_id"`
	AssetCode string `json:"asset_code"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (CreditAccount) CommandName() string { return "ledger.credit_account" }

type DebitAccount struct {
	AccountID string `json:"account_id"`
	AssetCode string `json:"asset_code"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (DebitAccount) CommandName() string { return "ledger.debit_account" }

type FreezeAccount struct {
	AccountID string `json:"account_id"`
	Reason    string `json:"reason,omitempty"`
}

func (FreezeAccount) CommandName() string { return "ledger.freeze_account" }

type UnfreezeAccount struct {
	AccountID string `json:"account_id"`
}

func (UnfreezeAccount) CommandName() string { return "ledger.unfreeze_account" }

type CloseAccount struct {
	AccountID string `json:"account_id"`
	Reason    string `json:"reason,omitempty"`
}

func (CloseAccount) CommandName() string { return "ledger.close_account" }

// Queries.

const (
	QueryGetAccount   = "ledger.get_account"
	QueryGetBalance   = "ledger.get_balance"
	QueryAuditAccount = "ledger.audit_account"
)

type GetAccount struct {
	AccountID string `json:"account_id"`
}

func (GetAccount) QueryName() string { return QueryGetAccount }

type GetBalance struct {
	AccountID string `json:"account_id"`
	AssetCode string `json:"asset_code"`
}

func (GetBalance) QueryName() string { return QueryGetBalance }

type AuditAccount struct {
	AccountID string `json:"account_id"`
}

func (AuditAccount) QueryName() string { return QueryAuditAccount }

// Results.

type AccountResult struct {
	AccountID string `json:"account_id"`
}

type MovementResult struct {
	AccountID string `json:"account_id"`
	AssetCode string `json:"asset_code"`
	Balance   int64  `json:"balance"`
	Hash      string `json:"hash"`
	Sequence  int64  `json:"sequence"`
}

type AccountView struct {
	AccountID      string `json:"account_id"`
	Name           string `json:"name"`
	OwnerID        string `json:"owner_id,omitempty"`
	Status         string `json:"status"`
	AllowOverdraft bool   `json:"allow_overdraft"`
	Version        int64  `json:"version"`
}

type BalanceResult struct {
	AccountID string `json:"account_id"`
	AssetCode string `json:"asset_code"`
	Balance   int64  `json:"balance"`
	Source    string `json:"source"`
}

type AuditEntry struct {
	Sequence int64  `json:"sequence"`
	Type     string `json:"type"`
	Hash     string `json:"hash,omitempty"`
	Valid    bool   `json:"valid"`
	Error    string `json:"error,omitempty"`
}

type AuditReport struct {
	AccountID   string       `json:"account_id"`
	ChainIntact bool         `json:"chain_intact"`
	Entries     []AuditEntry `json:"entries"`
}
