package transfer

// TransferFunds moves value between two accounts through the transfer saga.
// For cross-asset moves the rate is quoted before the transfer aggregate is
// initiated.
type TransferFunds struct {
	FromAccount string `json:"from_account"`
	ToAccount   string `json:"to_account"`
	FromAsset   string `json:"from_asset"`
	ToAsset     string `json:"to_asset"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

func (TransferFunds) CommandName() string { return "transfer.funds" }

const (
	QueryGetTransfer = "transfer.get"
	QueryGetWorkflow = "workflow.get"
)

type GetTransfer struct {
	TransferID string `json:"transfer_id"`
}

func (GetTransfer) QueryName() string { return QueryGetTransfer }

type GetWorkflow struct {
	WorkflowID string `json:"workflow_id"`
}

func (GetWorkflow) QueryName() string { return QueryGetWorkflow }

type TransferResult struct {
	TransferID string `json:"transfer_id"`
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	Rate       string `json:"rate"`
}

type TransferView struct {
	TransferID    string `json:"transfer_id"`
	FromAccount   string `json:"from_account"`
	ToAccount     string `json:"to_account"`
	FromAsset     string `json:"from_asset"`
	ToAsset       string `json:"to_asset"`
	Amount        int64  `json:"amount"`
	Rate          string `json:"rate"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}
