package domain

// TransferStatus is the transfer state machine: Initiated -> Completed or
// Initiated -> Failed. Both end states are terminal.
type TransferStatus string

const (
	TransferInitiated TransferStatus = "initiated"
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
)

// Transfer aggregate event types.
const (
	EventTransferInitiated = "transfer.initiated"
	EventTransferCompleted = "transfer.completed"
	EventTransferFailed    = "transfer.failed"
)

// TransferInitiatedPayload captures the agreed terms. For cross-asset
// transfers the rate comes from an external pricing service before the
// aggregate is initiated; the aggregate stores it but never computes it.
type TransferInitiatedPayload struct {
	FromAccount string `json:"from_account"`
	ToAccount   string `json:"to_account"`
	FromAsset   string `json:"from_asset"`
	ToAsset     string `json:"to_asset"`
	Amount      int64  `json:"amount"`
	Rate        string `json:"rate"`
	WorkflowID  string `json:"workflow_id,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

type TransferCompletedPayload struct{}

type TransferFailedPayload struct {
	Reason string `json:"reason"`
}

// Transfer coordinates a debit and a credit on two independent account
// streams. Cross-aggregate atomicity comes from saga compensation, never a
// distributed transaction.
type Transfer struct {
	Root

	FromAccount   string
	ToAccount     string
	FromAsset     string
	ToAsset       string
	Amount        int64
	Rate          string
	WorkflowID    string
	Reference     string
	Status        TransferStatus
	FailureReason string
}

var _ Aggregate = (*Transfer)(nil)

// NewTransfer returns the zero-state aggregate for the given id.
func NewTransfer(id string) *Transfer {
	return &Transfer{Root: NewRoot("transfer", id)}
}

// Initiate records the opening event. Valid only on a fresh stream.
func (t *Transfer) Initiate(p TransferInitiatedPayload) error {
	if !t.IsNew() {
		return InvalidStateTransition("transfer", t.AggregateID(), string(t.Status), "initiate")
	}
	if p.FromAccount == "" || p.ToAccount == "" {
		return NewError(ErrCodeInvalid, "transfer requires both account references")
	}
	if p.FromAccount == p.ToAccount {
		return NewError(ErrCodeInvalid, "transfer requires two distinct accounts")
	}
	if p.Amount <= 0 {
		return NewError(ErrCodeInvalid, "transfer amount must be positive")
	}
	return t.RecordThat(t, EventTransferInitiated, p)
}

// IsCrossAsset reports whether the transfer converts between assets.
func (t *Transfer) IsCrossAsset() bool {
	return t.FromAsset != t.ToAsset
}

// Complete transitions Initiated -> Completed.
func (t *Transfer) Complete() error {
	if t.Status != TransferInitiated {
		return InvalidStateTransition("transfer", t.AggregateID(), string(t.Status), "complete")
	}
	return t.RecordThat(t, EventTransferCompleted, TransferCompletedPayload{})
}

// Fail transitions Initiated -> Failed.
func (t *Transfer) Fail(reason string) error {
	if t.Status != TransferInitiated {
		return InvalidStateTransition("transfer", t.AggregateID(), string(t.Status), "fail")
	}
	return t.RecordThat(t, EventTransferFailed, TransferFailedPayload{Reason: reason})
}

// Apply folds one event into transfer state.
func (t *Transfer) Apply(evt Event) error {
	switch evt.Type {
	case EventTransferInitiated:
		var p TransferInitiatedPayload
		if err := evt.DecodePayload(&p); err != nil {
			return err
		}
		t.FromAccount = p.FromAccount
		t.ToAccount = p.ToAccount
		t.FromAsset = p.FromAsset
		t.ToAsset = p.ToAsset
		t.Amount = p.Amount
		t.Rate = p.Rate
		t.WorkflowID = p.WorkflowID
		t.Reference = p.Reference
		t.Status = TransferInitiated
	case EventTransferCompleted:
		t.Status = TransferCompleted
	case EventTransferFailed:
		var p TransferFailedPayload
		if err := evt.DecodePayload(&p); err != nil {
			return err
		}
		t.Status = TransferFailed
		t.FailureReason = p.Reason
	default:
		return NewError(ErrCodeInternal, "unknown transfer event "+evt.Type)
	}
	return nil
}
