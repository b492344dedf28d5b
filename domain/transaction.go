package domain

import "encoding/json"

// Transaction aggregate event types.
const (
	EventLedgerOpened  = "transaction.ledger_opened"
	EventMoneyCredited = "transaction.money_credited"
	EventMoneyDebited  = "transaction.money_debited"
)

// LedgerOpened starts a transaction stream for an account and pins its
// overdraft policy.
type LedgerOpened struct {
	AccountID      string `json:"account_id"`
	AllowOverdraft bool   `json:"allow_overdraft"`
}

// MoneyMoved is the payload shared by credit and debit events. PreviousHash
// and Hash form the tamper-evident chain; the hash covers the signed delta.
type MoneyMoved struct {
	AssetCode    string `json:"asset_code"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency,omitempty"`
	Reason       string `json:"reason,omitempty"`
	PreviousHash Hash   `json:"previous_hash"`
	Hash         Hash   `json:"hash"`
}

// Transaction is the balance ledger for one account: a hash-chained fold of
// credits and debits per asset. It is the only place balance-changing events
// may originate.
type Transaction struct {
	Root

	AccountID      string
	AllowOverdraft bool
	balances       map[string]int64
	headHash       Hash
}

var _ Aggregate = (*Transaction)(nil)

// NewTransaction returns the zero-state ledger for an account reference.
func NewTransaction(accountID AccountUuid) *Transaction {
	return &Transaction{
		Root:     NewRoot("transaction", accountID.String()),
		balances: make(map[string]int64),
	}
}

// OpenLedger records the stream-opening event carrying the overdraft policy.
func (t *Transaction) OpenLedger(allowOverdraft bool) error {
	if !t.IsNew() {
		return InvalidStateTransition("transaction", t.AggregateID(), "open", "open")
	}
	return t.RecordThat(t, EventLedgerOpened, LedgerOpened{
		AccountID:      t.AggregateID(),
		AllowOverdraft: allowOverdraft,
	})
}

// Credit records a balance increase. No precondition on the current balance.
func (t *Transaction) Credit(asset AssetAmount, currency, reason string) error {
	if asset.Amount <= 0 {
		return NewError(ErrCodeInvalid, "credit amount must be positive")
	}
	prev := t.headHash
	hash := ComputeChainHash(t.AggregateID(), asset.AssetCode, prev, asset.Amount)
	return t.RecordChained(t, EventMoneyCredited, MoneyMoved{
		AssetCode:    asset.AssetCode,
		Amount:       asset.Amount,
		Currency:     currency,
		Reason:       reason,
		PreviousHash: prev,
		Hash:         hash,
	}, hash)
}

// Debit records a balance decrease. Rejected with InsufficientBalance when the
// resulting balance would go negative and overdraft is not permitted; nothing
// is recorded on rejection.
func (t *Transaction) Debit(asset AssetAmount, currency, reason string) error {
	if asset.Amount <= 0 {
		return NewError(ErrCodeInvalid, "debit amount must be positive")
	}
	balance := t.balances[asset.AssetCode]
	if balance-asset.Amount < 0 && !t.AllowOverdraft {
		return InsufficientBalance(t.AggregateID(), asset.AssetCode, balance, asset.Amount)
	}
	prev := t.headHash
	hash := ComputeChainHash(t.AggregateID(), asset.AssetCode, prev, -asset.Amount)
	return t.RecordChained(t, EventMoneyDebited, MoneyMoved{
		AssetCode:    asset.AssetCode,
		Amount:       asset.Amount,
		Currency:     currency,
		Reason:       reason,
		PreviousHash: prev,
		Hash:         hash,
	}, hash)
}

// Balance returns the folded balance for one asset.
func (t *Transaction) Balance(assetCode string) int64 {
	return t.balances[assetCode]
}

// Balances returns a copy of all folded balances.
func (t *Transaction) Balances() map[string]int64 {
	out := make(map[string]int64, len(t.balances))
	for asset, amount := range t.balances {
		out[asset] = amount
	}
	return out
}

// HeadHash is the current chain head.
func (t *Transaction) HeadHash() Hash {
	return t.headHash
}

// Apply folds one event, recomputing and verifying the chain link for every
// balance-mutating event so tampering or reordering surfaces during replay.
func (t *Transaction) Apply(evt Event) error {
	switch evt.Type {
	case EventLedgerOpened:
		var p LedgerOpened
		if err := evt.DecodePayload(&p); err != nil {
			return err
		}
		t.AccountID = p.AccountID
		t.AllowOverdraft = p.AllowOverdraft
	case EventMoneyCredited:
		return t.applyMovement(evt, 1)
	case EventMoneyDebited:
		return t.applyMovement(evt, -1)
	default:
		return NewError(ErrCodeInternal, "unknown transaction event "+evt.Type)
	}
	return nil
}

func (t *Transaction) applyMovement(evt Event, sign int64) error {
	var p MoneyMoved
	if err := evt.DecodePayload(&p); err != nil {
		return err
	}
	if !p.PreviousHash.Equal(t.headHash) {
		return WrapError(ErrCodeInternal, "previous hash mismatch at sequence "+evt.ID, ErrHashChainBroken)
	}
	expected := ComputeChainHash(evt.AggregateID, p.AssetCode, p.PreviousHash, sign*p.Amount)
	if !expected.Equal(p.Hash) {
		return WrapError(ErrCodeInternal, "hash mismatch on event "+evt.ID, ErrHashChainBroken)
	}
	if t.balances == nil {
		t.balances = make(map[string]int64)
	}
	t.balances[p.AssetCode] += sign * p.Amount
	t.headHash = p.Hash
	return nil
}

type transactionSnapshot struct {
	AccountID      string           `json:"account_id"`
	AllowOverdraft bool             `json:"allow_overdraft"`
	Balances       map[string]int64 `json:"balances"`
	HeadHash       Hash             `json:"head_hash"`
}

// SnapshotState serializes the fold for the snapshot store.
func (t *Transaction) SnapshotState() (json.RawMessage, error) {
	return json.Marshal(transactionSnapshot{
		AccountID:      t.AccountID,
		AllowOverdraft: t.AllowOverdraft,
		Balances:       t.Balances(),
		HeadHash:       t.headHash,
	})
}

// RestoreSnapshot rehydrates the fold from a snapshot.
func (t *Transaction) RestoreSnapshot(_ int64, state json.RawMessage) error {
	var snap transactionSnapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		return WrapError(ErrCodeInternal, "transaction snapshot not decodable", err)
	}
	t.AccountID = snap.AccountID
	t.AllowOverdraft = snap.AllowOverdraft
	t.balances = snap.Balances
	if t.balances == nil {
		t.balances = make(map[string]int64)
	}
	t.headHash = snap.HeadHash
	return nil
}
