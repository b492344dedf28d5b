package domain

import "encoding/json"

// Account lifecycle states. Accounts are never deleted; closing is an event
// that flips the status.
type AccountStatus string

const (
	AccountActive AccountStatus = "active"
	AccountFrozen AccountStatus = "frozen"
	AccountClosed AccountStatus = "closed"
)

// Account aggregate event types.
const (
	EventAccountOpened   = "account.opened"
	EventAccountFrozen   = "account.frozen"
	EventAccountUnfrozen = "account.unfrozen"
	EventAccountClosed   = "account.closed"
)

// Account aggregate event payloads.
type AccountOpened struct {
	Name           string `json:"name"`
	OwnerID        string `json:"owner_id,omitempty"`
	AllowOverdraft bool   `json:"allow_overdraft"`
}

type AccountFrozenPayload struct {
	Reason string `json:"reason"`
}

type AccountUnfrozenPayload struct{}

type AccountClosedPayload struct {
	Reason string `json:"reason,omitempty"`
}

// Account tracks lifecycle and policy for one ledger account. Balances live in
// the Transaction aggregate keyed by the same account reference.
type Account struct {
	Root

	Name           string
	OwnerID        string
	Status         AccountStatus
	AllowOverdraft bool
}

var _ Aggregate = (*Account)(nil)

// NewAccount returns the zero-state aggregate for the given reference.
func NewAccount(id AccountUuid) *Account {
	return &Account{Root: NewRoot("account", id.String())}
}

// Open records the creation event. Valid only on a fresh stream.
func (a *Account) Open(name, ownerID string, allowOverdraft bool) error {
	if !a.IsNew() {
		return InvalidStateTransition("account", a.AggregateID(), string(a.Status), "open")
	}
	if name == "" {
		return NewError(ErrCodeInvalid, "account name is required")
	}
	return a.RecordThat(a, EventAccountOpened, AccountOpened{
		Name:           name,
		OwnerID:        ownerID,
		AllowOverdraft: allowOverdraft,
	})
}

// Freeze places a compliance hold on an active account.
func (a *Account) Freeze(reason string) error {
	if a.Status != AccountActive {
		return InvalidStateTransition("account", a.AggregateID(), string(a.Status), "freeze")
	}
	return a.RecordThat(a, EventAccountFrozen, AccountFrozenPayload{Reason: reason})
}

// Unfreeze lifts a hold.
func (a *Account) Unfreeze() error {
	if a.Status != AccountFrozen {
		return InvalidStateTransition("account", a.AggregateID(), string(a.Status), "unfreeze")
	}
	return a.RecordThat(a, EventAccountUnfrozen, AccountUnfrozenPayload{})
}

// Close ends the account's life. Terminal.
func (a *Account) Close(reason string) error {
	if a.Status != AccountActive && a.Status != AccountFrozen {
		return InvalidStateTransition("account", a.AggregateID(), string(a.Status), "close")
	}
	return a.RecordThat(a, EventAccountClosed, AccountClosedPayload{Reason: reason})
}

// CanTransact reports whether balance operations are allowed.
func (a *Account) CanTransact() bool {
	return a.Status == AccountActive
}

// Apply folds one event into account state.
func (a *Account) Apply(evt Event) error {
	switch evt.Type {
	case EventAccountOpened:
		var p AccountOpened
		if err := evt.DecodePayload(&p); err != nil {
			return err
		}
		a.Name = p.Name
		a.OwnerID = p.OwnerID
		a.AllowOverdraft = p.AllowOverdraft
		a.Status = AccountActive
	case EventAccountFrozen:
		a.Status = AccountFrozen
	case EventAccountUnfrozen:
		a.Status = AccountActive
	case EventAccountClosed:
		a.Status = AccountClosed
	default:
		return NewError(ErrCodeInternal, "unknown account event "+evt.Type)
	}
	return nil
}

type accountSnapshot struct {
	Name           string        `json:"name"`
	OwnerID        string        `json:"owner_id,omitempty"`
	Status         AccountStatus `json:"status"`
	AllowOverdraft bool          `json:"allow_overdraft"`
}

// SnapshotState serializes the fold for the snapshot store.
func (a *Account) SnapshotState() (json.RawMessage, error) {
	return json.Marshal(accountSnapshot{
		Name:           a.Name,
		OwnerID:        a.OwnerID,
		Status:         a.Status,
		AllowOverdraft: a.AllowOverdraft,
	})
}

// RestoreSnapshot rehydrates the fold from a snapshot.
func (a *Account) RestoreSnapshot(_ int64, state json.RawMessage) error {
	var snap accountSnapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		return WrapError(ErrCodeInternal, "account snapshot not decodable", err)
	}
	a.Name = snap.Name
	a.OwnerID = snap.OwnerID
	a.Status = snap.Status
	a.AllowOverdraft = snap.AllowOverdraft
	return nil
}
