package domain

import "testing"

func newTestAccount(t *testing.T) *Account {
	t.Helper()
	account := NewAccount(NewAccountUuid())
	if err := account.Open("checking", "owner-1", false); err != nil {
		t.Fatalf("open: %v", err)
	}
	return account
}

func TestAccountOpen(t *testing.T) {
	account := newTestAccount(t)
	if account.Status != AccountActive {
		t.Fatalf("expected active, got %s", account.Status)
	}
	if !account.CanTransact() {
		t.Fatal("active account must be able to transact")
	}
	if account.Version() != 1 {
		t.Fatalf("expected version 1, got %d", account.Version())
	}

	if err := account.Open("again", "", false); !IsDomainError(err, ErrCodeInvalidState) {
		t.Fatalf("reopening must be INVALID_STATE, got %v", err)
	}
}

func TestAccountOpenRequiresName(t *testing.T) {
	account := NewAccount(NewAccountUuid())
	if err := account.Open("", "", false); !IsDomainError(err, ErrCodeInvalid) {
		t.Fatalf("empty name must be INVALID, got %v", err)
	}
	if !account.IsNew() {
		t.Fatal("rejected open must not record an event")
	}
}

func TestAccountFreezeUnfreeze(t *testing.T) {
	account := newTestAccount(t)

	if err := account.Freeze("compliance hold"); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if account.CanTransact() {
		t.Fatal("frozen account must not transact")
	}
	if err := account.Freeze("again"); !IsDomainError(err, ErrCodeInvalidState) {
		t.Fatalf("double freeze must be INVALID_STATE, got %v", err)
	}

	if err := account.Unfreeze(); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if !account.CanTransact() {
		t.Fatal("unfrozen account must transact again")
	}
	if err := account.Unfreeze(); !IsDomainError(err, ErrCodeInvalidState) {
		t.Fatalf("unfreezing an active account must be INVALID_STATE, got %v", err)
	}
}

func TestAccountCloseIsTerminal(t *testing.T) {
	account := newTestAccount(t)
	if err := account.Close("customer request"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if account.Status != AccountClosed {
		t.Fatalf("expected closed, got %s", account.Status)
	}

	if err := account.Freeze("late"); !IsDomainError(err, ErrCodeInvalidState) {
		t.Fatalf("freezing a closed account must be INVALID_STATE, got %v", err)
	}
	if err := account.Close("again"); !IsDomainError(err, ErrCodeInvalidState) {
		t.Fatalf("double close must be INVALID_STATE, got %v", err)
	}
}

func TestAccountCloseWhileFrozen(t *testing.T) {
	account := newTestAccount(t)
	if err := account.Freeze("hold"); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if err := account.Close("liquidation"); err != nil {
		t.Fatalf("frozen accounts must be closable: %v", err)
	}
}
