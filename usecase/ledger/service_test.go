package ledger

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/repository/memory"
	"github.com/fastygo/ledger/usecase"
)

func newTestBus(t *testing.T) (*usecase.Bus, *memory.EventStore, *memory.SnapshotStore) {
	t.Helper()
	store := memory.NewEventStore()
	snaps := memory.NewSnapshotStore()
	bus := usecase.NewBus(store, nil, nil, nil, nil)
	service := NewService(store, snaps, nil, nil, 2)
	service.RegisterHandlers(bus)
	return bus, store, snaps
}

func openAccount(t *testing.T, bus *usecase.Bus, allowOverdraft bool) string {
	t.Helper()
	result, err := bus.Dispatch(context.Background(), &OpenAccount{
		Name:           "test account",
		AllowOverdraft: allowOverdraft,
	})
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	return result.(AccountResult).AccountID
}

func TestOpenAccountCreatesBothStreams(t *testing.T) {
	bus, store, _ := newTestBus(t)
	accountID := openAccount(t, bus, false)

	if _, err := domain.ParseAccountUuid(accountID); err != nil {
		t.Fatalf("generated id must be a uuid: %v", err)
	}

	accountEvents, _ := store.Load(context.Background(), "account-"+accountID, 1)
	ledgerEvents, _ := store.Load(context.Background(), "transaction-"+accountID, 1)
	if len(accountEvents) != 1 || len(ledgerEvents) != 1 {
		t.Fatalf("expected one event per stream, got %d and %d", len(accountEvents), len(ledgerEvents))
	}
}

func TestOpenAccountRejectsBadUuid(t *testing.T) {
	bus, _, _ := newTestBus(t)
	_, err := bus.Dispatch(context.Background(), &OpenAccount{AccountID: "not-a-uuid", Name: "x"})
	if !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("expected INVALID, got %v", err)
	}
}

func TestCreditAndDebitFlow(t *testing.T) {
	bus, _, _ := newTestBus(t)
	accountID := openAccount(t, bus, false)

	result, err := bus.Dispatch(context.Background(), &CreditAccount{
		AccountID: accountID, AssetCode: "USD", Amount: 1000, Reason: "deposit",
	})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	movement := result.(MovementResult)
	if movement.Balance != 1000 {
		t.Fatalf("expected 1000, got %d", movement.Balance)
	}
	if len(movement.Hash) != domain.HashLength {
		t.Fatalf("movement must expose the chain head, got %q", movement.Hash)
	}

	result, err = bus.Dispatch(context.Background(), &DebitAccount{
		AccountID: accountID, AssetCode: "USD", Amount: 400,
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if result.(MovementResult).Balance != 600 {
		t.Fatalf("expected 600, got %d", result.(MovementResult).Balance)
	}

	_, err = bus.Dispatch(context.Background(), &DebitAccount{
		AccountID: accountID, AssetCode: "USD", Amount: 601,
	})
	if !domain.IsDomainError(err, domain.ErrCodeInsufficient) {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %v", err)
	}
}

func TestMovementOnMissingAccount(t *testing.T) {
	bus, _, _ := newTestBus(t)
	_, err := bus.Dispatch(context.Background(), &CreditAccount{
		AccountID: domain.NewAccountUuid().String(), AssetCode: "USD", Amount: 10,
	})
	if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestFrozenAccountRejectsMovements(t *testing.T) {
	bus, _, _ := newTestBus(t)
	accountID := openAccount(t, bus, false)

	if _, err := bus.Dispatch(context.Background(), &FreezeAccount{AccountID: accountID, Reason: "aml"}); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	_, err := bus.Dispatch(context.Background(), &CreditAccount{
		AccountID: accountID, AssetCode: "USD", Amount: 10,
	})
	if !domain.IsDomainError(err, domain.ErrCodeInvalidState) {
		t.Fatalf("expected INVALID_STATE, got %v", err)
	}

	if _, err := bus.Dispatch(context.Background(), &UnfreezeAccount{AccountID: accountID}); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if _, err := bus.Dispatch(context.Background(), &CreditAccount{
		AccountID: accountID, AssetCode: "USD", Amount: 10,
	}); err != nil {
		t.Fatalf("credit after unfreeze: %v", err)
	}
}

func TestGetAccountQuery(t *testing.T) {
	bus, _, _ := newTestBus(t)
	accountID := openAccount(t, bus, true)

	result, err := bus.Ask(context.Background(), &GetAccount{AccountID: accountID})
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	view := result.(AccountView)
	if view.Status != string(domain.AccountActive) || !view.AllowOverdraft {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestGetBalanceFallsBackToReplay(t *testing.T) {
	bus, _, _ := newTestBus(t)
	accountID := openAccount(t, bus, false)

	if _, err := bus.Dispatch(context.Background(), &CreditAccount{
		AccountID: accountID, AssetCode: "EUR", Amount: 777,
	}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	result, err := bus.Ask(context.Background(), &GetBalance{AccountID: accountID, AssetCode: "EUR"})
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	balance := result.(BalanceResult)
	if balance.Balance != 777 {
		t.Fatalf("expected 777, got %d", balance.Balance)
	}
	if balance.Source != "replay" {
		t.Fatalf("no projection configured, source must be replay, got %q", balance.Source)
	}
}

func TestSnapshotTakenAtInterval(t *testing.T) {
	bus, _, snaps := newTestBus(t)
	accountID := openAccount(t, bus, false)

	// snapshotEvery is 2: ledger versions move 1 (open) -> 2 -> 3 -> 4.
	for i := 0; i < 3; i++ {
		if _, err := bus.Dispatch(context.Background(), &CreditAccount{
			AccountID: accountID, AssetCode: "USD", Amount: 100,
		}); err != nil {
			t.Fatalf("credit %d: %v", i, err)
		}
	}

	snap, found, err := snaps.LoadSnapshot(context.Background(), "transaction-"+accountID)
	if err != nil || !found {
		t.Fatalf("expected a snapshot, found=%v err=%v", found, err)
	}
	if snap.Sequence != 4 {
		t.Fatalf("expected snapshot at sequence 4, got %d", snap.Sequence)
	}
}

func TestAuditDetectsTampering(t *testing.T) {
	bus, store, _ := newTestBus(t)
	accountID := openAccount(t, bus, false)

	for _, amount := range []int64{100, 200} {
		if _, err := bus.Dispatch(context.Background(), &CreditAccount{
			AccountID: accountID, AssetCode: "USD", Amount: amount,
		}); err != nil {
			t.Fatalf("credit: %v", err)
		}
	}

	result, err := bus.Ask(context.Background(), &AuditAccount{AccountID: accountID})
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	report := result.(AuditReport)
	if !report.ChainIntact {
		t.Fatalf("untouched chain must verify: %+v", report)
	}
	if len(report.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(report.Entries))
	}

	// Rewrite the first credit's amount without recomputing the hash.
	store.Tamper("transaction-"+accountID, 2, func(evt *domain.Event) {
		var p domain.MoneyMoved
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		p.Amount = 999999
		raw, _ := json.Marshal(p)
		evt.Payload = raw
	})

	result, err = bus.Ask(context.Background(), &AuditAccount{AccountID: accountID})
	if err != nil {
		t.Fatalf("audit after tamper: %v", err)
	}
	report = result.(AuditReport)
	if report.ChainIntact {
		t.Fatal("tampered chain must fail verification")
	}
	var invalid int
	for _, entry := range report.Entries {
		if !entry.Valid {
			invalid++
		}
	}
	if invalid == 0 {
		t.Fatal("at least the tampered entry must be invalid")
	}
	if report.Entries[0].Valid != true {
		t.Fatal("the opening event predates the tampering and stays valid")
	}
}
