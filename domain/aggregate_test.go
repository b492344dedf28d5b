package domain

import (
	"context"
	"testing"
)

func TestRecordThatVisibleBeforePersist(t *testing.T) {
	account := NewAccount(NewAccountUuid())
	if err := account.Open("checking", "", false); err != nil {
		t.Fatalf("open: %v", err)
	}

	// State changed, nothing persisted yet.
	if account.Status != AccountActive {
		t.Fatal("recorded event must be applied immediately")
	}
	if len(account.Uncommitted()) != 1 {
		t.Fatalf("expected 1 pending event, got %d", len(account.Uncommitted()))
	}
	if account.IsNew() {
		t.Fatal("aggregate with pending events is not new")
	}
}

func TestPersistClearsPendingAndSetsExpectedSequence(t *testing.T) {
	store := newStreamLog()
	account := NewAccount(NewAccountUuid())
	if err := account.Open("checking", "", false); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := account.Freeze("hold"); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	if err := account.Persist(context.Background(), store); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if len(account.Uncommitted()) != 0 {
		t.Fatal("persist must clear the pending buffer")
	}
	if got := len(store.streams[account.StreamID()]); got != 2 {
		t.Fatalf("expected 2 stored events, got %d", got)
	}

	// Second persist with nothing pending is a no-op.
	if err := account.Persist(context.Background(), store); err != nil {
		t.Fatalf("empty persist: %v", err)
	}
}

func TestPersistConflictOnStaleVersion(t *testing.T) {
	store := newStreamLog()
	id := NewAccountUuid()

	first := NewAccount(id)
	if err := first.Open("checking", "", false); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Persist(context.Background(), store); err != nil {
		t.Fatalf("persist: %v", err)
	}

	// A second writer loaded before the first persisted.
	stale := NewAccount(id)
	if err := stale.Open("duplicate", "", false); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := stale.Persist(context.Background(), store); err != ErrConcurrencyConflict {
		t.Fatalf("expected concurrency conflict, got %v", err)
	}
}

func TestRetrieveExisting(t *testing.T) {
	store := newStreamLog()
	missing := NewAccount(NewAccountUuid())
	if err := RetrieveExisting(context.Background(), store, missing); err != ErrAggregateNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	id := NewAccountUuid()
	account := NewAccount(id)
	if err := account.Open("checking", "owner", true); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := account.Persist(context.Background(), store); err != nil {
		t.Fatalf("persist: %v", err)
	}

	loaded := NewAccount(id)
	if err := RetrieveExisting(context.Background(), store, loaded); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if loaded.Name != "checking" || loaded.OwnerID != "owner" || !loaded.AllowOverdraft {
		t.Fatalf("unexpected state: %+v", loaded)
	}
}

type snapshotBox struct {
	snap  Snapshot
	found bool
	saves int
}

func (b *snapshotBox) LoadSnapshot(context.Context, string) (Snapshot, bool, error) {
	return b.snap, b.found, nil
}

func (b *snapshotBox) SaveSnapshot(_ context.Context, snap Snapshot) error {
	b.snap = snap
	b.found = true
	b.saves++
	return nil
}

func TestSnapshotIsPureCache(t *testing.T) {
	store := newStreamLog()
	snaps := &snapshotBox{}
	ledger, id := openTestLedger(t, store, false)

	for i := 0; i < 3; i++ {
		if err := ledger.Credit(AssetAmount{AssetCode: "USD", Amount: 100}, "", ""); err != nil {
			t.Fatalf("credit: %v", err)
		}
	}
	if err := ledger.Persist(context.Background(), store); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := TakeSnapshot(context.Background(), snaps, ledger); err != nil {
		t.Fatalf("take snapshot: %v", err)
	}
	if snaps.saves != 1 {
		t.Fatalf("expected 1 save, got %d", snaps.saves)
	}

	// One more event after the snapshot; restore plus tail replay must agree
	// with a full replay.
	if err := ledger.Credit(AssetAmount{AssetCode: "USD", Amount: 50}, "", ""); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := ledger.Persist(context.Background(), store); err != nil {
		t.Fatalf("persist: %v", err)
	}

	fast := NewTransaction(id)
	if err := RetrieveWithSnapshot(context.Background(), store, snaps, fast); err != nil {
		t.Fatalf("retrieve with snapshot: %v", err)
	}
	full := NewTransaction(id)
	if err := Retrieve(context.Background(), store, full); err != nil {
		t.Fatalf("full replay: %v", err)
	}

	if fast.Balance("USD") != full.Balance("USD") || fast.Balance("USD") != 350 {
		t.Fatalf("snapshot path %d, full replay %d", fast.Balance("USD"), full.Balance("USD"))
	}
	if !fast.HeadHash().Equal(full.HeadHash()) {
		t.Fatal("snapshot path must reproduce the chain head")
	}
	if fast.Version() != full.Version() {
		t.Fatalf("version mismatch: %d != %d", fast.Version(), full.Version())
	}
}

func TestTakeSnapshotRejectsPendingEvents(t *testing.T) {
	snaps := &snapshotBox{}
	ledger := NewTransaction(NewAccountUuid())
	if err := ledger.OpenLedger(false); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := TakeSnapshot(context.Background(), snaps, ledger); !IsDomainError(err, ErrCodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestFoldRejectsSequenceGaps(t *testing.T) {
	store := newStreamLog()
	id := NewAccountUuid()
	account := NewAccount(id)
	if err := account.Open("checking", "", false); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := account.Freeze("hold"); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if err := account.Persist(context.Background(), store); err != nil {
		t.Fatalf("persist: %v", err)
	}

	// Punch a hole in the stream.
	stream := store.streams[account.StreamID()]
	store.streams[account.StreamID()] = []Event{stream[0], {Sequence: 3, Type: EventAccountUnfrozen}}

	loaded := NewAccount(id)
	if err := Retrieve(context.Background(), store, loaded); !IsDomainError(err, ErrCodeInternal) {
		t.Fatalf("expected out-of-order error, got %v", err)
	}
}
