package domain

import "testing"

func initiatedTransfer(t *testing.T) *Transfer {
	t.Helper()
	transfer := NewTransfer(NewAccountUuid().String())
	err := transfer.Initiate(TransferInitiatedPayload{
		FromAccount: "a",
		ToAccount:   "b",
		FromAsset:   "USD",
		ToAsset:     "EUR",
		Amount:      500,
		Rate:        "0.9",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	return transfer
}

func TestTransferInitiateValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload TransferInitiatedPayload
	}{
		{"missing from", TransferInitiatedPayload{ToAccount: "b", Amount: 1}},
		{"missing to", TransferInitiatedPayload{FromAccount: "a", Amount: 1}},
		{"same account", TransferInitiatedPayload{FromAccount: "a", ToAccount: "a", Amount: 1}},
		{"zero amount", TransferInitiatedPayload{FromAccount: "a", ToAccount: "b", Amount: 0}},
		{"negative amount", TransferInitiatedPayload{FromAccount: "a", ToAccount: "b", Amount: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transfer := NewTransfer("t1")
			if err := transfer.Initiate(tt.payload); !IsDomainError(err, ErrCodeInvalid) {
				t.Fatalf("expected INVALID, got %v", err)
			}
		})
	}
}

func TestTransferStateMachine(t *testing.T) {
	transfer := initiatedTransfer(t)
	if transfer.Status != TransferInitiated {
		t.Fatalf("expected initiated, got %s", transfer.Status)
	}
	if !transfer.IsCrossAsset() {
		t.Fatal("USD to EUR is cross-asset")
	}

	if err := transfer.Complete(); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if transfer.Status != TransferCompleted {
		t.Fatalf("expected completed, got %s", transfer.Status)
	}

	// Both end states are terminal.
	if err := transfer.Complete(); !IsDomainError(err, ErrCodeInvalidState) {
		t.Fatalf("double complete must be INVALID_STATE, got %v", err)
	}
	if err := transfer.Fail("too late"); !IsDomainError(err, ErrCodeInvalidState) {
		t.Fatalf("fail after complete must be INVALID_STATE, got %v", err)
	}
}

func TestTransferFail(t *testing.T) {
	transfer := initiatedTransfer(t)
	if err := transfer.Fail("insufficient balance"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if transfer.Status != TransferFailed {
		t.Fatalf("expected failed, got %s", transfer.Status)
	}
	if transfer.FailureReason != "insufficient balance" {
		t.Fatalf("unexpected reason %q", transfer.FailureReason)
	}
	if err := transfer.Complete(); !IsDomainError(err, ErrCodeInvalidState) {
		t.Fatalf("complete after fail must be INVALID_STATE, got %v", err)
	}
}

func TestTransferDoubleInitiate(t *testing.T) {
	transfer := initiatedTransfer(t)
	err := transfer.Initiate(TransferInitiatedPayload{FromAccount: "x", ToAccount: "y", Amount: 1})
	if !IsDomainError(err, ErrCodeInvalidState) {
		t.Fatalf("expected INVALID_STATE, got %v", err)
	}
}
