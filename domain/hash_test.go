package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewHashValidation(t *testing.T) {
	valid := strings.Repeat("ab", 64)

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid 128 hex", valid, false},
		{"127 characters", valid[:127], true},
		{"129 characters", valid + "a", true},
		{"uppercase", strings.ToUpper(valid), true},
		{"not hex", strings.Repeat("zz", 64), true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHash(tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewHash(%q) expected error, got %q", tt.value, h.String())
				}
				if !IsDomainError(err, ErrCodeInvalid) {
					t.Fatalf("expected INVALID error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewHash(%q) unexpected error: %v", tt.value, err)
			}
			if h.String() != tt.value {
				t.Fatalf("hash round-trip mismatch: %q", h.String())
			}
		})
	}
}

func TestComputeChainHashDeterministic(t *testing.T) {
	first := ComputeChainHash("acc-1", "USD", Hash{}, 100)
	second := ComputeChainHash("acc-1", "USD", Hash{}, 100)
	if !first.Equal(second) {
		t.Fatal("same inputs must produce the same hash")
	}
	if len(first.String()) != HashLength {
		t.Fatalf("expected %d hex chars, got %d", HashLength, len(first.String()))
	}

	// Each component participates in the digest.
	if ComputeChainHash("acc-2", "USD", Hash{}, 100).Equal(first) {
		t.Fatal("account id must affect the hash")
	}
	if ComputeChainHash("acc-1", "EUR", Hash{}, 100).Equal(first) {
		t.Fatal("asset code must affect the hash")
	}
	if ComputeChainHash("acc-1", "USD", Hash{}, -100).Equal(first) {
		t.Fatal("delta sign must affect the hash")
	}
	if ComputeChainHash("acc-1", "USD", first, 100).Equal(first) {
		t.Fatal("previous link must affect the hash")
	}
}

func TestHashJSONRoundTrip(t *testing.T) {
	original := ComputeChainHash("acc-1", "USD", Hash{}, 42)

	body, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Hash
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Equal(original) {
		t.Fatalf("round trip mismatch: %q != %q", decoded.String(), original.String())
	}
}

func TestHashJSONEmptyIsZero(t *testing.T) {
	var h Hash
	if err := json.Unmarshal([]byte(`""`), &h); err != nil {
		t.Fatalf("unmarshal empty: %v", err)
	}
	if !h.IsZero() {
		t.Fatal("empty string must decode to the zero hash")
	}

	if err := json.Unmarshal([]byte(`"abc"`), &h); err == nil {
		t.Fatal("short non-empty hash must fail to decode")
	}
}
